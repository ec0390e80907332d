package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"wishguard/internal/antibot/config"
	antibotmodels "wishguard/internal/antibot/models"
	"wishguard/internal/email/mailer"
	"wishguard/internal/email/models"
	"wishguard/internal/email/store/emaillog"
	"wishguard/internal/email/store/verification"
	ratelimitmodels "wishguard/internal/ratelimit/models"
	dErrors "wishguard/pkg/domain-errors"
)

const clientIP = "203.0.113.20"

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last() mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[len(o.sent)-1]
}

type staticIPs map[string]*antibotmodels.IPReputation

func (s staticIPs) Lookup(_ context.Context, ip string) (*antibotmodels.IPReputation, error) {
	return s[ip], nil
}

// countingLimiter allows the first Max checks per (action, identifier).
type countingLimiter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingLimiter) Check(_ context.Context, action ratelimitmodels.Action, identifier string, limit config.Limit) *ratelimitmodels.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := string(action) + ":" + identifier
	c.calls[key]++
	return &ratelimitmodels.Result{Allowed: c.calls[key] <= limit.Max, Limit: limit.Max}
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *verification.InMemoryStore
	logs    *emaillog.InMemoryStore
	outbox  *outbox
	ips     staticIPs
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.store = verification.NewInMemoryStore()
	s.logs = emaillog.NewInMemoryStore()
	s.outbox = &outbox{}
	s.ips = staticIPs{}

	var err error
	s.service, err = New(s.store, s.logs, s.outbox,
		WithClock(func() time.Time { return s.now }),
		WithFrontendURL("https://wish.example/"),
		WithIPLookup(s.ips),
		WithRateLimits(&countingLimiter{calls: map[string]int{}},
			config.Limit{Max: 2, Window: time.Hour},
			config.Limit{Max: 5, Window: time.Hour},
		),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) send(address string) *Sent {
	sent, err := s.service.Send(s.ctx, SendRequest{Email: address, Type: models.TypeRegister, IP: clientIP})
	s.Require().NoError(err)
	return sent
}

func (s *ServiceSuite) tokenFromLastMail() string {
	msg := s.outbox.last()
	_, rawQuery, ok := strings.Cut(msg.Text, "/verify-email?")
	s.Require().True(ok)
	rawQuery, _, _ = strings.Cut(rawQuery, "\n")
	q, err := url.ParseQuery(rawQuery)
	s.Require().NoError(err)
	return q.Get("token")
}

func (s *ServiceSuite) verify(token string) *Result {
	res, err := s.service.Verify(s.ctx, VerifyRequest{Token: token, IP: clientIP})
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.logs, s.outbox)
	s.Error(err)
	_, err = New(s.store, nil, s.outbox)
	s.Error(err)
	_, err = New(s.store, s.logs, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestSend() {
	s.Run("mails a link carrying a fresh token", func() {
		sent := s.send("  Jane.Doe@Gmail.com ")
		s.Equal("janedoe@gmail.com", sent.Email)
		s.Equal(30*time.Minute, sent.ExpiresIn)

		msg := s.outbox.last()
		s.Equal("janedoe@gmail.com", msg.To)
		s.Contains(msg.Text, "https://wish.example/verify-email?token=")
		token := s.tokenFromLastMail()
		s.Len(token, 64)
		s.Equal(1, s.store.PendingCount("janedoe@gmail.com", models.TypeRegister))

		entries := s.logs.Entries()
		s.Require().Len(entries, 1)
		s.Equal(models.ActionSend, entries[0].Action)
		s.True(entries[0].Success)
	})

	s.Run("supersedes the previous token", func() {
		s.SetupTest()
		s.send("user@example.com")
		first := s.tokenFromLastMail()
		s.send("user@example.com")
		second := s.tokenFromLastMail()

		s.NotEqual(first, second)
		s.Equal(1, s.store.PendingCount("user@example.com", models.TypeRegister))
		s.Equal(dErrors.CodeNotFound, s.verify(first).Code)
		s.True(s.verify(second).Success)
	})

	s.Run("rejects malformed addresses", func() {
		s.SetupTest()
		_, err := s.service.Send(s.ctx, SendRequest{Email: "not-an-email", Type: models.TypeRegister})
		s.Equal(dErrors.CodeInvalidRequest, dErrors.CodeOf(err))
		s.Empty(s.outbox.sent)
	})

	s.Run("rejects disposable domains", func() {
		s.SetupTest()
		_, err := s.service.Send(s.ctx, SendRequest{Email: "bot@mailinator.com", Type: models.TypeRegister})
		s.Equal(dErrors.CodeInvalidRequest, dErrors.CodeOf(err))
		s.Equal(msgDisposable, dErrors.MessageOf(err))
	})

	s.Run("refuses blocked addresses", func() {
		s.SetupTest()
		until := s.now.Add(time.Hour)
		s.ips[clientIP] = &antibotmodels.IPReputation{IP: clientIP, IsBlocked: true, BlockedUntil: &until}
		_, err := s.service.Send(s.ctx, SendRequest{Email: "user@example.com", Type: models.TypeRegister, IP: clientIP})
		s.Equal(dErrors.CodeRateLimited, dErrors.CodeOf(err))
	})

	s.Run("caps sends per address", func() {
		s.SetupTest()
		s.send("user@example.com")
		s.send("user@example.com")
		_, err := s.service.Send(s.ctx, SendRequest{Email: "user@example.com", Type: models.TypeRegister, IP: clientIP})
		s.Equal(dErrors.CodeRateLimited, dErrors.CodeOf(err))
		s.Len(s.outbox.sent, 2)
	})

	s.Run("reports delivery failures", func() {
		s.SetupTest()
		s.outbox.err = errors.New("connection refused")
		_, err := s.service.Send(s.ctx, SendRequest{Email: "user@example.com", Type: models.TypeRegister})
		s.Equal(dErrors.CodeDeliveryFailed, dErrors.CodeOf(err))

		entries := s.logs.Entries()
		s.Require().Len(entries, 1)
		s.False(entries[0].Success)
		s.Equal("connection refused", entries[0].ErrorMessage)
	})
}

func (s *ServiceSuite) TestVerify() {
	s.Run("verifies once", func() {
		s.send("user@example.com")
		token := s.tokenFromLastMail()

		res := s.verify(token)
		s.True(res.Success)
		s.Equal("user@example.com", res.Email)
		s.Equal(models.TypeRegister, res.Type)

		again := s.verify(token)
		s.False(again.Success)
		s.Equal(dErrors.CodeNotFound, again.Code)
	})

	s.Run("requires a token", func() {
		_, err := s.service.Verify(s.ctx, VerifyRequest{Token: "  "})
		s.Equal(dErrors.CodeInvalidRequest, dErrors.CodeOf(err))
	})

	s.Run("logs unknown tokens", func() {
		s.SetupTest()
		res := s.verify("does-not-exist")
		s.Equal(dErrors.CodeNotFound, res.Code)

		entries := s.logs.Entries()
		s.Require().Len(entries, 1)
		s.Equal(models.ActionVerify, entries[0].Action)
		s.False(entries[0].Success)
	})

	s.Run("expires after the token lifetime", func() {
		s.SetupTest()
		s.send("user@example.com")
		token := s.tokenFromLastMail()
		s.now = s.now.Add(31 * time.Minute)

		res := s.verify(token)
		s.Equal(dErrors.CodeExpired, res.Code)
		s.Equal(msgExpired, res.Message)
	})
}

func (s *ServiceSuite) TestVerifyRedeemsInsideTransaction() {
	var runs int
	svc, err := New(s.store, s.logs, s.outbox,
		WithClock(func() time.Time { return s.now }),
		WithTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
			runs++
			return fn(ctx)
		}),
	)
	s.Require().NoError(err)

	_, err = svc.Send(s.ctx, SendRequest{Email: "tx@example.com", Type: models.TypeRegister, IP: clientIP})
	s.Require().NoError(err)
	res, err := svc.Verify(s.ctx, VerifyRequest{Token: s.tokenFromLastMail(), IP: clientIP})
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal(1, runs)

	s.Run("a failing transaction surfaces as internal", func() {
		failing, err := New(s.store, s.logs, s.outbox,
			WithClock(func() time.Time { return s.now }),
			WithTxRunner(func(context.Context, func(context.Context) error) error {
				return errors.New("connection reset")
			}),
		)
		s.Require().NoError(err)
		_, err = failing.Send(s.ctx, SendRequest{Email: "tx2@example.com", Type: models.TypeRegister, IP: clientIP})
		s.Require().NoError(err)

		_, err = failing.Verify(s.ctx, VerifyRequest{Token: s.tokenFromLastMail(), IP: clientIP})
		s.Require().Error(err)
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	})
}
