package ipreputation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/models"
	ipstore "wishguard/internal/antibot/store/ipreputation"
	audit "wishguard/pkg/platform/audit"
)

type stubDetector map[string]bool

func (d stubDetector) IsAnonymous(ip string) bool { return d[ip] }

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (r *recordingEmitter) Emit(_ context.Context, ev audit.SecurityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type IPReputationSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *ipstore.InMemoryStore
	events  *recordingEmitter
	tracker *Tracker
}

func TestIPReputationSuite(t *testing.T) {
	suite.Run(t, new(IPReputationSuite))
}

func (s *IPReputationSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.store = ipstore.NewInMemoryStore()
	s.events = &recordingEmitter{}
	var err error
	s.tracker, err = New(s.store,
		WithClock(func() time.Time { return s.now }),
		WithAuditPublisher(s.events),
		WithProxyDetector(stubDetector{"198.51.100.7": true}),
	)
	s.Require().NoError(err)
}

func (s *IPReputationSuite) checks(ip string, n int) *Verdict {
	var v *Verdict
	for range n {
		var err error
		v, err = s.tracker.Check(s.ctx, ip)
		s.Require().NoError(err)
	}
	return v
}

func (s *IPReputationSuite) failures(ip string, counter models.IPCounter, n int) *models.IPReputation {
	var rep *models.IPReputation
	for range n {
		var err error
		rep, err = s.tracker.RecordFailure(s.ctx, ip, counter)
		s.Require().NoError(err)
	}
	return rep
}

func (s *IPReputationSuite) TestScore() {
	cfg := config.Default().IP

	s.Run("clean address", func() {
		s.Equal(0.0, Score(cfg, &models.IPReputation{RegistrationAttempts: 3}))
	})
	s.Run("failure ratio above 0.7", func() {
		rep := &models.IPReputation{RegistrationAttempts: 1, FailedOTPAttempts: 3}
		s.Equal(35.0, Score(cfg, rep))
	})
	s.Run("many attempts and proxy", func() {
		rep := &models.IPReputation{RegistrationAttempts: 11, IsVPN: true}
		s.Equal(50.0, Score(cfg, rep))
	})
	s.Run("everything capped at 100", func() {
		rep := &models.IPReputation{RegistrationAttempts: 11, FailedOTPAttempts: 16, CaptchaFailures: 10, IsVPN: true}
		s.Equal(100.0, Score(cfg, rep))
	})
}

func (s *IPReputationSuite) TestCheck() {
	s.Run("first sighting is allowed and counted", func() {
		v := s.checks("203.0.113.1", 1)
		s.True(v.Allowed)
		s.Equal(1, v.Reputation.RegistrationAttempts)
		s.Equal(0.0, v.Reputation.RiskScore)
	})

	s.Run("many attempts alone stay under the deny threshold", func() {
		v := s.checks("203.0.113.2", 11)
		s.True(v.Allowed)
		s.Equal(30.0, v.Reputation.RiskScore)
	})

	s.Run("proxy flag feeds the score", func() {
		v := s.checks("198.51.100.7", 1)
		s.True(v.Allowed)
		s.True(v.Reputation.IsVPN)
		s.Equal(20.0, v.Reputation.RiskScore)
	})

	s.Run("risk above 60 is denied without blocking", func() {
		ip := "203.0.113.3"
		s.checks(ip, 11)
		s.failures(ip, models.CounterCaptchaFailures, 9)
		v := s.checks(ip, 1)
		s.False(v.Allowed)
		s.Equal(ReasonSuspicious, v.Reason)
		s.Equal(65.0, v.Reputation.RiskScore)
		s.False(v.Reputation.IsBlocked)
	})
}

func (s *IPReputationSuite) TestAutomaticBlock() {
	ip := "203.0.113.9"
	s.checks(ip, 11)
	s.failures(ip, models.CounterCaptchaFailures, 10)

	rep := s.failures(ip, models.CounterFailedOTPAttempts, 15)
	s.False(rep.IsBlocked)
	s.Empty(s.events.events)

	rep = s.failures(ip, models.CounterFailedOTPAttempts, 1)
	s.Equal(90.0, rep.RiskScore)
	s.True(rep.IsBlocked)
	s.Require().NotNil(rep.BlockedUntil)
	s.Equal(s.now.Add(24*time.Hour), *rep.BlockedUntil)
	s.Equal(config.Default().IP.BlockReason, rep.BlockReason)

	s.Require().Len(s.events.events, 1)
	s.Equal(audit.EventIPBlocked, s.events.events[0].Type)

	s.Run("further recomputes do not re-emit", func() {
		s.failures(ip, models.CounterFailedOTPAttempts, 2)
		s.Len(s.events.events, 1)
	})

	s.Run("blocked address is rejected", func() {
		v := s.checks(ip, 1)
		s.False(v.Allowed)
		s.True(strings.HasPrefix(v.Reason, ReasonBlocked))
	})

	s.Run("an elapsed block is cleared by a read", func() {
		s.now = s.now.Add(25 * time.Hour)
		rep, err := s.tracker.Lookup(s.ctx, ip)
		s.Require().NoError(err)
		s.False(rep.IsBlocked)
		s.Nil(rep.BlockedUntil)
		s.Empty(rep.BlockReason)
	})
}

func (s *IPReputationSuite) TestLookupUnknown() {
	rep, err := s.tracker.Lookup(s.ctx, "192.0.2.44")
	s.Require().NoError(err)
	s.Nil(rep)
}

func (s *IPReputationSuite) TestBlockedRowInvariant() {
	ip := "203.0.113.10"
	s.checks(ip, 11)
	s.failures(ip, models.CounterCaptchaFailures, 10)
	s.failures(ip, models.CounterFailedOTPAttempts, 16)

	rep, err := s.store.Get(s.ctx, ip)
	s.Require().NoError(err)
	s.True(rep.IsBlocked)
	s.Require().NotNil(rep.BlockedUntil)
	s.True(rep.BlockedUntil.After(s.now))
}
