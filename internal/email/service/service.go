// Package service issues and redeems email verification tokens.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"wishguard/internal/antibot/config"
	antibotmodels "wishguard/internal/antibot/models"
	"wishguard/internal/email/mailer"
	"wishguard/internal/email/models"
	ratelimitmodels "wishguard/internal/ratelimit/models"
	dErrors "wishguard/pkg/domain-errors"
	pemail "wishguard/pkg/email"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/requestcontext"
)

type Store interface {
	Replace(ctx context.Context, v *models.Verification) error
	GetPending(ctx context.Context, token string) (*models.Verification, error)
	RecordAttempt(ctx context.Context, id string, now time.Time) (*models.Verification, error)
	MarkVerified(ctx context.Context, id string, now time.Time) (bool, error)
}

type LogStore interface {
	Append(ctx context.Context, entry *models.LogEntry) error
}

// IPLookup reads the sender's reputation. A nil reputation means an unseen IP.
type IPLookup interface {
	Lookup(ctx context.Context, ip string) (*antibotmodels.IPReputation, error)
}

// TxRunner runs fn in one transaction. The attempt and the verified flag of a
// redeemed token are written together.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Limiter interface {
	Check(ctx context.Context, action ratelimitmodels.Action, identifier string, limit config.Limit) *ratelimitmodels.Result
}

type SendRequest struct {
	Email     string
	Type      models.VerificationType
	IP        string
	UserAgent string
}

type Sent struct {
	Email     string
	ExpiresIn time.Duration
}

type VerifyRequest struct {
	Token     string
	IP        string
	UserAgent string
}

type Result struct {
	Success bool
	Email   string
	Type    models.VerificationType
	Code    dErrors.Code
	Message string
}

const (
	msgVerified   = "email verified"
	msgNotFound   = "invalid or already used token"
	msgExpired    = "token expired, request a new email"
	msgExhausted  = "too many attempts, request a new email"
	msgBlockedIP  = "too many requests from this address, try again later"
	msgTooMany    = "too many verification emails requested, try again later"
	msgDisposable = "disposable email addresses are not allowed"

	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Service struct {
	store       Store
	logs        LogStore
	mailer      mailer.Mailer
	ips         IPLookup
	limiter     Limiter
	events      audit.Emitter
	logger      *slog.Logger
	cfg         config.EmailConfig
	perAddress  config.Limit
	perIP       config.Limit
	frontendURL string
	tx          TxRunner
	clock       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg config.EmailConfig) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithRateLimits caps sends per normalized address and per client IP.
func WithRateLimits(limiter Limiter, perAddress, perIP config.Limit) Option {
	return func(s *Service) {
		s.limiter = limiter
		s.perAddress = perAddress
		s.perIP = perIP
	}
}

func WithIPLookup(ips IPLookup) Option {
	return func(s *Service) {
		s.ips = ips
	}
}

func WithAuditPublisher(events audit.Emitter) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithFrontendURL(base string) Option {
	return func(s *Service) {
		s.frontendURL = strings.TrimRight(base, "/")
	}
}

func WithTxRunner(run TxRunner) Option {
	return func(s *Service) {
		s.tx = run
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(store Store, logs LogStore, m mailer.Mailer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("email verification store is required")
	}
	if logs == nil {
		return nil, errors.New("email log store is required")
	}
	if m == nil {
		return nil, errors.New("mailer is required")
	}
	s := &Service{
		store:  store,
		logs:   logs,
		mailer: m,
		cfg:    config.Default().Email,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tx == nil {
		s.tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return s, nil
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx(ctx, fn)
}

// Send validates the address, supersedes earlier unverified tokens for
// (email, type) and mails a verification link.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Sent, error) {
	now := s.now(ctx)

	if err := s.checkIP(ctx, req.IP, now); err != nil {
		return nil, err
	}
	if !pemail.Valid(req.Email) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid email address")
	}
	if pemail.IsDisposable(req.Email, s.cfg.DisposableDomains) {
		s.emit(ctx, audit.EventDisposableEmail, pemail.Domain(req.Email), msgDisposable)
		return nil, dErrors.New(dErrors.CodeInvalidRequest, msgDisposable)
	}
	address := pemail.Normalize(req.Email)

	if err := s.checkLimits(ctx, address, req.IP); err != nil {
		return nil, err
	}

	token, err := randomToken(s.cfg.TokenLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate token")
	}
	v := &models.Verification{
		ID:          uuid.NewString(),
		Email:       address,
		Token:       token,
		Type:        req.Type,
		MaxAttempts: s.cfg.MaxAttempts,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TokenTTL),
	}
	if err := s.store.Replace(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification token")
	}

	sendErr := s.mailer.Send(ctx, s.message(address, req.Type, token))
	entry := &models.LogEntry{
		Email:     address,
		Action:    models.ActionSend,
		Type:      req.Type,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Success:   sendErr == nil,
		CreatedAt: now,
	}
	if sendErr != nil {
		entry.ErrorMessage = sendErr.Error()
	}
	s.appendLog(ctx, entry)

	if sendErr != nil {
		s.logger.WarnContext(ctx, "verification mail failed", "error", sendErr)
		return nil, dErrors.Wrap(sendErr, dErrors.CodeDeliveryFailed, "failed to send verification email")
	}
	s.emit(ctx, audit.EventEmailVerification, pemail.Domain(address), "verification email sent")
	return &Sent{Email: address, ExpiresIn: s.cfg.TokenTTL}, nil
}

// Verify redeems a token. Every call is logged, including unknown tokens.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*Result, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "token is required")
	}
	now := s.now(ctx)

	v, err := s.store.GetPending(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.finish(ctx, req, nil, now, dErrors.CodeNotFound, msgNotFound), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification token")
	}

	switch v.StateAt(now) {
	case models.StateExpired:
		return s.finish(ctx, req, v, now, dErrors.CodeExpired, msgExpired), nil
	case models.StateExhausted:
		return s.finish(ctx, req, v, now, dErrors.CodeExhausted, msgExhausted), nil
	}

	var verified bool
	err = s.inTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.RecordAttempt(ctx, v.ID, now); err != nil {
			return err
		}
		ok, err := s.store.MarkVerified(ctx, v.ID, now)
		if err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		verified = ok
		return nil
	})
	switch {
	case errors.Is(err, sentinel.ErrExhausted), errors.Is(err, sentinel.ErrNotFound):
		return s.finish(ctx, req, v, now, dErrors.CodeExhausted, msgExhausted), nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem verification token")
	case !verified:
		return s.finish(ctx, req, v, now, dErrors.CodeNotFound, msgNotFound), nil
	}
	return s.finish(ctx, req, v, now, "", msgVerified), nil
}

func (s *Service) checkIP(ctx context.Context, ip string, now time.Time) error {
	if s.ips == nil || ip == "" {
		return nil
	}
	rep, err := s.ips.Lookup(ctx, ip)
	if err != nil {
		s.logger.WarnContext(ctx, "ip reputation unavailable", "error", err)
		return nil
	}
	if rep != nil && rep.BlockedAt(now) {
		return dErrors.New(dErrors.CodeRateLimited, msgBlockedIP)
	}
	return nil
}

func (s *Service) checkLimits(ctx context.Context, address, ip string) error {
	if s.limiter == nil {
		return nil
	}
	if res := s.limiter.Check(ctx, ratelimitmodels.ActionEmailAddress, address, s.perAddress); !res.Allowed {
		return dErrors.New(dErrors.CodeRateLimited, msgTooMany)
	}
	if ip == "" {
		return nil
	}
	if res := s.limiter.Check(ctx, ratelimitmodels.ActionEmailIP, ip, s.perIP); !res.Allowed {
		return dErrors.New(dErrors.CodeRateLimited, msgTooMany)
	}
	return nil
}

func (s *Service) message(address string, kind models.VerificationType, token string) mailer.Message {
	link := s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
	minutes := int(s.cfg.TokenTTL.Minutes())
	return mailer.Message{
		To:      address,
		Subject: kind.Subject(),
		Text: fmt.Sprintf("Hello,\n\nOpen the link below to confirm your email address:\n%s\n\n"+
			"The link is valid for %d minutes.\n", link, minutes),
		HTML: fmt.Sprintf(`<p>Hello,</p><p><a href="%s">Confirm your email address</a></p>`+
			`<p>The link is valid for %d minutes.</p>`, link, minutes),
	}
}

func (s *Service) finish(ctx context.Context, req VerifyRequest, v *models.Verification, now time.Time, code dErrors.Code, msg string) *Result {
	res := &Result{Success: code == "", Code: code, Message: msg}
	entry := &models.LogEntry{
		Action:    models.ActionVerify,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Success:   res.Success,
		CreatedAt: now,
	}
	if v != nil {
		res.Email, res.Type = v.Email, v.Type
		entry.Email, entry.Type = v.Email, v.Type
	}
	if !res.Success {
		entry.ErrorMessage = msg
		s.emit(ctx, audit.EventEmailVerifyFailed, pemail.Domain(res.Email), msg)
	}
	s.appendLog(ctx, entry)
	return res
}

func (s *Service) appendLog(ctx context.Context, entry *models.LogEntry) {
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append email log",
			"action", string(entry.Action),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, kind audit.EventType, subject, description string) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, audit.SecurityEvent{
		Type:        kind,
		Subject:     subject,
		Description: description,
	})
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

func randomToken(length int) (string, error) {
	upper := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
