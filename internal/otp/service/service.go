// Package service issues and verifies phone one-time codes.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wishguard/internal/antibot/config"
	antibotmodels "wishguard/internal/antibot/models"
	"wishguard/internal/otp/metrics"
	"wishguard/internal/otp/models"
	"wishguard/internal/otp/sms"
	dErrors "wishguard/pkg/domain-errors"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/privacy"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/requestcontext"
)

type Store interface {
	Replace(ctx context.Context, o *models.OTPVerification) error
	LatestPending(ctx context.Context, phone string, kind models.Type) (*models.OTPVerification, error)
	RecordAttempt(ctx context.Context, id string, now time.Time) (*models.OTPVerification, error)
	MarkVerified(ctx context.Context, id string, now time.Time) (bool, error)
}

type LogStore interface {
	Append(ctx context.Context, entry *models.PhoneVerificationLog) error
	CountSince(ctx context.Context, phone string, actions []models.LogAction, since time.Time) (int, error)
}

// FailureRecorder feeds failed verifications into the caller's IP reputation.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, ip string, counter antibotmodels.IPCounter) (*antibotmodels.IPReputation, error)
}

type IssueRequest struct {
	Phone     string
	Type      models.Type
	IP        string
	UserAgent string
}

type Issued struct {
	Phone     string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

type VerifyRequest struct {
	Phone     string
	Type      models.Type
	Code      string
	IP        string
	UserAgent string
}

// Result reports a verification outcome. Code is empty on success.
type Result struct {
	Success bool
	Phone   string
	Code    dErrors.Code
	Message string
}

const (
	msgVerified    = "phone number verified"
	msgNotFound    = "code not found or expired"
	msgExpired     = "code expired, request a new one"
	msgExhausted   = "too many attempts, request a new code"
	msgUsed        = "code already used"
	msgWrongCode   = "wrong code"
	msgTooManySent = "too many codes requested, wait a minute"
)

type Service struct {
	store     Store
	logs      LogStore
	sender    sms.Sender
	failures  FailureRecorder
	events    audit.Emitter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       config.OTPConfig
	sendLimit config.Limit
	hashCost  int
	generate  func(digits int) (string, error)
	clock     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg config.OTPConfig) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithSendLimit caps sends per phone, counted from the phone log. Zero disables it.
func WithSendLimit(limit config.Limit) Option {
	return func(s *Service) {
		s.sendLimit = limit
	}
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(s *Service) {
		s.failures = r
	}
}

func WithAuditPublisher(events audit.Emitter) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithHashCost sets the bcrypt cost for stored codes.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithCodeGenerator replaces the crypto/rand code source.
func WithCodeGenerator(gen func(digits int) (string, error)) Option {
	return func(s *Service) {
		s.generate = gen
	}
}

func New(store Store, logs LogStore, sender sms.Sender, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("otp store is required")
	}
	if logs == nil {
		return nil, errors.New("phone log store is required")
	}
	if sender == nil {
		return nil, errors.New("sms sender is required")
	}
	s := &Service{
		store:    store,
		logs:     logs,
		sender:   sender,
		cfg:      config.Default().OTP,
		hashCost: bcrypt.DefaultCost,
		generate: randomDigits,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Issue replaces any pending code for (phone, type) with a fresh one and
// sends it. The send is logged whether or not delivery succeeds.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	phone, ok := models.NormalizePhone(req.Phone)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid phone number")
	}
	now := s.now(ctx)

	if err := s.checkSendLimit(ctx, phone, now); err != nil {
		return nil, err
	}

	code, err := s.generate(s.cfg.CodeLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash code")
	}

	o := &models.OTPVerification{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Type:        req.Type,
		CodeHash:    string(hash),
		MaxAttempts: s.cfg.MaxAttempts,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}
	if err := s.store.Replace(ctx, o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save code")
	}

	sendErr := s.sender.Send(ctx, phone, req.Type.Message(code))
	entry := &models.PhoneVerificationLog{
		PhoneNumber: phone,
		Action:      models.ActionSend,
		Type:        req.Type,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Success:     sendErr == nil,
		CreatedAt:   now,
	}
	if sendErr != nil {
		entry.ErrorCode = string(dErrors.CodeDeliveryFailed)
	}
	s.appendLog(ctx, entry)

	if sendErr != nil {
		s.metrics.ObserveSend("failed")
		s.logger.WarnContext(ctx, "sms delivery failed",
			"phone", privacy.MaskPhone(phone),
			"error", sendErr,
		)
		return nil, dErrors.Wrap(sendErr, dErrors.CodeDeliveryFailed, "failed to send sms: "+sms.Category(sendErr))
	}

	s.metrics.ObserveSend("sent")
	s.emit(ctx, audit.EventOTPSent, phone, "otp sent")
	return &Issued{Phone: phone, ExpiresAt: o.ExpiresAt, ExpiresIn: s.cfg.TTL}, nil
}

// Verify spends one attempt on the latest pending code for (phone, type).
// Lifecycle failures and wrong codes come back as an unsuccessful Result; the
// error is reserved for invalid input and infrastructure failures.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*Result, error) {
	phone, ok := models.NormalizePhone(req.Phone)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid phone number")
	}
	now := s.now(ctx)

	o, err := s.store.LatestPending(ctx, phone, req.Type)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.finish(ctx, req, phone, now, dErrors.CodeNotFound, msgNotFound, false), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code")
	}

	switch o.StateAt(now) {
	case models.StateExpired:
		return s.finish(ctx, req, phone, now, dErrors.CodeExpired, msgExpired, true), nil
	case models.StateExhausted:
		return s.finish(ctx, req, phone, now, dErrors.CodeExhausted, msgExhausted, true), nil
	}

	spent, err := s.store.RecordAttempt(ctx, o.ID, now)
	switch {
	case errors.Is(err, sentinel.ErrExhausted):
		// A concurrent attempt took the last slot or the code lapsed meanwhile.
		if now.After(o.ExpiresAt) {
			return s.finish(ctx, req, phone, now, dErrors.CodeExpired, msgExpired, true), nil
		}
		return s.finish(ctx, req, phone, now, dErrors.CodeExhausted, msgExhausted, true), nil
	case errors.Is(err, sentinel.ErrNotFound):
		return s.finish(ctx, req, phone, now, dErrors.CodeNotFound, msgNotFound, false), nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attempt")
	}

	if bcrypt.CompareHashAndPassword([]byte(spent.CodeHash), []byte(req.Code)) != nil {
		left := spent.MaxAttempts - spent.AttemptsCount
		return s.finish(ctx, req, phone, now, dErrors.CodeInvalidRequest,
			fmt.Sprintf("%s, %d attempts left", msgWrongCode, left), true), nil
	}

	verified, err := s.store.MarkVerified(ctx, spent.ID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark code verified")
	}
	if !verified {
		return s.finish(ctx, req, phone, now, dErrors.CodeNotFound, msgUsed, false), nil
	}
	return s.finish(ctx, req, phone, now, "", msgVerified, false), nil
}

func (s *Service) checkSendLimit(ctx context.Context, phone string, now time.Time) error {
	if s.sendLimit.Max <= 0 {
		return nil
	}
	n, err := s.logs.CountSince(ctx, phone, []models.LogAction{models.ActionSend}, now.Add(-s.sendLimit.Window))
	if err != nil {
		s.logger.WarnContext(ctx, "phone log unavailable, skipping send limit", "error", err)
		return nil
	}
	if n >= s.sendLimit.Max {
		return dErrors.New(dErrors.CodeRateLimited, msgTooManySent)
	}
	return nil
}

// finish logs the verify attempt and reports it. An empty code means success.
func (s *Service) finish(ctx context.Context, req VerifyRequest, phone string, now time.Time, code dErrors.Code, msg string, countAgainstIP bool) *Result {
	success := code == ""
	s.appendLog(ctx, &models.PhoneVerificationLog{
		PhoneNumber: phone,
		Action:      models.ActionVerify,
		Type:        req.Type,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Success:     success,
		ErrorCode:   string(code),
		CreatedAt:   now,
	})

	if success {
		s.metrics.ObserveVerification("verified")
		s.emit(ctx, audit.EventOTPVerified, phone, msg)
		return &Result{Success: true, Phone: phone, Message: msg}
	}

	s.metrics.ObserveVerification(string(code))
	if countAgainstIP && s.failures != nil && req.IP != "" {
		if _, err := s.failures.RecordFailure(ctx, req.IP, antibotmodels.CounterFailedOTPAttempts); err != nil {
			s.logger.ErrorContext(ctx, "failed to record otp failure", "error", err)
		}
	}
	s.emit(ctx, audit.EventOTPVerifyFailed, phone, msg)
	return &Result{Phone: phone, Code: code, Message: msg}
}

func (s *Service) appendLog(ctx context.Context, entry *models.PhoneVerificationLog) {
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append phone log",
			"action", string(entry.Action),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, kind audit.EventType, phone, description string) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, audit.SecurityEvent{
		Type:        kind,
		Subject:     privacy.MaskPhone(phone),
		Description: description,
	})
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

func randomDigits(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
