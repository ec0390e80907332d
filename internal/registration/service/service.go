// Package service orchestrates phone registration: bot screening, rate limits,
// the captcha gate, OTP issue and verify, and account creation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/metrics"
	antibotmodels "wishguard/internal/antibot/models"
	"wishguard/internal/antibot/risk"
	"wishguard/internal/jwttoken"
	otpmodels "wishguard/internal/otp/models"
	otpservice "wishguard/internal/otp/service"
	ratelimitmodels "wishguard/internal/ratelimit/models"
	ratelimitservice "wishguard/internal/ratelimit/service"
	"wishguard/internal/users"
	dErrors "wishguard/pkg/domain-errors"
	pemail "wishguard/pkg/email"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/privacy"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/requestcontext"
)

type BotChecker interface {
	Evaluate(ctx context.Context, req risk.Request) (*antibotmodels.Decision, error)
}

type Limiter interface {
	Check(ctx context.Context, action ratelimitmodels.Action, identifier string, limit config.Limit) *ratelimitmodels.Result
}

// CaptchaGate reports whether the session solved the given challenge recently.
type CaptchaGate interface {
	IsSatisfied(ctx context.Context, id, sessionID string) (bool, error)
}

type OTP interface {
	Issue(ctx context.Context, req otpservice.IssueRequest) (*otpservice.Issued, error)
	Verify(ctx context.Context, req otpservice.VerifyRequest) (*otpservice.Result, error)
}

type UserStore interface {
	Create(ctx context.Context, u *users.User) error
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
}

type DeviceRecorder interface {
	RecordSuccess(ctx context.Context, attrs antibotmodels.DeviceAttributes) (*antibotmodels.DeviceFingerprint, error)
}

type IPRecorder interface {
	RecordSuccess(ctx context.Context, ip string) (*antibotmodels.IPReputation, error)
}

type TokenIssuer interface {
	Issue(userID, sessionID string) (*jwttoken.Pair, error)
}

// Client identifies the caller of one request.
type Client struct {
	SessionID string
	IP        string
	UserAgent string
	Device    antibotmodels.DeviceAttributes
}

type SendOTPRequest struct {
	Client    Client
	Phone     string
	CaptchaID string
}

// SendOTPOutcome is either an issued code, a captcha demand, or a rate limit
// rejection carrying the counter state for response headers.
type SendOTPOutcome struct {
	Issued         *otpservice.Issued
	RequireCaptcha bool
	RateLimit      *ratelimitmodels.Result
	Message        string
}

type RegisterRequest struct {
	Client    Client
	Phone     string
	Code      string
	FirstName string
	LastName  string
	Email     string
	Telemetry *antibotmodels.Telemetry
	// Fields is the raw request body, inspected for honeypot values.
	Fields map[string]any
}

type Registered struct {
	User   *users.User
	Tokens *jwttoken.Pair
}

const (
	msgBotDetected     = "suspicious request detected"
	msgCaptchaRequired = "please solve the security challenge first"
	msgInvalidRequest  = "invalid request"
	msgPhoneTaken      = "a user with this phone number is already registered"
	msgRegistered      = "registration completed"
	msgCodeSent        = "verification code sent"
)

type Service struct {
	checker BotChecker
	limiter Limiter
	captcha CaptchaGate
	otp     OTP
	users   UserStore
	devices DeviceRecorder
	ips     IPRecorder
	tokens  TokenIssuer
	cfg     config.RiskConfig
	events  audit.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg config.RiskConfig) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithRateLimiter(limiter Limiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// WithSuccessRecorders credits the device and IP after an account is created.
func WithSuccessRecorders(devices DeviceRecorder, ips IPRecorder) Option {
	return func(s *Service) {
		s.devices = devices
		s.ips = ips
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

func New(checker BotChecker, captcha CaptchaGate, otp OTP, store UserStore, tokens TokenIssuer, opts ...Option) (*Service, error) {
	switch {
	case checker == nil:
		return nil, errors.New("bot checker is required")
	case captcha == nil:
		return nil, errors.New("captcha gate is required")
	case otp == nil:
		return nil, errors.New("otp service is required")
	case store == nil:
		return nil, errors.New("user store is required")
	case tokens == nil:
		return nil, errors.New("token issuer is required")
	}
	s := &Service{
		checker: checker,
		captcha: captcha,
		otp:     otp,
		users:   store,
		tokens:  tokens,
		cfg:     config.Default(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// SendOTP screens the caller and, when nothing stands in the way, issues a
// registration code to the phone.
func (s *Service) SendOTP(ctx context.Context, req SendOTPRequest) (*SendOTPOutcome, error) {
	phone, ok := otpmodels.NormalizePhone(req.Phone)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid phone number")
	}

	decision, err := s.screen(ctx, req.Client, nil)
	if err != nil {
		return nil, err
	}

	if res, limit := s.limit(ctx, req.Client.IP, phone); res != nil {
		return &SendOTPOutcome{RateLimit: res, Message: ratelimitservice.Message(limit)}, nil
	}

	if decision.RequireCaptcha {
		satisfied, err := s.captchaSatisfied(ctx, req)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			return &SendOTPOutcome{RequireCaptcha: true, Message: msgCaptchaRequired}, nil
		}
	}

	issued, err := s.otp.Issue(ctx, otpservice.IssueRequest{
		Phone:     phone,
		Type:      otpmodels.TypeRegistration,
		IP:        req.Client.IP,
		UserAgent: req.Client.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	return &SendOTPOutcome{Issued: issued, Message: msgCodeSent}, nil
}

// Register verifies the code and creates the account. Honeypot values reject
// the request before anything else is evaluated.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Registered, error) {
	phone, ok := otpmodels.NormalizePhone(req.Phone)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid phone number")
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "otp_code is required")
	}

	if risk.HoneypotTriggered(s.cfg.Honeypot.Fields, req.Fields) {
		s.metrics.IncrementHoneypot()
		s.emit(ctx, audit.EventHoneypotTriggered, phone, "hidden form field filled", nil)
		return nil, dErrors.New(dErrors.CodeInvalidRequest, msgInvalidRequest)
	}

	if _, err := s.screen(ctx, req.Client, req.Telemetry); err != nil {
		return nil, err
	}

	res, err := s.otp.Verify(ctx, otpservice.VerifyRequest{
		Phone:     phone,
		Type:      otpmodels.TypeRegistration,
		Code:      req.Code,
		IP:        req.Client.IP,
		UserAgent: req.Client.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, dErrors.New(res.Code, res.Message)
	}

	exists, err := s.users.ExistsByPhone(ctx, phone)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if exists {
		return nil, dErrors.New(dErrors.CodeConflict, msgPhoneTaken)
	}

	u := s.newUser(ctx, phone, req)
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, msgPhoneTaken)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.recordSuccess(ctx, req.Client)
	tokens, err := s.tokens.Issue(u.ID, req.Client.SessionID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", u.ID,
		"phone", privacy.MaskPhone(phone),
		"ip", privacy.AnonymizeIP(req.Client.IP),
	)
	s.emit(ctx, audit.EventUserRegistered, phone, msgRegistered, map[string]string{"user_id": u.ID})
	return &Registered{User: u, Tokens: tokens}, nil
}

func (s *Service) screen(ctx context.Context, c Client, telemetry *antibotmodels.Telemetry) (*antibotmodels.Decision, error) {
	decision, err := s.checker.Evaluate(ctx, risk.Request{
		SessionID: c.SessionID,
		IP:        c.IP,
		Device:    c.Device,
		Telemetry: telemetry,
		IsAttempt: true,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to run bot check")
	}
	if decision.IsBot {
		return nil, dErrors.New(dErrors.CodeBotDetected, msgBotDetected)
	}
	return decision, nil
}

// limit applies the per-IP registration budget, then the per-phone send
// budget. It returns the first rejection.
func (s *Service) limit(ctx context.Context, ip, phone string) (*ratelimitmodels.Result, config.Limit) {
	if s.limiter == nil {
		return nil, config.Limit{}
	}
	if ip != "" {
		limit := s.cfg.RateLimits.RegistrationPerIP
		if res := s.limiter.Check(ctx, ratelimitmodels.ActionRegistration, ip, limit); !res.Allowed {
			return res, limit
		}
	}
	limit := s.cfg.RateLimits.OTPSendPerPhone
	if res := s.limiter.Check(ctx, ratelimitmodels.ActionOTPSend, phone, limit); !res.Allowed {
		return res, limit
	}
	return nil, config.Limit{}
}

func (s *Service) captchaSatisfied(ctx context.Context, req SendOTPRequest) (bool, error) {
	if strings.TrimSpace(req.CaptchaID) == "" {
		return false, nil
	}
	ok, err := s.captcha.IsSatisfied(ctx, req.CaptchaID, req.Client.SessionID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check captcha")
	}
	return ok, nil
}

func (s *Service) newUser(ctx context.Context, phone string, req RegisterRequest) *users.User {
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	address := strings.TrimSpace(req.Email)
	if first == "" && last == "" && pemail.Valid(address) {
		first, last = pemail.DeriveNameFromEmail(address)
	}
	return &users.User{
		ID:          s.newID(),
		PhoneNumber: phone,
		FirstName:   first,
		LastName:    last,
		Email:       address,
		CreatedAt:   s.now(ctx),
	}
}

// recordSuccess credits the device and IP. Failures are logged and do not
// undo the registration.
func (s *Service) recordSuccess(ctx context.Context, c Client) {
	if s.devices != nil {
		if _, err := s.devices.RecordSuccess(ctx, c.Device); err != nil {
			s.logger.WarnContext(ctx, "failed to credit device", "error", err)
		}
	}
	if s.ips != nil && c.IP != "" {
		if _, err := s.ips.RecordSuccess(ctx, c.IP); err != nil {
			s.logger.WarnContext(ctx, "failed to credit ip", "error", err)
		}
	}
}

func (s *Service) emit(ctx context.Context, kind audit.EventType, subject, description string, details map[string]string) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, audit.SecurityEvent{
		Type:        kind,
		Subject:     subject,
		Description: description,
		Details:     details,
	})
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}
