// Package captcha issues challenge/response pairs bound to a session and
// verifies answers within a fixed attempt budget and expiry.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/metrics"
	"wishguard/internal/antibot/models"
	dErrors "wishguard/pkg/domain-errors"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/sentinel"
	"wishguard/pkg/requestcontext"
)

// Store persists challenges. RecordAttempt must atomically increment
// attempts_count only while the challenge is unsolved, unexpired and under
// budget, returning sentinel.ErrExhausted otherwise. MarkSolved must only
// flip an unsolved challenge.
type Store interface {
	Create(ctx context.Context, c *models.CaptchaChallenge) error
	Get(ctx context.Context, id, sessionID string) (*models.CaptchaChallenge, error)
	RecordAttempt(ctx context.Context, id, answer string, now time.Time) (*models.CaptchaChallenge, error)
	MarkSolved(ctx context.Context, id string, now time.Time) (bool, error)
}

// FailureRecorder receives failed verifications for the caller's IP.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, ip string, counter models.IPCounter) (*models.IPReputation, error)
}

// Result is the outcome of a verification. Code is empty on success.
type Result struct {
	Success bool
	Code    dErrors.Code
	Message string
}

const (
	msgSolved        = "captcha solved"
	msgNotFound      = "challenge not found"
	msgAlreadySolved = "challenge already solved"
	msgExpired       = "challenge expired, request a new one"
	msgExhausted     = "too many attempts, request a new challenge"
	msgWrongAnswer   = "wrong answer"
)

type Manager struct {
	store Store
	cfg   config.CaptchaConfig
	// rngMu guards rng, which is not safe for concurrent use.
	rngMu    sync.Mutex
	rng      *rand.Rand
	verifier TokenVerifier
	failures FailureRecorder
	events   audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    func() time.Time
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithConfig(cfg config.CaptchaConfig) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithRand fixes the random source used for questions.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) {
		m.rng = rng
	}
}

// WithTokenVerifier enables the RECAPTCHA challenge type.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(m *Manager) {
		m.verifier = v
	}
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(m *Manager) {
		m.failures = r
	}
}

func WithAuditPublisher(events audit.Emitter) Option {
	return func(m *Manager) {
		m.events = events
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func New(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("captcha store is required")
	}
	m := &Manager{
		store: store,
		cfg:   config.Default().Captcha,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m, nil
}

// Generate creates a challenge of the given type for the session.
func (m *Manager) Generate(ctx context.Context, sessionID, ip string, kind models.ChallengeType) (*models.CaptchaChallenge, error) {
	now := m.now(ctx)
	c := &models.CaptchaChallenge{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		IP:          ip,
		Type:        kind,
		MaxAttempts: m.cfg.MaxAttempts,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.TTL),
	}

	switch kind {
	case models.ChallengeMath:
		m.rngMu.Lock()
		c.Question, c.CorrectAnswer = mathQuestion(m.cfg, m.rng)
		m.rngMu.Unlock()
	case models.ChallengeText, models.ChallengeImage:
		m.rngMu.Lock()
		code := textCode(m.cfg, m.rng)
		m.rngMu.Unlock()
		c.Question, c.CorrectAnswer = code, code
	case models.ChallengeRecaptcha:
		if m.verifier == nil {
			return nil, dErrors.New(dErrors.CodeInvalidRequest, "recaptcha challenges are not enabled")
		}
	default:
		return nil, dErrors.New(dErrors.CodeInvalidRequest, fmt.Sprintf("unsupported challenge type %q", kind))
	}

	if err := m.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save captcha challenge")
	}
	return c, nil
}

// Verify checks an answer for a challenge owned by the session. Lifecycle
// failures and wrong answers come back as an unsuccessful Result; the error
// is reserved for infrastructure failures. Every failure except an unknown
// challenge counts against ip.
func (m *Manager) Verify(ctx context.Context, id, sessionID, answer, ip string) (*Result, error) {
	now := m.now(ctx)
	c, err := m.store.Get(ctx, id, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return m.fail(ctx, ip, id, dErrors.CodeNotFound, msgNotFound, false), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load captcha challenge")
	}

	if res := m.lifecycle(ctx, c, ip, now); res != nil {
		return res, nil
	}

	c, err = m.store.RecordAttempt(ctx, id, answer, now)
	if errors.Is(err, sentinel.ErrExhausted) {
		// Lost a race with a concurrent attempt; re-read to report the state.
		if c, err = m.store.Get(ctx, id, sessionID); err == nil {
			if res := m.lifecycle(ctx, c, ip, now); res != nil {
				return res, nil
			}
		}
		return m.fail(ctx, ip, id, dErrors.CodeExhausted, msgExhausted, true), nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record captcha attempt")
	}

	correct, err := m.check(ctx, c, answer, ip)
	if err != nil {
		return nil, err
	}
	if !correct {
		left := c.MaxAttempts - c.AttemptsCount
		return m.fail(ctx, ip, id, dErrors.CodeInvalidRequest,
			fmt.Sprintf("%s, %d attempts left", msgWrongAnswer, left), true), nil
	}

	solved, err := m.store.MarkSolved(ctx, id, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark captcha solved")
	}
	if !solved {
		return m.fail(ctx, ip, id, dErrors.CodeAlreadySolved, msgAlreadySolved, true), nil
	}

	m.metrics.ObserveCaptcha("solved")
	m.emit(ctx, audit.EventCaptchaSolved, id, "captcha solved")
	return &Result{Success: true, Message: msgSolved}, nil
}

// IsSatisfied reports whether the session solved the challenge within the
// challenge TTL. It gates flows that asked the caller for a CAPTCHA.
func (m *Manager) IsSatisfied(ctx context.Context, id, sessionID string) (bool, error) {
	if id == "" {
		return false, nil
	}
	c, err := m.store.Get(ctx, id, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load captcha challenge")
	}
	if !c.IsSolved || c.SolvedAt == nil {
		return false, nil
	}
	return m.now(ctx).Sub(*c.SolvedAt) <= m.cfg.TTL, nil
}

func (m *Manager) lifecycle(ctx context.Context, c *models.CaptchaChallenge, ip string, now time.Time) *Result {
	switch c.StateAt(now) {
	case models.ChallengeSolved:
		return m.fail(ctx, ip, c.ID, dErrors.CodeAlreadySolved, msgAlreadySolved, true)
	case models.ChallengeExpired:
		return m.fail(ctx, ip, c.ID, dErrors.CodeExpired, msgExpired, true)
	case models.ChallengeExhausted:
		return m.fail(ctx, ip, c.ID, dErrors.CodeExhausted, msgExhausted, true)
	default:
		return nil
	}
}

func (m *Manager) check(ctx context.Context, c *models.CaptchaChallenge, answer, ip string) (bool, error) {
	if c.Type != models.ChallengeRecaptcha {
		return normalizeAnswer(answer) == normalizeAnswer(c.CorrectAnswer), nil
	}
	if m.verifier == nil {
		return false, dErrors.New(dErrors.CodeInvalidRequest, "recaptcha challenges are not enabled")
	}
	ok, err := m.verifier.VerifyToken(ctx, answer, ip)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify recaptcha token")
	}
	return ok, nil
}

func (m *Manager) fail(ctx context.Context, ip, id string, code dErrors.Code, msg string, countAgainstIP bool) *Result {
	m.metrics.ObserveCaptcha(string(code))
	if countAgainstIP && m.failures != nil && ip != "" {
		if _, err := m.failures.RecordFailure(ctx, ip, models.CounterCaptchaFailures); err != nil && m.logger != nil {
			m.logger.ErrorContext(ctx, "failed to record captcha failure", "error", err)
		}
	}
	m.emit(ctx, audit.EventCaptchaFailed, id, msg)
	return &Result{Code: code, Message: msg}
}

func (m *Manager) emit(ctx context.Context, kind audit.EventType, id, description string) {
	if m.events == nil {
		return
	}
	m.events.Emit(ctx, audit.SecurityEvent{
		Type:        kind,
		Subject:     id,
		Description: description,
	})
}

func (m *Manager) now(ctx context.Context) time.Time {
	if m.clock != nil {
		return m.clock()
	}
	return requestcontext.Now(ctx)
}
