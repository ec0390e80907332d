// Package handler serves the /anti-bot endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wishguard/internal/antibot/captcha"
	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/device"
	"wishguard/internal/antibot/models"
	"wishguard/internal/antibot/risk"
	ratelimitmodels "wishguard/internal/ratelimit/models"
	dErrors "wishguard/pkg/domain-errors"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/httputil"
	"wishguard/pkg/requestcontext"
)

// CaptchaService issues and verifies challenges.
type CaptchaService interface {
	Generate(ctx context.Context, sessionID, ip string, kind models.ChallengeType) (*models.CaptchaChallenge, error)
	Verify(ctx context.Context, id, sessionID, answer, ip string) (*captcha.Result, error)
}

// BotChecker runs the aggregate bot check.
type BotChecker interface {
	Evaluate(ctx context.Context, req risk.Request) (*models.Decision, error)
}

// DeviceTracker records a sighting without counting an attempt.
type DeviceTracker interface {
	Track(ctx context.Context, attrs models.DeviceAttributes, isAttempt bool) (*models.DeviceFingerprint, error)
}

// IPLookup reads the caller's reputation row.
type IPLookup interface {
	Lookup(ctx context.Context, ip string) (*models.IPReputation, error)
}

// BehaviorStats summarizes recent analyses.
type BehaviorStats interface {
	Stats(ctx context.Context, since time.Time) (models.BehaviorStats, error)
}

// Limiter guards challenge generation per client IP.
type Limiter interface {
	PerIP(action ratelimitmodels.Action, limit config.Limit) func(http.Handler) http.Handler
}

type Handler struct {
	captcha CaptchaService
	checker BotChecker
	devices DeviceTracker
	ips     IPLookup
	stats   BehaviorStats
	limiter Limiter
	limit   config.Limit
	events  audit.Emitter
	logger  *slog.Logger
	debug   bool
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithDebug enables the check-status endpoint.
func WithDebug(debug bool) Option {
	return func(h *Handler) {
		h.debug = debug
	}
}

// WithDebugSources supplies what check-status reports on.
func WithDebugSources(checker BotChecker, devices DeviceTracker, ips IPLookup, stats BehaviorStats) Option {
	return func(h *Handler) {
		h.checker = checker
		h.devices = devices
		h.ips = ips
		h.stats = stats
	}
}

// WithRateLimit limits challenge generation per IP.
func WithRateLimit(limiter Limiter, limit config.Limit) Option {
	return func(h *Handler) {
		h.limiter = limiter
		h.limit = limit
	}
}

func WithAuditPublisher(events audit.Emitter) Option {
	return func(h *Handler) {
		h.events = events
	}
}

func New(captchaService CaptchaService, opts ...Option) *Handler {
	h := &Handler{captcha: captchaService}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// Register mounts the anti-bot routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/anti-bot", func(r chi.Router) {
		generate := http.Handler(http.HandlerFunc(h.handleGenerateCaptcha))
		if h.limiter != nil {
			generate = h.limiter.PerIP(ratelimitmodels.ActionCaptcha, h.limit)(generate)
		}
		r.Method(http.MethodPost, "/generate-captcha/", generate)
		r.Post("/verify-captcha/", h.handleVerifyCaptcha)
		r.Post("/check-status/", h.handleCheckStatus)
	})
}

func (h *Handler) handleGenerateCaptcha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req GenerateCaptchaRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, ok := models.ParseChallengeType(req.Type)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "unsupported challenge type"))
		return
	}

	c, err := h.captcha.Generate(ctx, requestcontext.SessionID(ctx), requestcontext.ClientIP(ctx), kind)
	if err != nil {
		h.writeError(ctx, w, err, "failed to generate captcha")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, GenerateCaptchaResponse{
		Success: true,
		Captcha: CaptchaView{
			ID:          c.ID,
			Question:    c.Question,
			Type:        string(c.Type),
			ExpiresAt:   c.ExpiresAt.UTC().Format(time.RFC3339),
			MaxAttempts: c.MaxAttempts,
		},
	})
}

func (h *Handler) handleVerifyCaptcha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyCaptchaRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.CaptchaID) == "" || strings.TrimSpace(req.Answer) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "captcha_id and answer are required"))
		return
	}

	res, err := h.captcha.Verify(ctx, req.CaptchaID, requestcontext.SessionID(ctx), req.Answer, requestcontext.ClientIP(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "failed to verify captcha")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyCaptchaResponse{
		Success:   res.Success,
		Message:   res.Message,
		ErrorCode: string(res.Code),
	})
}

func (h *Handler) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.debug || h.checker == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "this endpoint is only available in debug mode"))
		return
	}

	var req CheckStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	sessionID := requestcontext.SessionID(ctx)
	ip := requestcontext.ClientIP(ctx)
	attrs := device.AttributesFromRequest(r)

	decision, err := h.checker.Evaluate(ctx, risk.Request{
		SessionID: sessionID,
		IP:        ip,
		Device:    attrs,
		Telemetry: req.Behavior,
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to run bot check")
		return
	}

	fp, err := h.devices.Track(ctx, attrs, false)
	if err != nil {
		h.writeError(ctx, w, err, "failed to load device")
		return
	}
	rep, err := h.ips.Lookup(ctx, ip)
	if err != nil {
		h.writeError(ctx, w, err, "failed to load ip reputation")
		return
	}

	resp := CheckStatusResponse{
		Success:   true,
		BotCheck:  decision,
		Device:    newDeviceView(fp),
		IP:        newIPView(rep, requestcontext.Now(ctx)),
		SessionID: sessionID,
	}
	if h.stats != nil {
		stats, err := h.stats.Stats(ctx, requestcontext.Now(ctx).Add(-24*time.Hour))
		if err != nil {
			h.logger.WarnContext(ctx, "behavior stats unavailable", "error", err)
		} else {
			resp.Behavior24h = &stats
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeError logs internal failures with request context and records them as
// security events before answering.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		if h.events != nil {
			h.events.Emit(ctx, audit.SecurityEvent{
				Type:        audit.EventInternalError,
				Description: msg,
				Details:     map[string]string{"error": err.Error()},
			})
		}
	}
	httputil.WriteError(w, err)
}
