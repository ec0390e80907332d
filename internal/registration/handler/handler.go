// Package handler serves the /auth registration and email verification
// endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wishguard/internal/antibot/device"
	emailmodels "wishguard/internal/email/models"
	emailservice "wishguard/internal/email/service"
	ratelimitmw "wishguard/internal/ratelimit/middleware"
	"wishguard/internal/registration/service"
	dErrors "wishguard/pkg/domain-errors"
	audit "wishguard/pkg/platform/audit"
	"wishguard/pkg/platform/httputil"
	"wishguard/pkg/requestcontext"
)

type Registrar interface {
	SendOTP(ctx context.Context, req service.SendOTPRequest) (*service.SendOTPOutcome, error)
	Register(ctx context.Context, req service.RegisterRequest) (*service.Registered, error)
}

type EmailVerifier interface {
	Send(ctx context.Context, req emailservice.SendRequest) (*emailservice.Sent, error)
	Verify(ctx context.Context, req emailservice.VerifyRequest) (*emailservice.Result, error)
}

type Handler struct {
	registrar Registrar
	emails    EmailVerifier
	events    audit.Emitter
	logger    *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithEmailVerifier mounts the email verification endpoints.
func WithEmailVerifier(emails EmailVerifier) Option {
	return func(h *Handler) {
		h.emails = emails
	}
}

func WithAuditPublisher(events audit.Emitter) Option {
	return func(h *Handler) {
		h.events = events
	}
}

func New(registrar Registrar, opts ...Option) *Handler {
	h := &Handler{registrar: registrar}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/send-otp/", h.handleSendOTP)
		r.Post("/register-with-otp/", h.handleRegister)
		if h.emails != nil {
			r.Post("/send-email-verification/", h.handleSendEmail)
			r.Post("/verify-email/", h.handleVerifyEmail)
		}
	})
}

func (h *Handler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SendOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.PhoneNumber == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "phone_number is required"))
		return
	}

	out, err := h.registrar.SendOTP(ctx, service.SendOTPRequest{
		Client:    clientFrom(r),
		Phone:     req.PhoneNumber,
		CaptchaID: req.CaptchaID,
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to send otp")
		return
	}

	switch {
	case out.RateLimit != nil:
		ratelimitmw.AddHeaders(w, out.RateLimit)
		ratelimitmw.WriteExceeded(w, out.RateLimit, out.Message)
	case out.RequireCaptcha:
		httputil.WriteJSON(w, http.StatusOK, SendOTPResponse{
			Success:        false,
			Message:        out.Message,
			RequireCaptcha: true,
			ErrorCode:      string(dErrors.CodeCaptchaRequired),
		})
	default:
		httputil.WriteJSON(w, http.StatusOK, SendOTPResponse{
			Success:   true,
			Message:   out.Message,
			ExpiresIn: int(out.Issued.ExpiresIn.Seconds()),
		})
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var raw json.RawMessage
	if err := httputil.DecodeJSON(r, &raw); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var req RegisterRequest
	var fields map[string]any
	if err := json.Unmarshal(raw, &req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid JSON body"))
		return
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid JSON body"))
		return
	}
	if req.PhoneNumber == "" || req.OTPCode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "phone_number and otp_code are required"))
		return
	}

	reg, err := h.registrar.Register(ctx, service.RegisterRequest{
		Client:    clientFrom(r),
		Phone:     req.PhoneNumber,
		Code:      req.OTPCode,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Telemetry: req.Behavior,
		Fields:    fields,
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to register user")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "registration completed",
		User:    newUserView(reg.User),
		Tokens:  newTokensView(reg.Tokens),
	})
}

func (h *Handler) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SendEmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, ok := emailmodels.ParseVerificationType(req.VerificationType)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "unsupported verification_type"))
		return
	}

	sent, err := h.emails.Send(ctx, emailservice.SendRequest{
		Email:     req.Email,
		Type:      kind,
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to send verification email")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EmailResponse{
		Success:   true,
		Message:   "verification email sent",
		Email:     sent.Email,
		ExpiresIn: int(sent.ExpiresIn.Seconds()),
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyEmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.emails.Verify(ctx, emailservice.VerifyRequest{
		Token:     req.Token,
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to verify email")
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	httputil.WriteJSON(w, status, EmailResponse{
		Success:   res.Success,
		Message:   res.Message,
		Email:     res.Email,
		ErrorCode: string(res.Code),
	})
}

func clientFrom(r *http.Request) service.Client {
	ctx := r.Context()
	return service.Client{
		SessionID: requestcontext.SessionID(ctx),
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Device:    device.AttributesFromRequest(r),
	}
}

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
