package models

import "time"

// Action names a rate-limited operation. Keys are "<action>:<identifier>".
type Action string

const (
	ActionOTPSend      Action = "otp_send"
	ActionRegistration Action = "registration_attempts"
	ActionCaptcha      Action = "captcha_generate"
	ActionEmailAddress Action = "email_verification"
	ActionEmailIP      Action = "email_verification_ip"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	Degraded   bool      `json:"-"`
}
