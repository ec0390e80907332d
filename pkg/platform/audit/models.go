// Package audit is the security event trail: every detection, block and
// verification failure is emitted as a SecurityEvent and fanned out to sinks.
package audit

import (
	"context"
	"time"
)

// EventType names a security-relevant occurrence.
type EventType string

const (
	EventBotDetected       EventType = "BOT_DETECTED"
	EventHoneypotTriggered EventType = "HONEYPOT_TRIGGERED"
	EventIPBlocked         EventType = "IP_BLOCKED"
	EventCaptchaFailed     EventType = "CAPTCHA_FAILED"
	EventCaptchaSolved     EventType = "CAPTCHA_SOLVED"
	EventOTPSent           EventType = "OTP_SENT"
	EventOTPVerifyFailed   EventType = "OTP_VERIFY_FAILED"
	EventOTPVerified       EventType = "OTP_VERIFIED"
	EventRateLimited       EventType = "RATE_LIMITED"
	EventUserRegistered    EventType = "USER_REGISTERED"
	EventEmailVerification EventType = "EMAIL_VERIFICATION_SENT"
	EventEmailVerifyFailed EventType = "EMAIL_VERIFY_FAILED"
	EventDisposableEmail   EventType = "DISPOSABLE_EMAIL_BLOCKED"
	EventInternalError     EventType = "INTERNAL_ERROR"
)

// Severity levels for SIEM routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var defaultSeverities = map[EventType]Severity{
	EventBotDetected:       SeverityWarning,
	EventHoneypotTriggered: SeverityWarning,
	EventIPBlocked:         SeverityCritical,
	EventCaptchaFailed:     SeverityWarning,
	EventCaptchaSolved:     SeverityInfo,
	EventOTPSent:           SeverityInfo,
	EventOTPVerifyFailed:   SeverityWarning,
	EventOTPVerified:       SeverityInfo,
	EventRateLimited:       SeverityWarning,
	EventUserRegistered:    SeverityInfo,
	EventEmailVerification: SeverityInfo,
	EventEmailVerifyFailed: SeverityWarning,
	EventDisposableEmail:   SeverityWarning,
	EventInternalError:     SeverityCritical,
}

// DefaultSeverity returns the severity for an event type. Unknown types are info.
func (t EventType) DefaultSeverity() Severity {
	if sev, ok := defaultSeverities[t]; ok {
		return sev
	}
	return SeverityInfo
}

// SecurityEvent captures one security-relevant action with full request context.
// The IP is kept unmasked: this trail is the forensic record.
type SecurityEvent struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Type        EventType         `json:"event_type"`
	Severity    Severity          `json:"severity"`
	IP          string            `json:"ip_address"`
	UserAgent   string            `json:"user_agent,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	Description string            `json:"description"`
	Details     map[string]string `json:"details,omitempty"`
}

// Store persists security events synchronously.
type Store interface {
	Append(ctx context.Context, event SecurityEvent) error
}

// Emitter is the narrow port services depend on.
type Emitter interface {
	Emit(ctx context.Context, event SecurityEvent)
}
