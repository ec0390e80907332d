package models

import (
	"strings"
	"time"
)

// VerificationType scopes a token to the flow that requested it.
type VerificationType string

const (
	TypeRegister      VerificationType = "REGISTER"
	TypeLogin         VerificationType = "LOGIN"
	TypeResetPassword VerificationType = "RESET_PASSWORD"
	TypeChangeEmail   VerificationType = "CHANGE_EMAIL"
)

// ParseVerificationType defaults an empty type to REGISTER.
func ParseVerificationType(raw string) (VerificationType, bool) {
	switch t := VerificationType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case "":
		return TypeRegister, true
	case TypeRegister, TypeLogin, TypeResetPassword, TypeChangeEmail:
		return t, true
	default:
		return "", false
	}
}

// Subject is the mail subject line for the type.
func (t VerificationType) Subject() string {
	switch t {
	case TypeRegister:
		return "Confirm your wishlist account"
	case TypeLogin:
		return "Confirm your sign-in"
	case TypeResetPassword:
		return "Reset your password"
	case TypeChangeEmail:
		return "Confirm your new email address"
	default:
		return "Confirm your email address"
	}
}

type State string

const (
	StatePending   State = "PENDING"
	StateVerified  State = "VERIFIED"
	StateExpired   State = "EXPIRED"
	StateExhausted State = "EXHAUSTED"
)

type Verification struct {
	ID            string
	Email         string
	Token         string
	Type          VerificationType
	IsVerified    bool
	AttemptsCount int
	MaxAttempts   int
	IP            string
	UserAgent     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	VerifiedAt    *time.Time
}

func (v *Verification) StateAt(now time.Time) State {
	switch {
	case v.IsVerified:
		return StateVerified
	case now.After(v.ExpiresAt):
		return StateExpired
	case v.AttemptsCount >= v.MaxAttempts:
		return StateExhausted
	default:
		return StatePending
	}
}

type LogAction string

const (
	ActionSend   LogAction = "SEND"
	ActionVerify LogAction = "VERIFY"
)

// LogEntry records one send or verify attempt. Email is empty when a verify
// names an unknown token.
type LogEntry struct {
	Email        string
	Action       LogAction
	Type         VerificationType
	IP           string
	UserAgent    string
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}
