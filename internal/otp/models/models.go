package models

import (
	"fmt"
	"strings"
	"time"
)

// Type scopes a code to the flow it was issued for.
type Type string

const (
	TypeRegistration      Type = "REGISTRATION"
	TypeLogin             Type = "LOGIN"
	TypePasswordReset     Type = "PASSWORD_RESET"
	TypePhoneVerification Type = "PHONE_VERIFICATION"
)

// ParseType defaults an empty type to REGISTRATION.
func ParseType(raw string) (Type, bool) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(raw))); t {
	case "":
		return TypeRegistration, true
	case TypeRegistration, TypeLogin, TypePasswordReset, TypePhoneVerification:
		return t, true
	default:
		return "", false
	}
}

// Message renders the SMS body for a code of this type.
func (t Type) Message(code string) string {
	switch t {
	case TypeRegistration:
		return fmt.Sprintf("Your wishlist sign-up code: %s", code)
	case TypeLogin:
		return fmt.Sprintf("Your wishlist login code: %s", code)
	case TypePasswordReset:
		return fmt.Sprintf("Your password reset code: %s", code)
	case TypePhoneVerification:
		return fmt.Sprintf("Your phone verification code: %s", code)
	default:
		return fmt.Sprintf("Your verification code: %s", code)
	}
}

// State is derived from an OTP row at a point in time.
type State string

const (
	StatePending   State = "PENDING"
	StateVerified  State = "VERIFIED"
	StateExpired   State = "EXPIRED"
	StateExhausted State = "EXHAUSTED"
)

// OTPVerification is one issued code. Only the bcrypt hash of the code is stored.
type OTPVerification struct {
	ID            string
	PhoneNumber   string
	Type          Type
	CodeHash      string
	IsVerified    bool
	AttemptsCount int
	MaxAttempts   int
	IP            string
	UserAgent     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	VerifiedAt    *time.Time
}

func (o *OTPVerification) StateAt(now time.Time) State {
	switch {
	case o.IsVerified:
		return StateVerified
	case now.After(o.ExpiresAt):
		return StateExpired
	case o.AttemptsCount >= o.MaxAttempts:
		return StateExhausted
	default:
		return StatePending
	}
}

// LogAction names the operation a phone log entry records.
type LogAction string

const (
	ActionSend   LogAction = "OTP_SEND"
	ActionVerify LogAction = "OTP_VERIFY"
)

// PhoneVerificationLog is appended for every send and verify attempt,
// successful or not.
type PhoneVerificationLog struct {
	PhoneNumber string
	Action      LogAction
	Type        Type
	IP          string
	UserAgent   string
	Success     bool
	ErrorCode   string
	CreatedAt   time.Time
}
