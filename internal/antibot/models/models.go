package models

import (
	"strings"
	"time"
)

// DeviceAttributes are the client-supplied headers a fingerprint is derived from.
type DeviceAttributes struct {
	UserAgent        string `json:"user_agent"`
	AcceptLanguage   string `json:"accept_language"`
	AcceptEncoding   string `json:"accept_encoding"`
	Platform         string `json:"platform"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
}

// MissingMetadata reports whether the client omitted screen or timezone data.
func (a DeviceAttributes) MissingMetadata() bool {
	return strings.TrimSpace(a.ScreenResolution) == "" || strings.TrimSpace(a.Timezone) == ""
}

// DeviceFingerprint is the pseudo-identity of a browser instance.
type DeviceFingerprint struct {
	Hash                    string
	Attributes              DeviceAttributes
	RegistrationAttempts    int
	SuccessfulRegistrations int
	RiskScore               float64
	IsSuspicious            bool
	FirstSeen               time.Time
	LastSeen                time.Time
}

// SuccessRate is successful_registrations / registration_attempts, or 1 with no attempts.
func (d *DeviceFingerprint) SuccessRate() float64 {
	if d.RegistrationAttempts == 0 {
		return 1
	}
	return float64(d.SuccessfulRegistrations) / float64(d.RegistrationAttempts)
}

// IPReputation is the per-address reputation row.
type IPReputation struct {
	IP                      string
	RegistrationAttempts    int
	SuccessfulRegistrations int
	FailedOTPAttempts       int
	CaptchaFailures         int
	IsVPN                   bool
	RiskScore               float64
	IsBlocked               bool
	BlockedUntil            *time.Time // nil with IsBlocked means indefinite
	BlockReason             string
	FirstSeen               time.Time
	LastSeen                time.Time
}

// BlockedAt reports whether the block is in force at now.
func (r *IPReputation) BlockedAt(now time.Time) bool {
	if !r.IsBlocked {
		return false
	}
	return r.BlockedUntil == nil || r.BlockedUntil.After(now)
}

// ClearExpiredBlock lifts a block whose deadline has passed. It reports whether
// anything changed.
func (r *IPReputation) ClearExpiredBlock(now time.Time) bool {
	if r.IsBlocked && r.BlockedUntil != nil && !r.BlockedUntil.After(now) {
		r.IsBlocked = false
		r.BlockedUntil = nil
		r.BlockReason = ""
		return true
	}
	return false
}

// FailureRatio is (failed_otp + captcha_failures) / (attempts + failed_otp).
func (r *IPReputation) FailureRatio() float64 {
	denom := r.RegistrationAttempts + r.FailedOTPAttempts
	if denom == 0 {
		return 0
	}
	return float64(r.FailedOTPAttempts+r.CaptchaFailures) / float64(denom)
}

// IPCounter names an IP counter that a side channel (OTP verify, CAPTCHA
// verify, registration) increments.
type IPCounter string

const (
	CounterRegistrationAttempts    IPCounter = "registration_attempts"
	CounterSuccessfulRegistrations IPCounter = "successful_registrations"
	CounterFailedOTPAttempts       IPCounter = "failed_otp_attempts"
	CounterCaptchaFailures         IPCounter = "captcha_failures"
)

// Telemetry is client-reported interaction data collected by the registration form.
// Absent numeric fields read as zero.
type Telemetry struct {
	FormFillTime      float64 `json:"fill_time"`
	TypingSpeed       float64 `json:"typing_speed"`
	MouseMovements    int     `json:"mouse_movements"`
	ClicksCount       int     `json:"clicks"`
	KeyPresses        int     `json:"key_presses"`
	CopyPasteDetected bool    `json:"copy_paste"`
	TimeOnPage        float64 `json:"time_on_page"`
}

// BehaviorAnalysis is one scored interaction, immutable once stored.
type BehaviorAnalysis struct {
	ID              string
	SessionID       string
	IP              string
	FingerprintHash string // empty when the device was never tracked
	Telemetry       Telemetry
	BotProbability  float64
	IsHumanLike     bool
	CreatedAt       time.Time
}

// BehaviorStats aggregates analyses over a period.
type BehaviorStats struct {
	Total             int     `json:"total"`
	BotLike           int     `json:"bot_like"`
	AvgBotProbability float64 `json:"avg_bot_probability"`
}

// ChallengeType selects how a CAPTCHA question is produced and checked.
type ChallengeType string

const (
	ChallengeMath      ChallengeType = "MATH"
	ChallengeText      ChallengeType = "TEXT"
	ChallengeImage     ChallengeType = "IMAGE"
	ChallengeRecaptcha ChallengeType = "RECAPTCHA"
)

// ParseChallengeType defaults an empty type to MATH.
func ParseChallengeType(raw string) (ChallengeType, bool) {
	switch t := ChallengeType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case "":
		return ChallengeMath, true
	case ChallengeMath, ChallengeText, ChallengeImage, ChallengeRecaptcha:
		return t, true
	default:
		return "", false
	}
}

// ChallengeState is derived from a challenge's fields at a point in time.
type ChallengeState string

const (
	ChallengePending   ChallengeState = "PENDING"
	ChallengeSolved    ChallengeState = "SOLVED"
	ChallengeExhausted ChallengeState = "EXHAUSTED"
	ChallengeExpired   ChallengeState = "EXPIRED"
)

// CaptchaChallenge is a question/answer pair bound to a session.
type CaptchaChallenge struct {
	ID            string
	SessionID     string
	IP            string
	Type          ChallengeType
	Question      string
	CorrectAnswer string
	UserAnswer    string
	IsSolved      bool
	AttemptsCount int
	MaxAttempts   int
	CreatedAt     time.Time
	ExpiresAt     time.Time
	SolvedAt      *time.Time
}

// StateAt evaluates the state machine. Solved wins over everything else,
// then expiry, then the attempt budget.
func (c *CaptchaChallenge) StateAt(now time.Time) ChallengeState {
	switch {
	case c.IsSolved:
		return ChallengeSolved
	case now.After(c.ExpiresAt):
		return ChallengeExpired
	case c.AttemptsCount >= c.MaxAttempts:
		return ChallengeExhausted
	default:
		return ChallengePending
	}
}

// Decision is the aggregate verdict for one request.
type Decision struct {
	IsBot          bool     `json:"is_bot"`
	RiskScore      float64  `json:"risk_score"`
	BlockedReasons []string `json:"blocked_reasons"`
	RequireCaptcha bool     `json:"require_captcha"`
}

// Reason categories surfaced in BlockedReasons.
const (
	ReasonIPBlocked        = "ip_reputation"
	ReasonDeviceSuspicious = "suspicious_device"
	ReasonBehavior         = "non_human_behavior"
	ReasonUserAgent        = "suspicious_user_agent"
)
