package handler

import (
	"time"

	"wishguard/internal/antibot/device"
	"wishguard/internal/antibot/models"
)

type GenerateCaptchaRequest struct {
	Type string `json:"type"`
}

type CaptchaView struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Type        string `json:"type"`
	ExpiresAt   string `json:"expires_at"`
	MaxAttempts int    `json:"max_attempts"`
}

type GenerateCaptchaResponse struct {
	Success bool        `json:"success"`
	Captcha CaptchaView `json:"captcha"`
}

type VerifyCaptchaRequest struct {
	CaptchaID string `json:"captcha_id"`
	Answer    string `json:"answer"`
}

type VerifyCaptchaResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

type CheckStatusRequest struct {
	Behavior *models.Telemetry `json:"behavior"`
}

type DeviceView struct {
	Hash         string            `json:"hash"`
	RiskScore    float64           `json:"risk_score"`
	IsSuspicious bool              `json:"is_suspicious"`
	Attempts     int               `json:"attempts"`
	Client       device.ClientInfo `json:"client"`
}

// IPView is nil-safe: an unseen address reports New.
type IPView struct {
	New                  bool    `json:"new,omitempty"`
	RiskScore            float64 `json:"risk_score"`
	IsBlocked            bool    `json:"is_blocked"`
	IsVPN                bool    `json:"is_vpn"`
	RegistrationAttempts int     `json:"registration_attempts"`
	FailedAttempts       int     `json:"failed_attempts"`
	CaptchaFailures      int     `json:"captcha_failures"`
}

type CheckStatusResponse struct {
	Success     bool                  `json:"success"`
	BotCheck    *models.Decision      `json:"bot_check"`
	Device      DeviceView            `json:"device_fingerprint"`
	IP          IPView                `json:"ip_reputation"`
	Behavior24h *models.BehaviorStats `json:"behavior_24h,omitempty"`
	SessionID   string                `json:"session_id"`
}

func newDeviceView(fp *models.DeviceFingerprint) DeviceView {
	hash := fp.Hash
	if len(hash) > 12 {
		hash = hash[:12] + "..."
	}
	return DeviceView{
		Hash:         hash,
		RiskScore:    fp.RiskScore,
		IsSuspicious: fp.IsSuspicious,
		Attempts:     fp.RegistrationAttempts,
		Client:       device.ParseClient(fp.Attributes.UserAgent),
	}
}

func newIPView(rep *models.IPReputation, now time.Time) IPView {
	if rep == nil {
		return IPView{New: true}
	}
	return IPView{
		RiskScore:            rep.RiskScore,
		IsBlocked:            rep.BlockedAt(now),
		IsVPN:                rep.IsVPN,
		RegistrationAttempts: rep.RegistrationAttempts,
		FailedAttempts:       rep.FailedOTPAttempts,
		CaptchaFailures:      rep.CaptchaFailures,
	}
}
