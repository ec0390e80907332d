// Package config holds every weight, threshold and window the anti-bot engine
// uses. Default returns the documented production values; LoadFile overlays an
// operator-supplied YAML file on top of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "wishguard/pkg/platform/strings"
)

type RiskConfig struct {
	Device     DeviceConfig    `yaml:"device"`
	IP         IPConfig        `yaml:"ip"`
	Behavior   BehaviorConfig  `yaml:"behavior"`
	Captcha    CaptchaConfig   `yaml:"captcha"`
	OTP        OTPConfig       `yaml:"otp"`
	Aggregate  AggregateConfig `yaml:"aggregate"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Honeypot   HoneypotConfig  `yaml:"honeypot"`
	Email      EmailConfig     `yaml:"email"`
}

// DeviceConfig scores a device fingerprint from its counters and metadata.
type DeviceConfig struct {
	LowSuccessRate        float64  `yaml:"low_success_rate"`
	LowSuccessRateWeight  float64  `yaml:"low_success_rate_weight"`
	HighAttempts          int      `yaml:"high_attempts"`
	HighAttemptsWeight    float64  `yaml:"high_attempts_weight"`
	BotUserAgentWeight    float64  `yaml:"bot_user_agent_weight"`
	MissingMetadataWeight float64  `yaml:"missing_metadata_weight"`
	BotUserAgents         []string `yaml:"bot_user_agents"`
	SuspiciousThreshold   float64  `yaml:"suspicious_threshold"`
	MaxScore              float64  `yaml:"max_score"`
}

// IPConfig scores an IP and drives automatic blocking.
type IPConfig struct {
	FailureRatio        float64       `yaml:"failure_ratio"`
	FailureRatioWeight  float64       `yaml:"failure_ratio_weight"`
	HighAttempts        int           `yaml:"high_attempts"`
	HighAttemptsWeight  float64       `yaml:"high_attempts_weight"`
	ProxyWeight         float64       `yaml:"proxy_weight"`
	HighFailedOTP       int           `yaml:"high_failed_otp"`
	HighFailedOTPWeight float64       `yaml:"high_failed_otp_weight"`
	DenyThreshold       float64       `yaml:"deny_threshold"`
	BlockThreshold      float64       `yaml:"block_threshold"`
	BlockDuration       time.Duration `yaml:"block_duration"`
	BlockReason         string        `yaml:"block_reason"`
	MaxScore            float64       `yaml:"max_score"`
}

// BehaviorConfig weights client-reported interaction telemetry. Weights are
// probabilities summed and clamped to [0,1].
type BehaviorConfig struct {
	FastFillSeconds  float64 `yaml:"fast_fill_seconds"`
	FastFillWeight   float64 `yaml:"fast_fill_weight"`
	FastTypingCPS    float64 `yaml:"fast_typing_cps"`
	FastTypingWeight float64 `yaml:"fast_typing_weight"`
	NoMouseWeight    float64 `yaml:"no_mouse_weight"`
	CopyPasteWeight  float64 `yaml:"copy_paste_weight"`
	ShortPageSeconds float64 `yaml:"short_page_seconds"`
	ShortPageWeight  float64 `yaml:"short_page_weight"`
	HumanLikeBelow   float64 `yaml:"human_like_below"`
}

type CaptchaConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	MaxAttempts    int           `yaml:"max_attempts"`
	OperandMin     int           `yaml:"operand_min"`
	OperandMax     int           `yaml:"operand_max"`
	TextCodeLength int           `yaml:"text_code_length"`
}

type OTPConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
	CodeLength  int           `yaml:"code_length"`
}

// AggregateConfig combines component signals into a single decision.
type AggregateConfig struct {
	BlockedIPWeight        float64  `yaml:"blocked_ip_weight"`
	SuspiciousDeviceWeight float64  `yaml:"suspicious_device_weight"`
	BehaviorScale          float64  `yaml:"behavior_scale"`
	BotUserAgentWeight     float64  `yaml:"bot_user_agent_weight"`
	BotUserAgents          []string `yaml:"bot_user_agents"`
	BotThreshold           float64  `yaml:"bot_threshold"`
	CaptchaThreshold       float64  `yaml:"captcha_threshold"`
}

// Limit is a fixed-window request budget.
type Limit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type RateLimitConfig struct {
	OTPSendPerPhone   Limit `yaml:"otp_send_per_phone"`
	RegistrationPerIP Limit `yaml:"registration_per_ip"`
	CaptchaPerIP      Limit `yaml:"captcha_per_ip"`
	EmailPerAddress   Limit `yaml:"email_per_address"`
	EmailPerIP        Limit `yaml:"email_per_ip"`
}

type HoneypotConfig struct {
	Fields []string `yaml:"fields"`
}

type EmailConfig struct {
	TokenTTL          time.Duration `yaml:"token_ttl"`
	TokenLength       int           `yaml:"token_length"`
	MaxAttempts       int           `yaml:"max_attempts"`
	DisposableDomains []string      `yaml:"disposable_domains"`
}

// Default returns the production weights and thresholds.
func Default() RiskConfig {
	return RiskConfig{
		Device: DeviceConfig{
			LowSuccessRate:        0.1,
			LowSuccessRateWeight:  30,
			HighAttempts:          5,
			HighAttemptsWeight:    25,
			BotUserAgentWeight:    40,
			MissingMetadataWeight: 20,
			BotUserAgents:         []string{"bot", "crawler", "spider", "scraper"},
			SuspiciousThreshold:   60,
			MaxScore:              100,
		},
		IP: IPConfig{
			FailureRatio:        0.7,
			FailureRatioWeight:  35,
			HighAttempts:        10,
			HighAttemptsWeight:  30,
			ProxyWeight:         20,
			HighFailedOTP:       15,
			HighFailedOTPWeight: 25,
			DenyThreshold:       60,
			BlockThreshold:      80,
			BlockDuration:       24 * time.Hour,
			BlockReason:         "Automatic block due to high risk score",
			MaxScore:            100,
		},
		Behavior: BehaviorConfig{
			FastFillSeconds:  2,
			FastFillWeight:   0.4,
			FastTypingCPS:    10,
			FastTypingWeight: 0.3,
			NoMouseWeight:    0.3,
			CopyPasteWeight:  0.2,
			ShortPageSeconds: 5,
			ShortPageWeight:  0.2,
			HumanLikeBelow:   0.5,
		},
		Captcha: CaptchaConfig{
			TTL:            10 * time.Minute,
			MaxAttempts:    3,
			OperandMin:     1,
			OperandMax:     20,
			TextCodeLength: 5,
		},
		OTP: OTPConfig{
			TTL:         5 * time.Minute,
			MaxAttempts: 3,
			CodeLength:  6,
		},
		Aggregate: AggregateConfig{
			BlockedIPWeight:        40,
			SuspiciousDeviceWeight: 30,
			BehaviorScale:          50,
			BotUserAgentWeight:     35,
			BotUserAgents:          []string{"bot", "crawler", "spider", "scraper", "automated"},
			BotThreshold:           80,
			CaptchaThreshold:       50,
		},
		RateLimits: RateLimitConfig{
			OTPSendPerPhone:   Limit{Max: 3, Window: time.Minute},
			RegistrationPerIP: Limit{Max: 5, Window: time.Hour},
			CaptchaPerIP:      Limit{Max: 20, Window: time.Hour},
			EmailPerAddress:   Limit{Max: 5, Window: time.Hour},
			EmailPerIP:        Limit{Max: 20, Window: time.Hour},
		},
		Honeypot: HoneypotConfig{
			Fields: []string{"website", "url", "homepage", "company"},
		},
		Email: EmailConfig{
			TokenTTL:    30 * time.Minute,
			TokenLength: 64,
			MaxAttempts: 3,
			DisposableDomains: []string{
				"10minutemail.com", "guerrillamail.com", "mailinator.com",
				"tempmail.org", "throwaway.email", "temp-mail.org",
				"yopmail.com", "trashmail.com", "getnada.com", "maildrop.cc",
			},
		},
	}
}

// LoadFile overlays the YAML file at path on top of Default. Unknown keys are
// rejected so a typo cannot silently leave a default in place.
func LoadFile(path string) (RiskConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return RiskConfig{}, fmt.Errorf("open anti-bot config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return RiskConfig{}, fmt.Errorf("decode anti-bot config %s: %w", path, err)
	}
	cfg.Honeypot.Fields = pstrings.Lowered(cfg.Honeypot.Fields)
	cfg.Email.DisposableDomains = pstrings.Lowered(cfg.Email.DisposableDomains)
	if err := cfg.Validate(); err != nil {
		return RiskConfig{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot operate with.
func (c RiskConfig) Validate() error {
	var errs []error
	limits := map[string]Limit{
		"otp_send_per_phone":  c.RateLimits.OTPSendPerPhone,
		"registration_per_ip": c.RateLimits.RegistrationPerIP,
		"captcha_per_ip":      c.RateLimits.CaptchaPerIP,
		"email_per_address":   c.RateLimits.EmailPerAddress,
		"email_per_ip":        c.RateLimits.EmailPerIP,
	}
	for name, l := range limits {
		if l.Max <= 0 || l.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limits.%s: max and window must be positive", name))
		}
	}
	if c.Captcha.TTL <= 0 || c.Captcha.MaxAttempts <= 0 {
		errs = append(errs, errors.New("captcha: ttl and max_attempts must be positive"))
	}
	if c.Captcha.OperandMin > c.Captcha.OperandMax {
		errs = append(errs, errors.New("captcha: operand_min exceeds operand_max"))
	}
	if c.OTP.TTL <= 0 || c.OTP.MaxAttempts <= 0 || c.OTP.CodeLength < 4 {
		errs = append(errs, errors.New("otp: ttl, max_attempts must be positive and code_length at least 4"))
	}
	if c.IP.BlockDuration <= 0 {
		errs = append(errs, errors.New("ip: block_duration must be positive"))
	}
	if c.Aggregate.CaptchaThreshold >= c.Aggregate.BotThreshold {
		errs = append(errs, errors.New("aggregate: captcha_threshold must be below bot_threshold"))
	}
	if c.Email.TokenTTL <= 0 || c.Email.TokenLength < 16 {
		errs = append(errs, errors.New("email: token_ttl must be positive and token_length at least 16"))
	}
	return errors.Join(errs...)
}
