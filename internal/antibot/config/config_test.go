package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type RiskConfigSuite struct {
	suite.Suite
}

func TestRiskConfigSuite(t *testing.T) {
	suite.Run(t, new(RiskConfigSuite))
}

func (s *RiskConfigSuite) writeFile(body string) string {
	path := filepath.Join(s.T().TempDir(), "antibot.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (s *RiskConfigSuite) TestDefaultMatchesDocumentedValues() {
	cfg := Default()
	s.Require().NoError(cfg.Validate())

	s.Equal(30.0, cfg.Device.LowSuccessRateWeight)
	s.Equal(25.0, cfg.Device.HighAttemptsWeight)
	s.Equal(40.0, cfg.Device.BotUserAgentWeight)
	s.Equal(20.0, cfg.Device.MissingMetadataWeight)
	s.Equal(60.0, cfg.Device.SuspiciousThreshold)

	s.Equal(35.0, cfg.IP.FailureRatioWeight)
	s.Equal(0.7, cfg.IP.FailureRatio)
	s.Equal(80.0, cfg.IP.BlockThreshold)
	s.Equal(24*time.Hour, cfg.IP.BlockDuration)

	s.Equal(0.4, cfg.Behavior.FastFillWeight)
	s.Equal(0.5, cfg.Behavior.HumanLikeBelow)

	s.Equal(10*time.Minute, cfg.Captcha.TTL)
	s.Equal(5*time.Minute, cfg.OTP.TTL)
	s.Equal(3, cfg.OTP.MaxAttempts)

	s.Equal(Limit{Max: 3, Window: time.Minute}, cfg.RateLimits.OTPSendPerPhone)
	s.Equal(Limit{Max: 5, Window: time.Hour}, cfg.RateLimits.RegistrationPerIP)
	s.Equal([]string{"website", "url", "homepage", "company"}, cfg.Honeypot.Fields)
}

func (s *RiskConfigSuite) TestLoadFile() {
	s.Run("empty path returns defaults", func() {
		cfg, err := LoadFile("")
		s.Require().NoError(err)
		s.Equal(Default(), cfg)
	})

	s.Run("overlay keeps unspecified defaults", func() {
		path := s.writeFile(`
ip:
  block_duration: 2h
rate_limits:
  otp_send_per_phone:
    max: 2
    window: 30s
honeypot:
  fields: ["Website", " fax ", "website"]
`)
		cfg, err := LoadFile(path)
		s.Require().NoError(err)
		s.Equal(2*time.Hour, cfg.IP.BlockDuration)
		s.Equal(Limit{Max: 2, Window: 30 * time.Second}, cfg.RateLimits.OTPSendPerPhone)
		s.Equal(80.0, cfg.IP.BlockThreshold)
		s.Equal([]string{"website", "fax"}, cfg.Honeypot.Fields)
	})

	s.Run("unknown key rejected", func() {
		_, err := LoadFile(s.writeFile("ip:\n  blok_threshold: 10\n"))
		s.Error(err)
	})

	s.Run("invalid thresholds rejected", func() {
		_, err := LoadFile(s.writeFile("aggregate:\n  captcha_threshold: 90\n"))
		s.ErrorContains(err, "captcha_threshold")
	})

	s.Run("missing file", func() {
		_, err := LoadFile(filepath.Join(s.T().TempDir(), "nope.yaml"))
		s.Error(err)
	})
}
