package device

import (
	"strings"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/models"
)

// Score computes the device risk from stored counters and metadata. It is a
// pure function: the same fingerprint always yields the same score.
func Score(cfg config.DeviceConfig, fp *models.DeviceFingerprint) (score float64, suspicious bool) {
	if fp.RegistrationAttempts >= 1 && fp.SuccessRate() < cfg.LowSuccessRate {
		score += cfg.LowSuccessRateWeight
	}
	if fp.RegistrationAttempts > cfg.HighAttempts {
		score += cfg.HighAttemptsWeight
	}
	if MatchesBotUserAgent(fp.Attributes.UserAgent, cfg.BotUserAgents) {
		score += cfg.BotUserAgentWeight
	}
	if fp.Attributes.MissingMetadata() {
		score += cfg.MissingMetadataWeight
	}
	score = min(score, cfg.MaxScore)
	return score, score > cfg.SuspiciousThreshold
}

// MatchesBotUserAgent reports whether ua contains any indicator, case-insensitively.
func MatchesBotUserAgent(ua string, indicators []string) bool {
	lower := strings.ToLower(ua)
	for _, ind := range indicators {
		if ind != "" && strings.Contains(lower, strings.ToLower(ind)) {
			return true
		}
	}
	return false
}
