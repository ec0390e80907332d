package ipreputation

import (
	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/models"
)

// Score computes the IP risk from its counters and proxy flag, capped at MaxScore.
func Score(cfg config.IPConfig, rep *models.IPReputation) float64 {
	var score float64
	if rep.FailureRatio() > cfg.FailureRatio {
		score += cfg.FailureRatioWeight
	}
	if rep.RegistrationAttempts > cfg.HighAttempts {
		score += cfg.HighAttemptsWeight
	}
	if rep.IsVPN {
		score += cfg.ProxyWeight
	}
	if rep.FailedOTPAttempts > cfg.HighFailedOTP {
		score += cfg.HighFailedOTPWeight
	}
	return min(score, cfg.MaxScore)
}
