package behavior

import (
	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/models"
)

// BotProbability sums the weights of every indicator present and clamps the
// result to [0,1]. Zero durations count as fast: a client that reports no
// timing at all scores like one that filled the form instantly.
func BotProbability(cfg config.BehaviorConfig, t models.Telemetry) float64 {
	var p float64
	if t.FormFillTime < cfg.FastFillSeconds {
		p += cfg.FastFillWeight
	}
	if t.TypingSpeed > cfg.FastTypingCPS {
		p += cfg.FastTypingWeight
	}
	if t.MouseMovements == 0 {
		p += cfg.NoMouseWeight
	}
	if t.CopyPasteDetected {
		p += cfg.CopyPasteWeight
	}
	if t.TimeOnPage < cfg.ShortPageSeconds {
		p += cfg.ShortPageWeight
	}
	return max(0, min(p, 1))
}
