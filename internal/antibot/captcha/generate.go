package captcha

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"wishguard/internal/antibot/config"
)

// codeAlphabet leaves out characters that are easy to misread (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var mathOperators = []string{"+", "-", "*"}

// mathQuestion draws two operands and an operator. Subtraction operands are
// swapped so the answer is never negative.
func mathQuestion(cfg config.CaptchaConfig, rng *rand.Rand) (question, answer string) {
	span := cfg.OperandMax - cfg.OperandMin + 1
	a := cfg.OperandMin + rng.IntN(span)
	b := cfg.OperandMin + rng.IntN(span)
	op := mathOperators[rng.IntN(len(mathOperators))]

	var result int
	switch op {
	case "+":
		result = a + b
	case "-":
		if b > a {
			a, b = b, a
		}
		result = a - b
	case "*":
		result = a * b
	}
	return fmt.Sprintf("%d %s %d = ?", a, op, b), strconv.Itoa(result)
}

func textCode(cfg config.CaptchaConfig, rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(cfg.TextCodeLength)
	for range cfg.TextCodeLength {
		b.WriteByte(codeAlphabet[rng.IntN(len(codeAlphabet))])
	}
	return b.String()
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
