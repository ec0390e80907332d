package risk

import "strings"

// HoneypotTriggered reports whether any hidden field carries a value. Field
// names match case-insensitively. Empty strings, nulls, false and zero count
// as empty.
func HoneypotTriggered(fields []string, body map[string]any) bool {
	if len(fields) == 0 || len(body) == 0 {
		return false
	}
	hidden := make(map[string]bool, len(fields))
	for _, f := range fields {
		hidden[strings.ToLower(f)] = true
	}
	for name, v := range body {
		if hidden[strings.ToLower(name)] && filled(v) {
			return true
		}
	}
	return false
}

func filled(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case bool:
		return val
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
