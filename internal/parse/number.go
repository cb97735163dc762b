package parse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumberRe = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// LeadingFloat extracts the numeric prefix of s, ignoring leading whitespace
// and any trailing unit text ("2.5kg" -> 2.5). ok is false when s does not
// start with a number.
func LeadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	m := leadingNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// Exponent overflow and similar; the prefix without exponent still counts.
		if i := strings.IndexAny(m, "eE"); i > 0 {
			f, err = strconv.ParseFloat(m[:i], 64)
		}
		if err != nil {
			return 0, false
		}
	}
	return f, true
}

// SpecString renders a specification value as text. Strings are returned
// as-is, numbers in their shortest form; anything else yields "".
func SpecString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return string(val)
	default:
		return ""
	}
}
