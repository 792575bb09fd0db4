package domain

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// numericRe is the full-string numeric form accepted for values.
	numericRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

	// leadingNumberRe is the looser test used to pick a record's value field.
	leadingNumberRe = regexp.MustCompile(`^\s*[+-]?(\d|\.\d)`)
)

// coerceFloat converts a native number or numeric string to a finite float64.
// Strings may carry surrounding whitespace, a sign and a decimal point.
// Null, booleans, nested structures and non-finite results are rejected.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, ok := parseNumeric(n.String())
		if !ok {
			return 0, false
		}
		f = parsed
	case string:
		parsed, ok := parseNumeric(strings.TrimSpace(n))
		if !ok {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumeric(s string) (float64, bool) {
	if !numericRe.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// looksNumeric reports whether v is a native number or a string that starts
// with a decimal number ("3.2", " -1", "12mm").
func looksNumeric(v any) bool {
	switch n := v.(type) {
	case json.Number, float64, float32, int, int64, int32:
		return true
	case string:
		return leadingNumberRe.MatchString(n)
	default:
		return false
	}
}

// tokenText returns the text of a scalar for date parsing and station labels.
func tokenText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// parseDateValue runs a scalar through the DateToken parser.
func parseDateValue(v any) (Date, bool) {
	s, ok := tokenText(v)
	if !ok {
		return Date{}, false
	}
	return ParseDateToken(s)
}

func isScalar(v any) bool {
	switch v.(type) {
	case *Object, map[string]any, []any:
		return false
	default:
		return true
	}
}
