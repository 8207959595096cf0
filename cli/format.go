package cli

import (
	"math"
	"strconv"
	"strings"
)

// formatNumber renders a float the way people expect to read it on a calculator: "12" instead
// of "12.000000" or "1.2e+01", "22.7" instead of "22.699999999999999". Really big or really tiny
// values switch to exponent notation ("1e-7", "1e+21"), infinities are spelled out, and negative
// zero is just "0".
func formatNumber(value float64) string {
	switch {
	case value == 0:
		return "0"
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "Infinity"
	case math.IsInf(value, -1):
		return "-Infinity"
	}

	abs := math.Abs(value)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return trimExponent(strconv.FormatFloat(value, 'g', -1, 64))
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// trimExponent drops the zero padding Go puts on single-digit exponents ("1e-07" -> "1e-7").
func trimExponent(text string) string {
	i := strings.IndexAny(text, "eE")
	if i < 0 || i+2 >= len(text) {
		return text
	}
	mantissa, sign, digits := text[:i+1], text[i+1:i+2], strings.TrimLeft(text[i+2:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + sign + digits
}

// parseNumber accepts an operand typed by the user. Surrounding whitespace is fine, but only plain
// decimal notation is allowed: "NaN", "Inf", hex floats and digit separators are all rejected.
func parseNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.IndexFunc(text, notDecimal) >= 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func notDecimal(r rune) bool {
	return !strings.ContainsRune("0123456789+-.eE", r)
}
