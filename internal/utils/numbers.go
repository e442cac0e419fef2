package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeWidth folds full-width forms typed on Japanese keyboards
// ("１２．５", "，", "－") to their ASCII equivalents.
func NormalizeWidth(s string) string {
	return norm.NFKC.String(s)
}

// ParseNumber parses a decimal number from user input. Surrounding spaces and
// full-width digits are accepted; NaN and infinities are rejected.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(NormalizeWidth(s))
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
