package core

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumber is returned by ParseAmount for text that is not a finite number.
var ErrInvalidNumber = errors.New("invalid number")

// ParseAmount parses a user typed number. Both dot (12.34) and comma (12,34)
// decimal separators are accepted; a comma is only treated as a decimal
// separator when the text has no dot.
//
// Range checks are left to the input Normalize methods.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidNumber
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidNumber
	}
	return f, nil
}

// amount lifts a float into exact decimal arithmetic using its shortest
// decimal representation, so 0.1 stays 0.1.
func amount(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
