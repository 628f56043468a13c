package service

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"dukaan/backend/internal/cart"
)

var (
	errBadAmount = errors.New("bad amount")
	maxPaise     = decimal.NewFromInt(cart.MaxAmountPaise)
)

// ParsePaise converts an operator-typed rupee amount such as "42.50" into
// paise. Blank input is zero. Negative values, more than two decimals and
// anything above cart.MaxAmountPaise are rejected.
func ParsePaise(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	rupees, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, errBadAmount
	}
	paise := rupees.Shift(2)
	if paise.IsNegative() || !paise.IsInteger() || paise.GreaterThan(maxPaise) {
		return 0, errBadAmount
	}
	return paise.IntPart(), nil
}

// FormatRupees renders paise as a rupee string with two decimals.
func FormatRupees(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}
