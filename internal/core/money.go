// Package core holds the domain model of the dashboard: the two transaction
// variants, their validation rules, and amount parsing.
//
// Amounts are decimal values. Aggregation always runs on the exact values;
// rounding to two places happens only when an amount is formatted for
// display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a monetary form input to a decimal value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects empty, non-numeric, zero and negative inputs, matching the
// client-side "amount must be positive" rule.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseReceivedAmount is ParseAmount with zero permitted: a received
// amount of zero marks an income as not yet received.
func ParseReceivedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders a value with two decimal places for display.
// This is the only place rounding happens; never round before aggregating.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
