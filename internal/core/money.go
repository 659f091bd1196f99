// Package core holds the association's bookkeeping domain.
//
// This file contains the monetary amount type. Amounts are whole units of a
// single currency and are never negative once they reach the ledger.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Money is a non-negative amount in the association's currency unit.
type Money int64

var ErrInvalidAmount = errors.New("invalid amount")

// ParseMoney converts a user-entered amount to Money.
//
// Digits may be grouped in thousands with spaces, non-breaking spaces, dots
// or underscores ("100 000", "100.000"). A grouped amount uses one separator
// throughout, its first group has one to three digits and every later group
// exactly three. Signs and decimals ("12.50") are rejected.
//
// Examples:
//
//	ParseMoney("5000")    -> 5000, nil
//	ParseMoney("100 000") -> 100000, nil
//	ParseMoney("12.5")    -> 0, ErrInvalidAmount
//	ParseMoney("-1")      -> 0, ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	var (
		b     strings.Builder
		sep   rune
		group int
		first = true
	)
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			if r > unicode.MaxASCII {
				return 0, ErrInvalidAmount
			}
			b.WriteRune(r)
			group++
		case isGroupSeparator(r):
			if sep != 0 && r != sep {
				return 0, ErrInvalidAmount
			}
			if (first && (group < 1 || group > 3)) || (!first && group != 3) {
				return 0, ErrInvalidAmount
			}
			sep, group, first = r, 0, false
		default:
			return 0, ErrInvalidAmount
		}
	}
	if group == 0 || (!first && group != 3) {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return Money(v), nil
}

func isGroupSeparator(r rune) bool {
	switch r {
	case ' ', '\u00a0', '\u202f', '.', '_':
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Sub returns m - o floored at zero.
func (m Money) Sub(o Money) Money {
	if o >= m {
		return 0
	}
	return m - o
}

// Times multiplies the amount by a non-negative factor.
func (m Money) Times(n int) Money {
	if n <= 0 {
		return 0
	}
	return m * Money(n)
}

// String formats the amount with space thousand separators ("100 000").
func (m Money) String() string {
	digits := strconv.FormatInt(int64(m), 10)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ptr returns a pointer to a copy of m, handy for optional defaults.
func (m Money) Ptr() *Money {
	return &m
}
