package verification

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDailyLimit       = errors.New("daily limit must be positive")
	ErrInvalidStructuringFloor = errors.New("structuring floor must be below the daily limit")
	ErrInvalidMaxStrikes       = errors.New("max strikes must be at least 1")
	ErrInvalidWindow           = errors.New("structuring window must be at least 1")
)

// DefaultDenylist holds phrases used to manipulate an operator or an
// automated approver. Matching is case-insensitive substring.
var DefaultDenylist = []string{
	"ignore previous instructions",
	"ignore all previous",
	"ignore your instructions",
	"disregard previous",
	"disregard all rules",
	"forget your rules",
	"system override",
	"override security",
	"bypass security",
	"disable security",
	"admin override",
	"developer mode",
	"jailbreak",
	"act as admin",
}

// DefaultUrgencyKeywords flag pressure tactics on high-value transfers.
var DefaultUrgencyKeywords = []string{"asap", "urgent"}

// Policy holds the tunable thresholds of the pipeline.
type Policy struct {
	DailyLimit        decimal.Decimal
	StructuringFloor  decimal.Decimal
	StructuringWindow int
	MaxStrikes        int
	Denylist          []string
	// UrgencyThreshold disables the urgency check when zero.
	UrgencyThreshold decimal.Decimal
	UrgencyKeywords  []string
}

func DefaultPolicy() Policy {
	return Policy{
		DailyLimit:        decimal.NewFromInt(10_000_000),
		StructuringFloor:  decimal.NewFromInt(9_900_000),
		StructuringWindow: 3,
		MaxStrikes:        3,
		Denylist:          DefaultDenylist,
		UrgencyThreshold:  decimal.NewFromInt(1_000_000),
		UrgencyKeywords:   DefaultUrgencyKeywords,
	}
}

func (p Policy) Validate() error {
	if !p.DailyLimit.IsPositive() {
		return ErrInvalidDailyLimit
	}
	if p.StructuringFloor.IsNegative() || p.StructuringFloor.GreaterThanOrEqual(p.DailyLimit) {
		return ErrInvalidStructuringFloor
	}
	if p.MaxStrikes < 1 {
		return ErrInvalidMaxStrikes
	}
	if p.StructuringWindow < 1 {
		return ErrInvalidWindow
	}
	return nil
}

// InStructuringBand reports whether amount lies in [floor, limit).
func (p Policy) InStructuringBand(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(p.StructuringFloor) && amount.LessThan(p.DailyLimit)
}

// ExceedsLimit reports whether amount is strictly greater than the daily limit.
func (p Policy) ExceedsLimit(amount decimal.Decimal) bool {
	return amount.GreaterThan(p.DailyLimit)
}

// MatchDenylist returns the first denylisted phrase found in memo.
func (p Policy) MatchDenylist(memo string) (string, bool) {
	return containsAny(memo, p.Denylist)
}

// IsUrgentHighValue reports whether a high-value amount is paired with an
// urgency keyword.
func (p Policy) IsUrgentHighValue(amount decimal.Decimal, memo string) bool {
	if p.UrgencyThreshold.IsZero() || !amount.GreaterThan(p.UrgencyThreshold) {
		return false
	}
	_, ok := containsAny(memo, p.UrgencyKeywords)
	return ok
}

func containsAny(text string, phrases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" && strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}
