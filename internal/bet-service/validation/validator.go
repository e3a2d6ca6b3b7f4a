// Package validation checks a proposed bet amount against the betting limits
// and the bettor's balance.
package validation

import (
	"fmt"
	"math"

	"github.com/radieske/huskybids/pkg/models"
)

const (
	DefaultMinBet int64 = 10
	DefaultMaxBet int64 = 10000
)

// Limits bounds a single bet, inclusive.
type Limits struct {
	Min int64
	Max int64
}

func DefaultLimits() Limits { return Limits{Min: DefaultMinBet, Max: DefaultMaxBet} }

// Code identifies which check rejected an amount.
type Code string

const (
	CodeNone              Code = ""
	CodeNotPositive       Code = "not_positive"
	CodeBelowMin          Code = "below_min"
	CodeAboveMax          Code = "above_max"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeNotInteger        Code = "not_integer"
)

// Result is the outcome of Validate. Error is empty when Valid.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Code  Code   `json:"code,omitempty"`
}

// Validate runs the checks in order and stops at the first failure.
func Validate(amount float64, balance int64, l Limits) Result {
	switch {
	case math.IsNaN(amount) || amount <= 0:
		return fail(CodeNotPositive, "Bet amount must be greater than 0")
	case amount < float64(l.Min):
		return fail(CodeBelowMin, fmt.Sprintf("Minimum bet is %d biscuits", l.Min))
	case amount > float64(l.Max):
		return fail(CodeAboveMax, fmt.Sprintf("Maximum bet is %d biscuits", l.Max))
	case amount > float64(balance):
		return fail(CodeInsufficientFunds, fmt.Sprintf("Insufficient biscuits. You have %d biscuits", balance))
	case amount != math.Trunc(amount):
		return fail(CodeNotInteger, "Bet amount must be a whole number")
	}
	return Result{Valid: true}
}

func fail(c Code, msg string) Result { return Result{Error: msg, Code: c} }

// Err converts a failed result to the ledger's error taxonomy. Balance
// failures wrap models.ErrInsufficientFunds; the rest are ValidationErrors.
func (r Result) Err() error {
	switch {
	case r.Valid:
		return nil
	case r.Code == CodeInsufficientFunds:
		return fmt.Errorf("%w: %s", models.ErrInsufficientFunds, r.Error)
	default:
		return &models.ValidationError{Msg: r.Error}
	}
}
