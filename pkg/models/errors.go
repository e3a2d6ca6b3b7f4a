package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrGameNotFound = fmt.Errorf("game %w", ErrNotFound)
	ErrBetNotFound  = fmt.Errorf("bet %w", ErrNotFound)

	ErrInsufficientFunds   = errors.New("insufficient biscuits")
	ErrBettingClosed       = errors.New("betting is closed for this game")
	ErrInvalidPrediction   = errors.New("predicted winner must be home or away")
	ErrBetNotPending       = errors.New("bet is no longer pending")
	ErrTieGame             = errors.New("tie games must be settled manually")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

// ValidationError carries the user-facing message of a rejected bet amount.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// GameStateError is returned when a game is not in a state the operation needs.
type GameStateError struct {
	GameID string
	Status GameStatus
	Reason string
}

func (e *GameStateError) Error() string {
	return fmt.Sprintf("game %s (%s): %s", e.GameID, e.Status, e.Reason)
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }
