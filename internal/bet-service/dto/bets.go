package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/pkg/models"
)

var validate = validator.New()

// PlaceBetRequest is the body of POST /v1/bets. The amount rules live in the
// ledger so clients get its messages; only shape is checked here.
type PlaceBetRequest struct {
	GameID          string  `json:"gameId" validate:"required,max=128"`
	BetAmount       float64 `json:"betAmount"`
	PredictedWinner string  `json:"predictedWinner" validate:"required,max=16"`
}

func (p *PlaceBetRequest) Validate() error {
	return validate.Struct(p)
}

type PlaceBetResponse struct {
	Bet        models.Bet    `json:"bet"`
	NewBalance int64         `json:"newBalance"`
	Odds       odds.Snapshot `json:"odds"`
	Message    string        `json:"message"`
}

type CancelBetResponse struct {
	Bet        models.Bet `json:"bet"`
	NewBalance int64      `json:"newBalance"`
}

type BetListResponse struct {
	Bets  []models.Bet `json:"bets"`
	Count int          `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
