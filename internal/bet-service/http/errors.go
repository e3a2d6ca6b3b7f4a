package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/auth"
	"github.com/radieske/huskybids/internal/bet-service/dto"
	"github.com/radieske/huskybids/pkg/models"
)

func errorBody(msg, code string) dto.ErrorResponse {
	return dto.ErrorResponse{Error: msg, Code: code}
}

// classify maps an error to a status, a stable code and the message shown to
// the client. Storage details never leave the process.
func classify(err error) (int, string, string) {
	var (
		ve *models.ValidationError
		ge *models.GameStateError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "authentication required"
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation", ve.Msg
	case errors.Is(err, models.ErrInvalidPrediction):
		return http.StatusBadRequest, "invalid_prediction", err.Error()
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds", strings.TrimPrefix(err.Error(), models.ErrInsufficientFunds.Error()+": ")
	case errors.Is(err, models.ErrBettingClosed):
		return http.StatusConflict, "betting_closed", err.Error()
	case errors.Is(err, models.ErrBetNotPending):
		return http.StatusConflict, "bet_not_pending", err.Error()
	case errors.Is(err, models.ErrTieGame):
		return http.StatusConflict, "tie_game", models.ErrTieGame.Error()
	case errors.As(err, &ge):
		return http.StatusConflict, "game_state", ge.Error()
	case errors.Is(err, models.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable, "conflict", "please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "request timed out"
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody(msg, code))
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody(msg, "bad_request"))
}
