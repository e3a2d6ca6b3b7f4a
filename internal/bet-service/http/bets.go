package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/huskybids/internal/bet-service/dto"
	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

const maxBodyBytes = 1 << 16

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(w, "gameId and predictedWinner are required")
		return
	}

	id := identity(r)
	p, err := s.Ledger.PlaceBetWithRetry(r.Context(), ledger.PlaceBetInput{
		UserID:          id.UserID,
		GameID:          req.GameID,
		BetAmount:       req.BetAmount,
		PredictedWinner: req.PredictedWinner,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		Bet:        p.Bet,
		NewBalance: p.User.Biscuits,
		Odds:       odds.NewSnapshot(p.Game, s.Now()),
		Message:    fmt.Sprintf("Bet placed! Potential win: %d biscuits", p.Bet.PotentialWin),
	})
}

func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	p, err := s.Ledger.CancelBet(r.Context(), chi.URLParam(r, "id"), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CancelBetResponse{Bet: p.Bet, NewBalance: p.User.Biscuits})
}

// listBets returns the caller's bets, newest first, optionally narrowed by
// ?status= and ?gameId=.
func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.BetFilter{UserID: identity(r).UserID, GameID: q.Get("gameId")}
	if raw := q.Get("status"); raw != "" {
		st := models.BetStatus(raw)
		switch st {
		case models.BetPending, models.BetWon, models.BetLost, models.BetRefunded, models.BetCancelled:
			f.Status = st
		default:
			badRequest(w, "unknown status "+raw)
			return
		}
	}
	limit, ok := intParam(w, r, "limit", 50, 200)
	if !ok {
		return
	}
	f.Limit = limit

	bets, err := s.Store.ListBets(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bets == nil {
		bets = []models.Bet{}
	}
	writeJSON(w, http.StatusOK, dto.BetListResponse{Bets: bets, Count: len(bets)})
}

// intParam reads a positive integer query parameter capped at ceiling. It writes
// the 400 itself and returns false on a malformed value.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, ceiling int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		badRequest(w, name+" must be a positive integer")
		return 0, false
	}
	return min(n, ceiling), true
}
