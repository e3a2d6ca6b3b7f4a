package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

type gameResponse struct {
	Game models.Game   `json:"game"`
	Odds odds.Snapshot `json:"odds"`
}

// listGames returns open games unless ?status=a,b asks for others.
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	f := store.GameFilter{Statuses: []models.GameStatus{models.GameScheduled, models.GameLive}}
	if raw := r.URL.Query().Get("status"); raw != "" {
		f.Statuses = nil
		for _, part := range strings.Split(raw, ",") {
			st := models.GameStatus(strings.TrimSpace(part))
			if !st.Valid() {
				badRequest(w, "unknown status "+string(st))
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	limit, ok := intParam(w, r, "limit", 100, 500)
	if !ok {
		return
	}
	f.Limit = limit

	games, err := s.Store.ListGames(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if games == nil {
		games = []models.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.Store.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{Game: g, Odds: odds.NewSnapshot(g, s.Now())})
}

// getOdds prefers the cached snapshot and fills the cache on a miss.
func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.OddsCache != nil {
		snap, ok, err := s.OddsCache.Get(r.Context(), id)
		if err != nil {
			s.Log.Debug("odds cache get failed", zap.String("game_id", id), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}

	g, err := s.Store.GetGame(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap := odds.NewSnapshot(g, s.Now())
	if s.OddsCache != nil {
		if err := s.OddsCache.Set(r.Context(), snap); err != nil {
			s.Log.Debug("odds cache set failed", zap.String("game_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, snap)
}
