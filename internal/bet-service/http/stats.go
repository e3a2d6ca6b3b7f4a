package httpapi

import (
	"net/http"

	"github.com/radieske/huskybids/internal/stats"
)

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Store.GetUser(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) myStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stats.UserStats(r.Context(), identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) myRank(w http.ResponseWriter, r *http.Request) {
	rank, err := s.Stats.UserRank(r.Context(), identity(r).UserID, stats.SortBy(r.URL.Query().Get("metric")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", stats.DefaultLimit, stats.MaxLimit)
	if !ok {
		return
	}
	page, ok := intParam(w, r, "page", 1, 1<<20)
	if !ok {
		return
	}
	q := r.URL.Query()
	lb, err := s.Stats.Leaderboard(r.Context(), stats.LeaderboardQuery{
		Limit:  limit,
		Page:   page,
		SortBy: stats.SortBy(q.Get("sortBy")),
		Period: stats.Period(q.Get("period")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
