package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) settleGame(w http.ResponseWriter, r *http.Request) {
	res, err := s.Settler.SettleGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) settleAll(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Settler.SettleAllCompletedGames(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) refundGame(w http.ResponseWriter, r *http.Request) {
	res, err := s.Ledger.RefundGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
