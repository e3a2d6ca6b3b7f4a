// Package httpapi serves the bet-service REST and WebSocket surface.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/internal/auth"
	"github.com/radieske/huskybids/internal/bet-service/ledger"
	"github.com/radieske/huskybids/internal/bet-service/odds"
	"github.com/radieske/huskybids/internal/settlement/settler"
	"github.com/radieske/huskybids/internal/stats"
	"github.com/radieske/huskybids/internal/store"
)

type Ledger interface {
	PlaceBetWithRetry(ctx context.Context, in ledger.PlaceBetInput) (ledger.Placement, error)
	CancelBet(ctx context.Context, betID, userID string) (ledger.Placement, error)
	RefundGame(ctx context.Context, gameID string) (ledger.RefundResult, error)
	EnsureUser(ctx context.Context, userID, username string) (ledger.Login, error)
}

type Settler interface {
	SettleGame(ctx context.Context, gameID string) (settler.Result, error)
	SettleAllCompletedGames(ctx context.Context) (settler.Summary, error)
}

type Stats interface {
	UserStats(ctx context.Context, userID string) (stats.UserStats, error)
	UserRank(ctx context.Context, userID string, metric stats.SortBy) (stats.Rank, error)
	Leaderboard(ctx context.Context, q stats.LeaderboardQuery) (stats.LeaderboardPage, error)
}

type OddsCache interface {
	Get(ctx context.Context, gameID string) (odds.Snapshot, bool, error)
	Set(ctx context.Context, s odds.Snapshot) error
}

// Deps are the collaborators of the API. OddsCache and Live are optional.
type Deps struct {
	Log         *zap.Logger
	Store       store.Reader
	Ledger      Ledger
	Settler     Settler
	Stats       Stats
	Verifier    auth.Verifier
	OddsCache   OddsCache
	Live        http.Handler
	AdminToken  string
	CORSOrigins []string
	Now         func() time.Time
}

type Server struct {
	Deps
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	return &Server{Deps: d}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Username", "X-Admin-Token"},
		MaxAge:         300,
	}))

	if s.Live != nil {
		r.Get("/ws", s.Live.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/games", s.listGames)
		r.Get("/games/{id}", s.getGame)
		r.Get("/games/{id}/odds", s.getOdds)
		r.Get("/leaderboard", s.leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/me", s.me)
			r.Get("/me/stats", s.myStats)
			r.Get("/me/rank", s.myRank)
			r.Get("/bets", s.listBets)
			r.Post("/bets", s.placeBet)
			r.Delete("/bets/{id}", s.cancelBet)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/games/{id}/settle", s.settleGame)
			r.Post("/games/{id}/refund", s.refundGame)
			r.Post("/settle", s.settleAll)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
