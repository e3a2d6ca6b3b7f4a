package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/radieske/huskybids/internal/store"
	"github.com/radieske/huskybids/pkg/models"
)

type SortBy string

const (
	SortBiscuits  SortBy = "biscuits"
	SortWinRate   SortBy = "winRate"
	SortProfit    SortBy = "profit"
	SortTotalBets SortBy = "totalBets"
)

type Period string

const (
	PeriodAll   Period = "all"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type LeaderboardQuery struct {
	Limit  int    `json:"limit"`
	Page   int    `json:"page"`
	SortBy SortBy `json:"sortBy"`
	Period Period `json:"period"`
}

// Normalize applies defaults and rejects unknown sort keys and periods.
func (q LeaderboardQuery) Normalize() (LeaderboardQuery, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	q.Limit = min(q.Limit, MaxLimit)
	if q.Page <= 0 {
		q.Page = 1
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortBiscuits
	case SortBiscuits, SortWinRate, SortProfit, SortTotalBets:
	default:
		return q, &models.ValidationError{Msg: fmt.Sprintf("unknown sort %q", q.SortBy)}
	}
	switch q.Period {
	case "":
		q.Period = PeriodAll
	case PeriodAll, PeriodWeek, PeriodMonth:
	default:
		return q, &models.ValidationError{Msg: fmt.Sprintf("unknown period %q", q.Period)}
	}
	return q, nil
}

type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	Biscuits    int64   `json:"biscuits"`
	TotalBets   int64   `json:"totalBets"`
	WinningBets int64   `json:"winningBets"`
	LosingBets  int64   `json:"losingBets"`
	WinRate     float64 `json:"winRate"`
	NetProfit   int64   `json:"netProfit"`
}

type LeaderboardPage struct {
	Entries []LeaderboardEntry `json:"entries"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
	Total   int                `json:"total"`
	SortBy  SortBy             `json:"sortBy"`
	Period  Period             `json:"period"`
}

// Leaderboard ranks all users by the query's metric. The period restricts
// which bets feed the derived metrics; balance is always current.
func (a *Aggregator) Leaderboard(ctx context.Context, q LeaderboardQuery) (LeaderboardPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return LeaderboardPage{}, err
	}
	key := fmt.Sprintf("lb:%s:%s:%d:%d", q.SortBy, q.Period, q.Limit, q.Page)
	return cached(ctx, a, key, func() (LeaderboardPage, error) {
		ranked, err := a.ranked(ctx, q.SortBy, q.Period)
		if err != nil {
			return LeaderboardPage{}, err
		}
		page := LeaderboardPage{
			Entries: []LeaderboardEntry{},
			Page:    q.Page,
			Limit:   q.Limit,
			Total:   len(ranked),
			SortBy:  q.SortBy,
			Period:  q.Period,
		}
		from := (q.Page - 1) * q.Limit
		if from < len(ranked) {
			page.Entries = append(page.Entries, ranked[from:min(from+q.Limit, len(ranked))]...)
		}
		return page, nil
	})
}

type Rank struct {
	UserID string  `json:"userId"`
	Metric SortBy  `json:"metric"`
	Rank   int     `json:"rank"`
	Total  int     `json:"total"`
	Value  float64 `json:"value"`
}

// UserRank returns a user's all-time position on one metric.
func (a *Aggregator) UserRank(ctx context.Context, userID string, metric SortBy) (Rank, error) {
	q, err := LeaderboardQuery{SortBy: metric}.Normalize()
	if err != nil {
		return Rank{}, err
	}
	return cached(ctx, a, fmt.Sprintf("rank:%s:%s", q.SortBy, userID), func() (Rank, error) {
		ranked, err := a.ranked(ctx, q.SortBy, PeriodAll)
		if err != nil {
			return Rank{}, err
		}
		for _, e := range ranked {
			if e.UserID == userID {
				return Rank{UserID: userID, Metric: q.SortBy, Rank: e.Rank, Total: len(ranked), Value: metricValue(e, q.SortBy)}, nil
			}
		}
		return Rank{}, models.ErrUserNotFound
	})
}

func (a *Aggregator) ranked(ctx context.Context, by SortBy, period Period) ([]LeaderboardEntry, error) {
	users, err := a.reader.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	f := store.BetFilter{}
	if since := periodStart(period, a.now()); since != nil {
		f.Since = since
	}
	bets, err := a.reader.ListBets(ctx, f)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]models.Bet, len(users))
	for _, b := range bets {
		byUser[b.UserID] = append(byUser[b.UserID], b)
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		t := tally(byUser[u.ID])
		entries = append(entries, LeaderboardEntry{
			UserID:      u.ID,
			Username:    u.Username,
			Biscuits:    u.Biscuits,
			TotalBets:   t.bets,
			WinningBets: t.won,
			LosingBets:  t.lost,
			WinRate:     t.winRate(),
			NetProfit:   t.netProfit,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		vi, vj := metricValue(entries[i], by), metricValue(entries[j], by)
		if vi != vj {
			return vi > vj
		}
		if entries[i].Biscuits != entries[j].Biscuits {
			return entries[i].Biscuits > entries[j].Biscuits
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func metricValue(e LeaderboardEntry, by SortBy) float64 {
	switch by {
	case SortWinRate:
		return e.WinRate
	case SortProfit:
		return float64(e.NetProfit)
	case SortTotalBets:
		return float64(e.TotalBets)
	default:
		return float64(e.Biscuits)
	}
}

func periodStart(p Period, now time.Time) *time.Time {
	var d time.Duration
	switch p {
	case PeriodWeek:
		d = 7 * 24 * time.Hour
	case PeriodMonth:
		d = 30 * 24 * time.Hour
	default:
		return nil
	}
	t := now.Add(-d)
	return &t
}
