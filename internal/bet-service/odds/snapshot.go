package odds

import (
	"time"

	"github.com/radieske/huskybids/pkg/contracts/events"
	"github.com/radieske/huskybids/pkg/models"
)

// Snapshot is the display view of a game's odds.
type Snapshot struct {
	GameID         string    `json:"gameId"`
	Home           float64   `json:"homeOdds"`
	Away           float64   `json:"awayOdds"`
	HomeMultiplier string    `json:"homeMultiplier"`
	AwayMultiplier string    `json:"awayMultiplier"`
	HomeAmerican   string    `json:"homeAmerican"`
	AwayAmerican   string    `json:"awayAmerican"`
	HomeImplied    float64   `json:"homeImpliedProbability"`
	AwayImplied    float64   `json:"awayImpliedProbability"`
	HouseEdge      float64   `json:"houseEdge"`
	HomeBetCount   int64     `json:"homeBetCount"`
	AwayBetCount   int64     `json:"awayBetCount"`
	HomeBiscuits   int64     `json:"homeBiscuitsWagered"`
	AwayBiscuits   int64     `json:"awayBiscuitsWagered"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewSnapshot computes the odds for g and their display forms.
func NewSnapshot(g models.Game, at time.Time) Snapshot {
	p := ForGame(g)
	return Snapshot{
		GameID:         g.ID,
		Home:           p.Home,
		Away:           p.Away,
		HomeMultiplier: FormatMultiplier(p.Home),
		AwayMultiplier: FormatMultiplier(p.Away),
		HomeAmerican:   FormatAmerican(p.Home),
		AwayAmerican:   FormatAmerican(p.Away),
		HomeImplied:    ImpliedProbability(p.Home),
		AwayImplied:    ImpliedProbability(p.Away),
		HouseEdge:      HouseEdge(p.Home, p.Away),
		HomeBetCount:   g.HomeBetCount,
		AwayBetCount:   g.AwayBetCount,
		HomeBiscuits:   g.HomeBiscuits,
		AwayBiscuits:   g.AwayBiscuits,
		UpdatedAt:      at.UTC(),
	}
}

// Event converts the snapshot to the pub/sub contract.
func (s Snapshot) Event() events.OddsUpdate {
	return events.OddsUpdate{
		GameID:       s.GameID,
		Odds:         events.Odds{Home: s.Home, Away: s.Away},
		HouseEdge:    s.HouseEdge,
		HomeBetCount: s.HomeBetCount,
		AwayBetCount: s.AwayBetCount,
		HomeBiscuits: s.HomeBiscuits,
		AwayBiscuits: s.AwayBiscuits,
		UpdatedAt:    s.UpdatedAt,
		Version:      s.HomeBetCount + s.AwayBetCount,
	}
}
