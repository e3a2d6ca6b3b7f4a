// Package odds derives decimal odds from the betting distribution on a game.
//
// Odds are a pure function of the game's aggregates: 70% of a side's weight
// comes from its share of biscuits wagered and 30% from its share of bets,
// and the result is scaled by the house factor, clamped and rounded to two
// decimals. Rounding happens once, at the end.
package odds

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/huskybids/pkg/models"
)

const (
	DefaultOdds = 2.0
	MinOdds     = 1.1
	MaxOdds     = 10.0

	HouseFactor   = 0.95
	BiscuitWeight = 0.7
	CountWeight   = 0.3
)

// Pair is a home/away odds pair.
type Pair struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// For returns the odds for side. Any side other than home gets the away odds.
func (p Pair) For(side models.Side) float64 {
	if side == models.SideHome {
		return p.Home
	}
	return p.Away
}

// Compute returns the odds for a game with the given bet counts and biscuits
// wagered per side.
func Compute(homeBets, awayBets, homeBiscuits, awayBiscuits int64) Pair {
	switch {
	case homeBets <= 0 && awayBets <= 0:
		return Pair{Home: DefaultOdds, Away: DefaultOdds}
	case homeBets <= 0:
		return Pair{Home: MaxOdds, Away: MinOdds}
	case awayBets <= 0:
		return Pair{Home: MinOdds, Away: MaxOdds}
	}

	homeBiscuitShare, awayBiscuitShare := 0.5, 0.5
	if total := homeBiscuits + awayBiscuits; total > 0 {
		homeBiscuitShare = float64(homeBiscuits) / float64(total)
		awayBiscuitShare = float64(awayBiscuits) / float64(total)
	}
	totalBets := float64(homeBets + awayBets)
	homeCountShare := float64(homeBets) / totalBets
	awayCountShare := float64(awayBets) / totalBets

	homeWeight := BiscuitWeight*homeBiscuitShare + CountWeight*homeCountShare
	awayWeight := BiscuitWeight*awayBiscuitShare + CountWeight*awayCountShare

	return Pair{
		Home: round2(clamp(HouseFactor / homeWeight)),
		Away: round2(clamp(HouseFactor / awayWeight)),
	}
}

// ForGame computes odds from a game's current aggregates.
func ForGame(g models.Game) Pair {
	return Compute(g.HomeBetCount, g.AwayBetCount, g.HomeBiscuits, g.AwayBiscuits)
}

// Payout is the total return of a winning bet: round(amount × odds).
func Payout(amount int64, odds float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(odds)).
		Round(0).
		IntPart()
}

// Profit is Payout minus the stake.
func Profit(amount int64, odds float64) int64 {
	return Payout(amount, odds) - amount
}

// HouseEdge returns the overround of a pair in percent, rounded to two
// decimals. Odds at or below zero yield zero.
func HouseEdge(home, away float64) float64 {
	if home <= 0 || away <= 0 {
		return 0
	}
	one := decimal.NewFromInt(1)
	sum := one.Div(decimal.NewFromFloat(home)).Add(one.Div(decimal.NewFromFloat(away)))
	return sum.Sub(one).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// ImpliedProbability returns 1/odds in percent, rounded to two decimals.
func ImpliedProbability(odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return decimal.NewFromInt(100).Div(decimal.NewFromFloat(odds)).Round(2).InexactFloat64()
}

func clamp(v float64) float64 {
	return min(max(v, MinOdds), MaxOdds)
}

// round2 rounds half away from zero. decimal.NewFromFloat uses the shortest
// representation of v, so 1.005 rounds to 1.01 rather than 1.00.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
