package odds

import (
	"fmt"
	"math"
)

// FormatMultiplier renders odds as "2.50x".
func FormatMultiplier(odds float64) string {
	return fmt.Sprintf("%.2fx", odds)
}

// ToAmerican converts decimal odds to American odds. Odds of 2.0 and above
// are positive (profit on 100 staked), below 2.0 negative (stake needed to
// profit 100). Odds at or below 1 have no American form and return 0.
func ToAmerican(odds float64) int {
	switch {
	case odds <= 1:
		return 0
	case odds >= 2:
		return int(math.Round((odds - 1) * 100))
	default:
		return int(math.Round(-100 / (odds - 1)))
	}
}

// FormatAmerican renders odds in American format, e.g. "+150" or "-200".
func FormatAmerican(odds float64) string {
	a := ToAmerican(odds)
	if a > 0 {
		return fmt.Sprintf("+%d", a)
	}
	return fmt.Sprintf("%d", a)
}
