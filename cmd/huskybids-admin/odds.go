package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/radieske/huskybids/internal/bet-service/odds"
)

func newOddsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "odds <homeBets> <awayBets> <homeBiscuits> <awayBiscuits>",
		Short: "Compute the odds for a betting distribution",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n [4]int64
			for i, a := range args {
				v, err := strconv.ParseInt(a, 10, 64)
				if err != nil || v < 0 {
					return fmt.Errorf("argument %d: %q is not a non-negative integer", i+1, a)
				}
				n[i] = v
			}

			p := odds.Compute(n[0], n[1], n[2], n[3])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "home  %s  %s  implied %.2f%%\n", odds.FormatMultiplier(p.Home), odds.FormatAmerican(p.Home), odds.ImpliedProbability(p.Home))
			fmt.Fprintf(out, "away  %s  %s  implied %.2f%%\n", odds.FormatMultiplier(p.Away), odds.FormatAmerican(p.Away), odds.ImpliedProbability(p.Away))
			fmt.Fprintf(out, "house edge %.2f%%\n", odds.HouseEdge(p.Home, p.Away))
			return nil
		},
	}
}
