package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/radieske/huskybids/internal/stats"
)

func newSettleCmd(connect connectFunc) *cobra.Command {
	settle := &cobra.Command{
		Use:   "settle",
		Short: "Settle completed games",
	}

	settle.AddCommand(&cobra.Command{
		Use:   "game <gameId>",
		Short: "Settle the pending bets of one completed game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			res, err := b.settler.SettleGame(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})

	settle.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Settle every completed game with pending bets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			sum, err := b.settler.SettleAllCompletedGames(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	})

	return settle
}

func newRefundCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "refund <gameId>",
		Short: "Refund the pending bets of a cancelled or postponed game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			res, err := b.ledger.RefundGame(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newLeaderboardCmd(connect connectFunc) *cobra.Command {
	var q stats.LeaderboardQuery
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			page, err := b.stats.Leaderboard(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().IntVar(&q.Limit, "limit", stats.DefaultLimit, "entries per page")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().StringVar((*string)(&q.SortBy), "sort", string(stats.SortBiscuits), "biscuits|winRate|profit|totalBets")
	cmd.Flags().StringVar((*string)(&q.Period), "period", string(stats.PeriodAll), "all|week|month")
	return cmd
}

func printLeaderboard(w io.Writer, page stats.LeaderboardPage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tBISCUITS\tBETS\tWIN RATE\tPROFIT")
	for _, e := range page.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.2f%%\t%d\n", e.Rank, e.Username, e.Biscuits, e.TotalBets, e.WinRate, e.NetProfit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d, %d of %d users by %s (%s)\n", page.Page, len(page.Entries), page.Total, page.SortBy, page.Period)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
