package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"guess-the-prompt/internal/config"
	"guess-the-prompt/internal/domain"
	"guess-the-prompt/internal/leaderboard"
	"github.com/spf13/cobra"
)

// NewLeaderboardCmd prints the current top entries of the leaderboard store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			client := leaderboard.New(cfg.Leaderboard.BaseURL, config.TTLDuration(cfg.Leaderboard.Timeout, 10*time.Second))
			board, err := client.Top(ctx, limit)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd, board)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", leaderboard.DefaultLimit, "number of entries")
	return cmd
}

func printLeaderboard(cmd *cobra.Command, board domain.Leaderboard) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tSCORE\tGRADE\tAVG TIME\tFASTEST")
	for _, e := range board.Entries {
		grade, _ := domain.GradeFor(e.Score)
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.1fs\t%.0fs\n", e.Rank, e.Name, e.Score, grade, e.AverageTime, e.FastestGuess)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(board.Entries), board.TotalEntries)
	return nil
}
