package cli

import (
	"context"
	"fmt"
	"time"

	"guess-the-prompt/internal/config"
	rediscache "guess-the-prompt/internal/infra/redis"
	"guess-the-prompt/internal/leaderboard"
	"guess-the-prompt/internal/scoring"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewHealthCmd checks the external evaluator and leaderboard store and, when
// Redis is configured, reports the sessions marked live across instances.
func NewHealthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the evaluator, leaderboard and Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			evaluator := scoring.New(cfg.Evaluator.BaseURL, scoring.NewFetcher(cfg.Images.Dir), config.TTLDuration(cfg.Evaluator.Timeout, scoring.DefaultTimeout))
			board := leaderboard.New(cfg.Leaderboard.BaseURL, config.TTLDuration(cfg.Leaderboard.Timeout, 10*time.Second))

			failed := 0
			report := func(name string, err error) {
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s FAIL %v\n", name, err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s ok\n", name)
			}
			report("evaluator", evaluator.Health(ctx))
			_, err = board.Top(ctx, 1)
			report("leaderboard", err)
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer client.Close()
				live, err := liveSessions(ctx, client)
				report("redis", err)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", "sessions", live)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d service(s) unhealthy", failed)
			}
			return nil
		},
	}
}

func liveSessions(ctx context.Context, client *redis.Client) (int, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return 0, err
	}
	return rediscache.NewSessionStore(client, 0).Live(ctx)
}
