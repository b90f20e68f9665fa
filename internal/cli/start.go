package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guess-the-prompt/internal/app"
	"guess-the-prompt/internal/config"
	"guess-the-prompt/internal/evaluation"
	"guess-the-prompt/internal/infra/memory"
	pgloader "guess-the-prompt/internal/infra/postgres"
	rediscache "guess-the-prompt/internal/infra/redis"
	"guess-the-prompt/internal/leaderboard"
	"guess-the-prompt/internal/scoring"
	transport "guess-the-prompt/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	service, coord, err := buildService(cfg, redisClient, pool)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(service, transport.NewWSHandler(service), cfg.Images.Dir)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Str("scoring", cfg.Game.ScoringPolicy).Msg("starting game server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	drained := make(chan struct{})
	go func() {
		coord.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		log.Warn().Msg("evaluations still in flight at shutdown")
	}
	return nil
}

// buildService wires storage, the evaluator and the leaderboard into the game
// service. Redis and Postgres are optional; without them everything stays in
// process with the bundled fixtures.
func buildService(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) (*app.GameService, *evaluation.Coordinator, error) {
	var loader memory.FixtureLoader = memory.NewStaticFixtureLoader(memory.BundledFixtures())
	if pool != nil {
		loader = pgloader.NewFixtureLoader(pool)
	}

	fixturesTTL := config.TTLDuration(cfg.Fixtures.TTL, 10*time.Minute)
	imagesTTL := config.TTLDuration(cfg.Images.TTL, 30*time.Minute)
	fetcher := scoring.NewFetcher(cfg.Images.Dir)

	var (
		fixtures app.FixtureRepository
		images   scoring.ImageSource
		store    app.SessionRepository
	)
	if redisClient != nil {
		fixtures = rediscache.NewFixtureRepository(redisClient, loader, fixturesTTL)
		images = rediscache.NewImageCache(redisClient, fetcher, imagesTTL)
		store = rediscache.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		fixtures = memory.NewFixtureRepository(loader, fixturesTTL)
		images = memory.NewImageCache(fetcher, imagesTTL)
		store = memory.NewSessionStore()
	}

	aggregator, err := app.AggregatorFor(cfg.Game.ScoringPolicy)
	if err != nil {
		return nil, nil, err
	}

	scorer := scoring.New(cfg.Evaluator.BaseURL, images, config.TTLDuration(cfg.Evaluator.Timeout, scoring.DefaultTimeout))
	coord := evaluation.NewCoordinator(context.Background(), scorer)
	board := leaderboard.New(cfg.Leaderboard.BaseURL, config.TTLDuration(cfg.Leaderboard.Timeout, 10*time.Second))

	service := app.NewGameService(store, fixtures, coord, board, gameConfig(cfg), aggregator)
	return service, coord, nil
}

func gameConfig(cfg config.Config) app.GameConfig {
	def := app.DefaultGameConfig()
	out := app.GameConfig{
		MaxRounds:          cfg.Game.MaxRounds,
		RoundDuration:      config.TTLDuration(cfg.Game.RoundDuration, def.RoundDuration),
		ResultDelay:        config.TTLDuration(cfg.Game.ResultDelay, def.ResultDelay),
		TimeoutResultDelay: config.TTLDuration(cfg.Game.TimeoutResultDelay, def.TimeoutResultDelay),
		ImageSelection:     cfg.Game.ImageSelection,
	}
	if out.MaxRounds <= 0 {
		out.MaxRounds = def.MaxRounds
	}
	return out
}
