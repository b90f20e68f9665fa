package app

import (
	"context"
	"fmt"

	"guess-the-prompt/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionRepository abstracts where live game engines are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(game *Game)
	Get(sessionID string) (*Game, bool)
	Delete(sessionID string)
	// Live counts sessions currently registered.
	Live(ctx context.Context) (int, error)
}

// FixtureRepository loads the image fixture set (from cache/backing store).
type FixtureRepository interface {
	Fixtures(ctx context.Context) ([]domain.ImageFixture, error)
}

// Leaderboard is the remote store of finished games.
type Leaderboard interface {
	Submit(ctx context.Context, s domain.Summary) (domain.SubmitAck, error)
	Top(ctx context.Context, limit int) (domain.Leaderboard, error)
}

// GameService contains the session-level use cases around the engine.
type GameService struct {
	sessions   SessionRepository
	fixtures   FixtureRepository
	evaluator  Evaluator
	board      Leaderboard
	cfg        GameConfig
	aggregator Aggregator
	clock      Clock
	newID      func() string
}

func NewGameService(sessions SessionRepository, fixtures FixtureRepository, evaluator Evaluator, board Leaderboard, cfg GameConfig, aggregator Aggregator) *GameService {
	if aggregator == nil {
		aggregator = EvaluatorAggregator{}
	}
	return &GameService{
		sessions:   sessions,
		fixtures:   fixtures,
		evaluator:  evaluator,
		board:      board,
		cfg:        cfg,
		aggregator: aggregator,
		newID:      uuid.NewString,
	}
}

// SetClock is test-only: engines created afterwards use c for their timers.
func (s *GameService) SetClock(c Clock) {
	s.clock = c
}

// NewSession creates an engine in NotStarted over the current fixture set.
func (s *GameService) NewSession(ctx context.Context) (*Game, error) {
	fixtures, err := s.fixtures.Fixtures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}
	if len(fixtures) == 0 {
		return nil, domain.ErrNoFixtures
	}
	game := NewGame(s.newID(), s.cfg, fixtures, s.evaluator, s.aggregator, s.clock)
	s.sessions.Put(game)
	log.Debug().Str("session", game.ID()).Int("fixtures", len(fixtures)).Msg("session created")
	return game, nil
}

// Get returns a live engine.
func (s *GameService) Get(sessionID string) (*Game, error) {
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return game, nil
}

// End tears a session down; unknown ids are ignored.
func (s *GameService) End(sessionID string) {
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	game.Close()
	s.sessions.Delete(sessionID)
	log.Debug().Str("session", sessionID).Msg("session ended")
}

// SubmitScore sends the summary of every player of an ended game to the
// leaderboard, in seat order. Players the store already accepted are skipped,
// so after a failure the caller can retry without duplicates.
func (s *GameService) SubmitScore(ctx context.Context, sessionID string) ([]domain.SubmitAck, error) {
	game, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	pending, err := game.Summaries()
	if err != nil {
		return nil, err
	}
	acks := make([]domain.SubmitAck, 0, len(pending))
	for _, p := range pending {
		ack, err := s.board.Submit(ctx, p.Summary)
		if err != nil {
			log.Warn().Err(err).Str("session", sessionID).Str("player", p.Summary.Name).Msg("score submission failed")
			return acks, err
		}
		game.MarkSubmitted(p.Seat)
		acks = append(acks, ack)
	}
	return acks, nil
}

// Leaderboard fetches the top entries.
func (s *GameService) Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	return s.board.Top(ctx, limit)
}

// Fixtures returns the current fixture set.
func (s *GameService) Fixtures(ctx context.Context) ([]domain.ImageFixture, error) {
	return s.fixtures.Fixtures(ctx)
}

// Fixture returns one fixture of the current set by id.
func (s *GameService) Fixture(ctx context.Context, id int) (domain.ImageFixture, error) {
	fixtures, err := s.fixtures.Fixtures(ctx)
	if err != nil {
		return domain.ImageFixture{}, err
	}
	for _, f := range fixtures {
		if f.ID == id {
			return f, nil
		}
	}
	return domain.ImageFixture{}, domain.ErrFixtureNotFound
}

// LiveSessions reports how many sessions the session store knows about.
func (s *GameService) LiveSessions(ctx context.Context) (int, error) {
	return s.sessions.Live(ctx)
}
