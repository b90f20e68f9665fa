package app

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"guess-the-prompt/internal/domain"
	"guess-the-prompt/internal/evaluation"
	"github.com/rs/zerolog/log"
)

// Phase is the state of the round state machine.
type Phase string

const (
	PhaseNotStarted    Phase = "NotStarted"
	PhasePlaying       Phase = "Playing"
	PhaseShowingResult Phase = "ShowingResult"
	PhaseCalculating   Phase = "CalculatingFinalScore"
	PhaseEnded         Phase = "Ended"
)

// Image selection strategies, applied to every turn.
const (
	SelectSequential = "sequential"
	SelectRandom     = "random"
)

const (
	// MaxNameLength bounds player display names (in runes).
	MaxNameLength = 20
	// MaxPlayers bounds a local multiplayer game.
	MaxPlayers = 6
)

// GameConfig holds the fixed timings of a game.
type GameConfig struct {
	MaxRounds          int
	RoundDuration      time.Duration
	ResultDelay        time.Duration // after a submitted guess
	TimeoutResultDelay time.Duration // after the countdown ran out
	ImageSelection     string
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		MaxRounds:          5,
		RoundDuration:      60 * time.Second,
		ResultDelay:        3 * time.Second,
		TimeoutResultDelay: 2 * time.Second,
		ImageSelection:     SelectSequential,
	}
}

// Evaluator starts evaluations and joins them; see evaluation.Coordinator.
type Evaluator interface {
	Start(prompt, imageRef string, imageID int) *evaluation.Pending
	JoinAll(ctx context.Context, pending []*evaluation.Pending) []domain.ScoreResult
}

// ImageView is the image as shown to the player; the reference prompt is
// only revealed once the turn is over.
type ImageView struct {
	ID         int               `json:"id"`
	URL        string            `json:"url"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Category   string            `json:"category"`
	Prompt     string            `json:"prompt,omitempty"`
}

// Standing is one row of the in-game scoreboard.
type Standing struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Rank  int    `json:"rank"`
}

// Snapshot is an immutable copy of the round state and players. Player is
// whoever has the turn; Breakdown belongs to the top of the scoreboard.
type Snapshot struct {
	SessionID             string            `json:"sessionId"`
	Phase                 Phase             `json:"phase"`
	Round                 int               `json:"round"`
	MaxRounds             int               `json:"maxRounds"`
	Turn                  int               `json:"turn"`
	Image                 *ImageView        `json:"image,omitempty"`
	TimeRemaining         int               `json:"timeRemaining"`
	TimerActive           bool              `json:"timerActive"`
	GameStarted           bool              `json:"gameStarted"`
	GameEnded             bool              `json:"gameEnded"`
	ShowingResult         bool              `json:"showingResult"`
	CalculatingFinalScore bool              `json:"calculatingFinalScore"`
	TimedOut              bool              `json:"timedOut"`
	LastGuess             string            `json:"lastGuess"`
	PendingEvaluations    int               `json:"pendingEvaluations"`
	Player                *domain.Player    `json:"player,omitempty"`
	Players               []*domain.Player  `json:"players,omitempty"`
	Scoreboard            []Standing        `json:"scoreboard,omitempty"`
	Breakdown             *domain.Breakdown `json:"breakdown,omitempty"`
}

// SeatSummary is the leaderboard summary of one player of an ended game.
type SeatSummary struct {
	Seat    int
	Summary domain.Summary
}

// Game is the round state machine of one play session. Every round gives
// each player one turn, in seat order. All transitions happen under mu;
// timer callbacks and the final calculation carry the generation they were
// scheduled in and are dropped once it moved on.
type Game struct {
	id         string
	cfg        GameConfig
	fixtures   []domain.ImageFixture
	evaluator  Evaluator
	aggregator Aggregator
	clock      Clock

	base       context.Context
	cancelBase context.CancelFunc

	mu            sync.Mutex
	intn          func(n int) int
	phase         Phase
	round         int
	turn          int
	imageIdx      int
	timeRemaining int
	timerActive   bool
	timedOut      bool
	lastGuess     string
	players       []*domain.Player
	pending       []*evaluation.Pending
	owners        []int // seat of each pending evaluation
	played        []RoundGuess
	breakdowns    []domain.Breakdown
	submitted     []bool
	gen           uint64
	cancelRound   context.CancelFunc
	closed        bool
	subscribers   map[chan Snapshot]struct{}
}

// NewGame builds an engine over a non-empty fixture set. A nil clock means
// wall-clock timers.
func NewGame(id string, cfg GameConfig, fixtures []domain.ImageFixture, evaluator Evaluator, aggregator Aggregator, clock Clock) *Game {
	def := DefaultGameConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.RoundDuration < time.Second {
		cfg.RoundDuration = def.RoundDuration
	}
	if cfg.ImageSelection == "" {
		cfg.ImageSelection = def.ImageSelection
	}
	if clock == nil {
		clock = realClock{}
	}
	if aggregator == nil {
		aggregator = EvaluatorAggregator{}
	}
	base, cancel := context.WithCancel(context.Background())
	g := &Game{
		id:          id,
		cfg:         cfg,
		fixtures:    append([]domain.ImageFixture(nil), fixtures...),
		evaluator:   evaluator,
		aggregator:  aggregator,
		clock:       clock,
		intn:        rand.Intn,
		base:        base,
		cancelBase:  cancel,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	g.resetLocked()
	return g
}

// ID returns the session id.
func (g *Game) ID() string {
	return g.id
}

// SetRandom replaces the source of random image picks.
func (g *Game) SetRandom(intn func(n int) int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intn = intn
}

// Start moves NotStarted -> Playing for round 1 with the first player's
// turn. Names are trimmed; between 1 and MaxPlayers are accepted.
func (g *Game) Start(names ...string) error {
	if len(names) == 0 {
		return domain.ErrInvalidName
	}
	if len(names) > MaxPlayers {
		return domain.ErrTooManyPlayers
	}
	players := make([]*domain.Player, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
			return domain.ErrInvalidName
		}
		players = append(players, &domain.Player{Name: name, Guesses: []string{}, GuessTimes: []int{}, Rounds: []domain.RoundScore{}})
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.phase != PhaseNotStarted {
		return domain.ErrInvalidPhase
	}
	if len(g.fixtures) == 0 {
		return domain.ErrNoFixtures
	}

	g.players = players
	g.submitted = make([]bool, len(players))
	g.round = 1
	g.turn = 0
	g.beginRoundLocked()
	log.Info().Str("session", g.id).Int("players", len(players)).Str("player", players[0].Name).Msg("game started")
	g.broadcastLocked()
	return nil
}

// SubmitGuess records the current player's guess for the active turn and,
// under the evaluator policy, starts scoring it against every fixture image.
func (g *Game) SubmitGuess(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyGuess
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhasePlaying || !g.timerActive {
		return domain.ErrInvalidPhase
	}

	if g.aggregator.Evaluates() && g.evaluator != nil {
		for _, f := range g.fixtures {
			g.pending = append(g.pending, g.evaluator.Start(text, f.URL, f.ID))
			g.owners = append(g.owners, g.turn)
		}
	}
	elapsed := g.roundSeconds() - g.timeRemaining
	g.endRoundLocked(text, elapsed, false)
	log.Info().Str("session", g.id).Int("round", g.round).Int("seat", g.turn).Int("elapsed", elapsed).Msg("guess submitted")
	g.broadcastLocked()
	return nil
}

// Reset discards the players and round state. In-flight timers and a running
// final calculation are superseded and have no further effect.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopRoundLocked()
	g.resetLocked()
	g.broadcastLocked()
}

// Close tears the engine down: timers stop and subscribers are released.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.stopRoundLocked()
	g.closed = true
	g.cancelBase()
	for ch := range g.subscribers {
		delete(g.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Summaries returns, in seat order, the leaderboard summaries of an ended
// game's players whose scores the store has not accepted yet.
func (g *Game) Summaries() ([]SeatSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseEnded || len(g.players) == 0 {
		return nil, domain.ErrGameNotEnded
	}
	out := make([]SeatSummary, 0, len(g.players))
	for seat, p := range g.players {
		if !g.submitted[seat] {
			out = append(out, SeatSummary{Seat: seat, Summary: domain.SummaryFor(p)})
		}
	}
	return out, nil
}

// MarkSubmitted records that the store accepted a seat's score.
func (g *Game) MarkSubmitted(seat int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseEnded && seat >= 0 && seat < len(g.submitted) {
		g.submitted[seat] = true
	}
}

// Subscribe streams a snapshot after every transition, starting with the
// current one. Slow readers only ever miss stale snapshots. The caller must
// invoke cancel to avoid leaks.
func (g *Game) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	g.subscribers[ch] = struct{}{}
	// The buffer is empty so this cannot block. Sending under mu orders the
	// initial snapshot before any broadcast and before Close.
	ch <- g.snapshotLocked()
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

func (g *Game) tick(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.phase != PhasePlaying || !g.timerActive {
		return
	}
	g.timeRemaining--
	if g.timeRemaining <= 0 {
		g.timeRemaining = 0
		g.endRoundLocked("", g.roundSeconds(), true)
		log.Info().Str("session", g.id).Int("round", g.round).Int("seat", g.turn).Msg("turn timed out")
	}
	g.broadcastLocked()
}

func (g *Game) advance(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.phase != PhaseShowingResult {
		return
	}
	g.stopRoundLocked()

	switch {
	case g.turn < len(g.players)-1:
		g.turn++
		g.beginRoundLocked()
		g.broadcastLocked()
		return
	case g.round < g.cfg.MaxRounds:
		g.round++
		g.turn = 0
		g.beginRoundLocked()
		g.broadcastLocked()
		return
	}

	// The latch: ticks and delays of this generation are already cancelled and
	// any other transition is rejected while the phase is Calculating.
	g.phase = PhaseCalculating
	pending := append([]*evaluation.Pending(nil), g.pending...)
	owners := append([]int(nil), g.owners...)
	played := append([]RoundGuess(nil), g.played...)
	log.Info().Str("session", g.id).Int("pending", len(pending)).Msg("calculating final score")
	g.broadcastLocked()
	go g.finish(g.gen, len(g.players), pending, owners, played)
}

type seatOutcome struct {
	rounds    []domain.RoundScore
	total     int
	breakdown domain.Breakdown
}

func (g *Game) finish(gen uint64, seats int, pending []*evaluation.Pending, owners []int, played []RoundGuess) {
	var results []domain.ScoreResult
	if g.evaluator != nil {
		results = g.evaluator.JoinAll(g.base, pending)
		// Match on the prompt that was sent, not the one the evaluator echoed.
		for i := range results {
			if pending[i] != nil {
				results[i].Prompt = pending[i].Prompt
			}
		}
	}

	outcomes := make([]seatOutcome, seats)
	for seat := range outcomes {
		var rounds []RoundGuess
		for _, r := range played {
			if r.Seat == seat {
				rounds = append(rounds, r)
			}
		}
		var own []domain.ScoreResult
		for i, res := range results {
			if owners[i] == seat {
				own = append(own, res)
			}
		}
		scores := g.aggregator.RoundScores(rounds, own)
		total := FinalScore(scores)
		outcomes[seat] = seatOutcome{rounds: scores, total: total, breakdown: BreakdownFor(total, own)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.phase != PhaseCalculating {
		return
	}
	g.breakdowns = make([]domain.Breakdown, seats)
	for seat, o := range outcomes {
		g.players[seat].Rounds = o.rounds
		g.players[seat].Score = o.total
		g.breakdowns[seat] = o.breakdown
	}
	g.phase = PhaseEnded
	top := g.scoreboardLocked()[0]
	log.Info().Str("session", g.id).Str("leader", top.Name).Int("score", top.Score).Str("grade", g.breakdowns[top.Seat].Grade).Msg("game ended")
	g.broadcastLocked()
}

func (g *Game) beginRoundLocked() {
	g.imageIdx = g.pickImage()
	g.timeRemaining = g.roundSeconds()
	g.timerActive = true
	g.timedOut = false
	g.lastGuess = ""
	g.phase = PhasePlaying

	g.gen++
	ctx, cancel := context.WithCancel(g.base)
	g.cancelRound = cancel
	gen := g.gen
	g.clock.Every(ctx, time.Second, func() { g.tick(gen) })
}

func (g *Game) endRoundLocked(guess string, elapsed int, timedOut bool) {
	g.stopRoundLocked()

	p := g.players[g.turn]
	p.Guesses = append(p.Guesses, guess)
	p.GuessTimes = append(p.GuessTimes, elapsed)
	g.played = append(g.played, RoundGuess{Round: g.round, Seat: g.turn, Guess: guess, Image: g.fixtures[g.imageIdx]})
	g.timerActive = false
	g.timedOut = timedOut
	g.lastGuess = guess
	g.phase = PhaseShowingResult

	delay := g.cfg.ResultDelay
	if timedOut {
		delay = g.cfg.TimeoutResultDelay
	}
	ctx, cancel := context.WithCancel(g.base)
	g.cancelRound = cancel
	gen := g.gen
	g.clock.AfterFunc(ctx, delay, func() { g.advance(gen) })
}

// stopRoundLocked cancels the turn's timers and invalidates their callbacks.
func (g *Game) stopRoundLocked() {
	if g.cancelRound != nil {
		g.cancelRound()
		g.cancelRound = nil
	}
	g.gen++
}

func (g *Game) resetLocked() {
	g.phase = PhaseNotStarted
	g.round = 1
	g.turn = 0
	g.imageIdx = 0
	g.timeRemaining = g.roundSeconds()
	g.timerActive = false
	g.timedOut = false
	g.lastGuess = ""
	g.players = nil
	g.pending = nil
	g.owners = nil
	g.played = nil
	g.breakdowns = nil
	g.submitted = nil
}

// pickImage chooses the image of the current turn. Sequential selection
// walks the fixtures turn by turn.
func (g *Game) pickImage() int {
	if g.cfg.ImageSelection == SelectRandom {
		return g.intn(len(g.fixtures))
	}
	return ((g.round-1)*len(g.players) + g.turn) % len(g.fixtures)
}

func (g *Game) roundSeconds() int {
	return int(g.cfg.RoundDuration / time.Second)
}

// scoreboardLocked ranks players by score. Equal scores share a rank and
// keep seat order.
func (g *Game) scoreboardLocked() []Standing {
	out := make([]Standing, len(g.players))
	for seat, p := range g.players {
		out[seat] = Standing{Seat: seat, Name: p.Name, Score: p.Score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

func (g *Game) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:             g.id,
		Phase:                 g.phase,
		Round:                 g.round,
		MaxRounds:             g.cfg.MaxRounds,
		Turn:                  g.turn,
		TimeRemaining:         g.timeRemaining,
		TimerActive:           g.timerActive,
		GameStarted:           g.phase != PhaseNotStarted,
		GameEnded:             g.phase == PhaseEnded,
		ShowingResult:         g.phase == PhaseShowingResult,
		CalculatingFinalScore: g.phase == PhaseCalculating,
		TimedOut:              g.timedOut,
		LastGuess:             g.lastGuess,
		PendingEvaluations:    len(g.pending),
	}
	if len(g.players) > 0 {
		s.Player = g.players[g.turn].Clone()
		s.Players = make([]*domain.Player, len(g.players))
		for i, p := range g.players {
			s.Players[i] = p.Clone()
		}
		s.Scoreboard = g.scoreboardLocked()
	}
	if g.phase == PhasePlaying || g.phase == PhaseShowingResult {
		f := g.fixtures[g.imageIdx]
		s.Image = &ImageView{ID: f.ID, URL: f.URL, Difficulty: f.Difficulty, Category: f.Category}
		if g.phase == PhaseShowingResult {
			s.Image.Prompt = f.CorrectPrompt
		}
	}
	if len(g.breakdowns) > 0 {
		b := g.breakdowns[s.Scoreboard[0].Seat]
		s.Breakdown = &b
	}
	return s
}

func (g *Game) broadcastLocked() {
	if len(g.subscribers) == 0 {
		return
	}
	snap := g.snapshotLocked()
	for ch := range g.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
