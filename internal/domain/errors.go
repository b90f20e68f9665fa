package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a game session is unknown.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrInvalidPhase is returned when an action does not fit the current phase.
	ErrInvalidPhase = errors.New("invalid phase for action")
	// ErrInvalidName is returned for empty or overlong player names.
	ErrInvalidName = errors.New("player name must be 1-20 characters")
	// ErrEmptyGuess is returned when a blank guess is submitted.
	ErrEmptyGuess = errors.New("guess must not be empty")
	// ErrGameNotEnded is returned when a summary is requested before the game ended.
	ErrGameNotEnded = errors.New("game has not ended")
	// ErrNoFixtures indicates the fixture set is empty.
	ErrNoFixtures = errors.New("no image fixtures available")
	// ErrFixtureNotFound is returned when no fixture has the requested id.
	ErrFixtureNotFound = errors.New("image fixture not found")
	// ErrTooManyPlayers is returned when a game is started with more than six players.
	ErrTooManyPlayers = errors.New("a game takes at most 6 players")
)
