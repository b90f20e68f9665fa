package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Difficulty is the tier of an image fixture.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ImageFixture is one image of the fixed game dataset.
type ImageFixture struct {
	ID            int        `json:"id"`
	URL           string     `json:"url"`
	CorrectPrompt string     `json:"correctPrompt"`
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
}

// ScoreResult is the outcome of evaluating one (prompt, image) pair.
// Score is kept as the evaluator returned it; parsing happens in the aggregator.
type ScoreResult struct {
	Prompt  string `json:"prompt"`
	Score   string `json:"score"`
	ImageID int    `json:"imageId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FailedResult builds the zero-score result used for every failure path.
func FailedResult(prompt string, imageID int, reason string) ScoreResult {
	return ScoreResult{
		Prompt:  prompt,
		Score:   "0",
		ImageID: imageID,
		Success: false,
		Error:   reason,
	}
}

// RoundScore is the detailed record of one finished round.
type RoundScore struct {
	Round   int           `json:"round"`
	Prompt  string        `json:"prompt"`
	ImageID int           `json:"imageId"`
	Score   int           `json:"score"` // 0..100
	Results []ScoreResult `json:"results,omitempty"`
}

// Player holds everything recorded about one player of a session.
// Guesses and GuessTimes are parallel; an empty guess marks a timed-out round.
type Player struct {
	Name       string       `json:"name"`
	Score      int          `json:"score"`
	Guesses    []string     `json:"guesses"`
	GuessTimes []int        `json:"guessTimes"` // seconds
	Rounds     []RoundScore `json:"rounds"`
}

// Clone returns a deep copy safe to hand out of the engine lock.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	out := &Player{
		Name:       p.Name,
		Score:      p.Score,
		Guesses:    append([]string(nil), p.Guesses...),
		GuessTimes: append([]int(nil), p.GuessTimes...),
		Rounds:     make([]RoundScore, len(p.Rounds)),
	}
	for i, r := range p.Rounds {
		r.Results = append([]ScoreResult(nil), r.Results...)
		out.Rounds[i] = r
	}
	return out
}

// Summary is what gets submitted to the leaderboard store.
type Summary struct {
	Name         string  `json:"name"`
	Score        int     `json:"score"`
	TotalTime    float64 `json:"total_time"`
	AverageTime  float64 `json:"average_time"`
	FastestGuess float64 `json:"fastest_guess"`
}

// SummaryFor derives the leaderboard summary from a finished player.
func SummaryFor(p *Player) Summary {
	s := Summary{Name: p.Name, Score: p.Score}
	if len(p.GuessTimes) == 0 {
		return s
	}
	fastest := p.GuessTimes[0]
	total := 0
	for _, t := range p.GuessTimes {
		total += t
		if t < fastest {
			fastest = t
		}
	}
	s.TotalTime = float64(total)
	s.AverageTime = float64(total) / float64(len(p.GuessTimes))
	s.FastestGuess = float64(fastest)
	return s
}

// SubmitAck is the store's answer to a submission.
type SubmitAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LeaderboardEntry is a ranked row owned by the remote store.
type LeaderboardEntry struct {
	ID           EntryID   `json:"id"`
	Name         string    `json:"name"`
	Score        int       `json:"score"`
	TotalTime    float64   `json:"total_time"`
	AverageTime  float64   `json:"average_time"`
	FastestGuess float64   `json:"fastest_guess"`
	SubmittedAt  Timestamp `json:"submitted_at"`
	Rank         int       `json:"rank"`
}

// UnmarshalJSON accepts fractional and quoted scores and rounds them.
func (e *LeaderboardEntry) UnmarshalJSON(data []byte) error {
	type plain LeaderboardEntry
	aux := struct {
		*plain
		Score json.Number `json:"score"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Score = 0
	if aux.Score == "" {
		return nil
	}
	v, err := aux.Score.Float64()
	if err != nil {
		return fmt.Errorf("leaderboard score %q: %w", aux.Score, err)
	}
	e.Score = int(math.Round(v))
	return nil
}

// Timestamp is a store time. Values without a zone are read as UTC and
// anything unparseable is kept verbatim in Raw.
type Timestamp struct {
	time.Time
	Raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = string(data)
	}
	ts.Raw = raw
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			return nil
		}
	}
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	switch {
	case !ts.Time.IsZero():
		return ts.Time.MarshalJSON()
	case ts.Raw != "":
		return json.Marshal(ts.Raw)
	default:
		return []byte("null"), nil
	}
}

// EntryID accepts both numeric and string identifiers from the store.
type EntryID string

func (id *EntryID) UnmarshalJSON(data []byte) error {
	*id = EntryID(strings.Trim(string(data), `"`))
	if *id == "null" {
		*id = ""
	}
	return nil
}

// Leaderboard is one page of the remote ranking.
type Leaderboard struct {
	Entries      []LeaderboardEntry `json:"leaderboard"`
	TotalEntries int                `json:"total_entries"`
	SortedBy     string             `json:"sorted_by"`
	Order        string             `json:"order"`
}

// Breakdown describes the final result shown when a game ends.
type Breakdown struct {
	Total      int    `json:"total"`
	Grade      string `json:"grade"`
	Message    string `json:"message"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// GradeFor maps a final score to a letter grade and a short message.
func GradeFor(score int) (string, string) {
	switch {
	case score >= 400:
		return "A+", "Amazing! You're a prompt master!"
	case score >= 300:
		return "A", "Great job! You know AI art well!"
	case score >= 200:
		return "B", "Good work! Keep practicing!"
	case score >= 100:
		return "C", "Not bad! Try again to improve your score!"
	default:
		return "D", "Not bad! Try again to improve your score!"
	}
}
