package app

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"guess-the-prompt/internal/domain"
)

const (
	PolicyEvaluator = "evaluator"
	PolicyKeyword   = "keyword"
)

// RoundGuess is what the aggregator needs to know about one played round.
type RoundGuess struct {
	Round int
	Seat  int    // turn order of the player who guessed
	Guess string // empty when the round timed out
	Image domain.ImageFixture
}

// Aggregator turns played rounds and evaluation results into round scores.
type Aggregator interface {
	// Evaluates reports whether guesses must be sent to the evaluator.
	Evaluates() bool
	RoundScores(rounds []RoundGuess, results []domain.ScoreResult) []domain.RoundScore
}

// AggregatorFor returns the aggregator for a configured policy name.
func AggregatorFor(policy string) (Aggregator, error) {
	switch strings.ToLower(policy) {
	case "", PolicyEvaluator:
		return EvaluatorAggregator{}, nil
	case PolicyKeyword:
		return NewKeywordAggregator(nil), nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", policy)
	}
}

// FinalScore sums round scores.
func FinalScore(rounds []domain.RoundScore) int {
	total := 0
	for _, r := range rounds {
		total += r.Score
	}
	return total
}

// BreakdownFor summarizes a finished game.
func BreakdownFor(total int, results []domain.ScoreResult) domain.Breakdown {
	b := domain.Breakdown{Total: total}
	b.Grade, b.Message = domain.GradeFor(total)
	for _, r := range results {
		if r.Success {
			b.Successful++
		} else {
			b.Failed++
		}
	}
	return b
}

// EvaluatorAggregator averages the evaluator's scores for every result whose
// prompt equals the round's guess. A guess is scored against every image, so
// results are matched by prompt rather than by the image shown.
type EvaluatorAggregator struct{}

func (EvaluatorAggregator) Evaluates() bool { return true }

func (EvaluatorAggregator) RoundScores(rounds []RoundGuess, results []domain.ScoreResult) []domain.RoundScore {
	out := make([]domain.RoundScore, 0, len(rounds))
	for _, r := range rounds {
		rs := domain.RoundScore{Round: r.Round, Prompt: r.Guess, ImageID: r.Image.ID}
		if r.Guess != "" {
			sum := 0.0
			for _, res := range results {
				if res.Prompt != r.Guess {
					continue
				}
				rs.Results = append(rs.Results, res)
				sum += ParseScore(res.Score)
			}
			if len(rs.Results) > 0 {
				rs.Score = clampScore(int(math.Round(sum / float64(len(rs.Results)))))
			}
		}
		out = append(out, rs)
	}
	return out
}

var leadingNumber = regexp.MustCompile(`^[-+]?\d+(\.\d+)?`)

// ParseScore reads the leading number of an evaluator score, clamped to
// [0, 100]. Anything unparseable counts as 0.
func ParseScore(raw string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// KeywordAggregator scores guesses locally by word overlap with the
// reference prompt. No evaluator is involved.
type KeywordAggregator struct {
	random func() float64
}

// NewKeywordAggregator uses random for the creativity bonus; nil means math/rand.
func NewKeywordAggregator(random func() float64) *KeywordAggregator {
	if random == nil {
		random = rand.Float64
	}
	return &KeywordAggregator{random: random}
}

func (k *KeywordAggregator) Evaluates() bool { return false }

func (k *KeywordAggregator) RoundScores(rounds []RoundGuess, _ []domain.ScoreResult) []domain.RoundScore {
	out := make([]domain.RoundScore, 0, len(rounds))
	for _, r := range rounds {
		rs := domain.RoundScore{Round: r.Round, Prompt: r.Guess, ImageID: r.Image.ID}
		if r.Guess != "" {
			rs.Score = k.Score(r.Guess, r.Image.CorrectPrompt)
		}
		out = append(out, rs)
	}
	return out
}

// Score rates one guess: 100 for an exact match, otherwise up to 80 points
// for overlapping words plus a 10 point bonus with probability 0.3.
func (k *KeywordAggregator) Score(guess, reference string) int {
	if strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(reference)) {
		return 100
	}
	guessWords := keywords(guess)
	refWords := keywords(reference)

	matches := 0
	for _, w := range guessWords {
		for _, ref := range refWords {
			if strings.Contains(ref, w) || strings.Contains(w, ref) {
				matches++
				break
			}
		}
	}

	wordScore := 0.0
	if len(refWords) > 0 {
		wordScore = math.Min(80, float64(matches)/float64(len(refWords))*80)
	}
	bonus := 0.0
	if k.random() > 0.7 {
		bonus = 10
	}
	return clampScore(int(math.Floor(wordScore + bonus)))
}

func keywords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
