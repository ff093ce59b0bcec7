package scoring

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Persisted scores are JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ScoringConfig holds configurable scoring constants.
type ScoringConfig struct {
	CorrectPoints decimal.Decimal // default: 1
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{CorrectPoints: decimal.NewFromInt(1)}
}

// Engine computes per-answer deltas and the end-of-run figures.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	return &Engine{config: config}
}

// Outcome is the effect of one answer on the running tally.
type Outcome struct {
	Delta     decimal.Decimal
	IsCorrect bool
	TimeTaken int
}

// Evaluate scores a selection. A timeout is an incorrect answer that took the whole allowance.
// negative is the (≤ 0) value added for a wrong answer.
func (e *Engine) Evaluate(isCorrect, timedOut bool, negative float64, secondsPerQuestion, timeLeft int) Outcome {
	out := Outcome{
		IsCorrect: isCorrect && !timedOut,
		TimeTaken: TimeTaken(secondsPerQuestion, timeLeft, timedOut),
	}
	if out.IsCorrect {
		out.Delta = e.config.CorrectPoints
	} else {
		out.Delta = decimal.NewFromFloat(negative)
	}
	return out
}

// Tally is the running score of a session.
type Tally struct {
	Score   decimal.Decimal `json:"score"`
	Correct int             `json:"correctCount"`
	Wrong   int             `json:"wrongCount"`
}

// Apply adds an outcome to the tally.
func (t *Tally) Apply(o Outcome) {
	t.Score = t.Score.Add(o.Delta)
	if o.IsCorrect {
		t.Correct++
	} else {
		t.Wrong++
	}
}

// TimeTaken is the seconds spent on a question, never negative.
func TimeTaken(secondsPerQuestion, timeLeft int, timedOut bool) int {
	if timedOut {
		return secondsPerQuestion
	}
	taken := secondsPerQuestion - timeLeft
	if taken < 0 {
		return 0
	}
	return taken
}

// Percentage is round(100 * correct / total), or 0 without questions.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(100 * correct)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).IntPart())
}

// ElapsedSeconds rounds the wall-clock duration of a run to whole seconds.
func ElapsedSeconds(startedAt, now time.Time) int {
	d := now.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d.Round(time.Second) / time.Second)
}

// RoundScore is the two-decimal value stored on the leaderboard.
func RoundScore(score decimal.Decimal) float64 {
	return score.Round(2).InexactFloat64()
}

// FormatScore renders score with at most one decimal, dropping a trailing zero.
func FormatScore(score decimal.Decimal) string {
	return score.Round(1).String()
}
