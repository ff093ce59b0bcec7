// Package recovery detects an interrupted quiz and hands its snapshot back to the machine.
package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/quiz"
	"github.com/gokatarajesh/smart-quiz/internal/quiz/scoring"
	"github.com/gokatarajesh/smart-quiz/internal/storage"
)

type snapshotLoader interface {
	Load(ctx context.Context, key string, dst any) bool
}

type restorer interface {
	Restore(ctx context.Context, snap *quiz.SessionState) (quiz.View, error)
}

// Summary describes a resumable run without restoring it.
type Summary struct {
	SessionID string    `json:"sessionId"`
	User      string    `json:"user"`
	Index     int       `json:"currentIndex"`
	Total     int       `json:"total"`
	Answered  int       `json:"answered"`
	Score     string    `json:"score"`
	StartedAt time.Time `json:"startedAt"`
}

// Controller checks for and resumes persisted sessions.
type Controller struct {
	store   snapshotLoader
	machine restorer
	logger  zerolog.Logger
}

func NewController(store snapshotLoader, machine restorer, logger zerolog.Logger) *Controller {
	return &Controller{
		store:   store,
		machine: machine,
		logger:  logger.With().Str("component", "recovery").Logger(),
	}
}

// Check reports whether an unfinished snapshot with questions is stored.
func (c *Controller) Check(ctx context.Context) (Summary, bool) {
	snap, ok := c.load(ctx)
	if !ok {
		return Summary{}, false
	}
	return Summary{
		SessionID: snap.ID,
		User:      snap.User,
		Index:     snap.Index,
		Total:     len(snap.Questions),
		Answered:  len(snap.AnswerLog),
		Score:     scoring.FormatScore(snap.Score),
		StartedAt: snap.StartedAt,
	}, true
}

// Resume restores the stored snapshot into the machine.
func (c *Controller) Resume(ctx context.Context) (quiz.View, error) {
	snap, ok := c.load(ctx)
	if !ok {
		return quiz.View{}, quiz.ErrNothingToResume
	}
	view, err := c.machine.Restore(ctx, snap)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", snap.ID).Msg("resume failed")
		return quiz.View{}, err
	}
	return view, nil
}

func (c *Controller) load(ctx context.Context) (*quiz.SessionState, bool) {
	var snap quiz.SessionState
	if !c.store.Load(ctx, storage.KeySessionState, &snap) {
		return nil, false
	}
	if snap.Finished || len(snap.Questions) == 0 {
		return nil, false
	}
	return &snap, true
}
