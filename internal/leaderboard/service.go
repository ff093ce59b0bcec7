package leaderboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/storage"
)

// DefaultCapacity is the number of runs kept on the board.
const DefaultCapacity = 100

// Entry is one completed run.
type Entry struct {
	User             string    `json:"user"`
	Score            float64   `json:"score"`
	CorrectCount     int       `json:"correctCount"`
	WrongCount       int       `json:"wrongCount"`
	Total            int       `json:"total"`
	Percentage       int       `json:"percentage"`
	TimeTakenSeconds int       `json:"timeTakenSeconds"`
	CompletedAt      time.Time `json:"completedAt"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
}

// ahead reports whether a ranks before b: higher score first, faster run on ties.
func ahead(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.TimeTakenSeconds < b.TimeTakenSeconds
}

type kvStore interface {
	Load(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any)
	Remove(ctx context.Context, key string)
}

// notifier receives the board after every submission.
type notifier interface {
	Publish(board []Entry, rank int)
}

type submitRecorder interface {
	Submitted()
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	Capacity int
	Notifier notifier
	Metrics  submitRecorder
}

// Service keeps the ranked, size-bounded run history in the key-value store.
type Service struct {
	store    kvStore
	logger   zerolog.Logger
	capacity int
	notifier notifier
	metrics  submitRecorder
	mu       sync.Mutex
}

// NewService constructs a leaderboard service instance.
func NewService(store kvStore, logger zerolog.Logger, opts ServiceOptions) *Service {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Service{
		store:    store,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		capacity: capacity,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
	}
}

// Submit inserts entry, re-sorts the board and truncates it to capacity. It returns the
// 1-based rank of the new entry, or 0 when it did not make the board.
func (s *Service) Submit(ctx context.Context, entry Entry) int {
	s.mu.Lock()
	board := s.load(ctx)

	rank := 1
	for _, e := range board {
		if !ahead(entry, e) {
			rank++
		}
	}

	board = append(board, entry)
	sort.SliceStable(board, func(i, j int) bool { return ahead(board[i], board[j]) })
	if len(board) > s.capacity {
		board = board[:s.capacity]
	}
	if rank > s.capacity {
		rank = 0
	}
	s.store.Set(ctx, storage.KeyLeaderboard, board)
	s.mu.Unlock()

	s.logger.Info().
		Str("user", entry.User).
		Float64("score", entry.Score).
		Int("rank", rank).
		Msg("leaderboard entry recorded")

	if s.metrics != nil {
		s.metrics.Submitted()
	}
	if s.notifier != nil {
		s.notifier.Publish(board, rank)
	}
	return rank
}

// List returns the board in stored order.
func (s *Service) List(ctx context.Context) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Top returns at most limit entries; limit <= 0 means all of them.
func (s *Service) Top(ctx context.Context, limit int) []Entry {
	board := s.List(ctx)
	if limit > 0 && limit < len(board) {
		board = board[:limit]
	}
	return board
}

// Clear empties the board.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Remove(ctx, storage.KeyLeaderboard)
	s.logger.Info().Msg("leaderboard cleared")
}

func (s *Service) load(ctx context.Context) []Entry {
	var board []Entry
	if !s.store.Load(ctx, storage.KeyLeaderboard, &board) || board == nil {
		return []Entry{}
	}
	return board
}
