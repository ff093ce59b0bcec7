package question

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/question/external"
)

type opentdbProvider interface {
	Fetch(ctx context.Context, req external.OpenTDBRequest) ([]external.OpenTDBQuestion, error)
}

// Service resolves question sets from the custom list or the remote provider.
type Service struct {
	opentdb opentdbProvider
	custom  *CustomRepository
	shuffle func(n int, swap func(i, j int))
	logger  zerolog.Logger
}

type ServiceOptions struct {
	// Shuffle permutes n elements; defaults to math/rand.Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

func NewService(opentdb opentdbProvider, custom *CustomRepository, logger zerolog.Logger, opts ServiceOptions) *Service {
	shuffle := opts.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Service{
		opentdb: opentdb,
		custom:  custom,
		shuffle: shuffle,
		logger:  logger.With().Str("component", "question_source").Logger(),
	}
}

// Resolve returns questions for f: the custom list when no category is selected and it
// holds enough entries, the remote provider otherwise.
func (s *Service) Resolve(ctx context.Context, f Filters) ([]Question, error) {
	if qs, ok := s.UseCustom(ctx, f); ok {
		s.logger.Debug().Int("count", len(qs)).Msg("using custom questions")
		return qs, nil
	}
	return s.FetchRemote(ctx, f)
}

// UseCustom draws f.Count shuffled questions from the custom list. It reports false when
// a category filter is set or the list is too short.
func (s *Service) UseCustom(ctx context.Context, f Filters) ([]Question, bool) {
	if s.custom == nil || f.Category != "" || f.Count < 1 {
		return nil, false
	}
	list := s.custom.List(ctx)
	if len(list) < f.Count {
		return nil, false
	}
	s.shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })

	out := make([]Question, 0, f.Count)
	for _, cq := range list[:f.Count] {
		out = append(out, s.fromCustom(cq))
	}
	return out, true
}

// FetchRemote requests f.Count multiple-choice questions from OpenTDB.
func (s *Service) FetchRemote(ctx context.Context, f Filters) ([]Question, error) {
	if s.opentdb == nil {
		return nil, fmt.Errorf("%w: no remote provider configured", ErrFetchFailed)
	}
	results, err := s.opentdb.Fetch(ctx, external.OpenTDBRequest{
		Amount:     f.Count,
		Category:   f.Category,
		Difficulty: f.Difficulty,
		Type:       TypeMultiple,
	})
	if err != nil {
		if errors.Is(err, external.ErrNoResults) {
			return nil, ErrNoResults
		}
		s.logger.Warn().Err(err).Str("category", f.Category).Str("difficulty", f.Difficulty).Msg("remote fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	out := make([]Question, 0, len(results))
	for _, q := range results {
		out = append(out, s.normalizeOpenTDB(q))
	}
	return out, nil
}

func (s *Service) normalizeOpenTDB(q external.OpenTDBQuestion) Question {
	incorrect := make([]string, 0, len(q.IncorrectAnswer))
	for _, a := range q.IncorrectAnswer {
		incorrect = append(incorrect, html.UnescapeString(a))
	}
	return s.build(Question{
		Text:             html.UnescapeString(q.Question),
		CorrectAnswer:    html.UnescapeString(q.CorrectAnswer),
		IncorrectAnswers: incorrect,
		Category:         html.UnescapeString(q.Category),
		Difficulty:       q.Difficulty,
		Source:           SourceOpenTDB,
	})
}

func (s *Service) fromCustom(cq CustomQuestion) Question {
	incorrect := make([]string, 0, len(cq.Options)-1)
	for _, opt := range cq.Options {
		if opt != cq.Correct {
			incorrect = append(incorrect, opt)
		}
	}
	return s.build(Question{
		Text:             cq.Question,
		CorrectAnswer:    cq.Correct,
		IncorrectAnswers: incorrect,
		Category:         CustomCategory,
		Difficulty:       DifficultyCustom,
		Source:           SourceCustom,
	})
}

// build fixes the display order of q's options.
func (s *Service) build(q Question) Question {
	options := make([]string, 0, len(q.IncorrectAnswers)+1)
	options = append(options, q.CorrectAnswer)
	options = append(options, q.IncorrectAnswers...)
	s.shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	q.Options = options
	return q
}
