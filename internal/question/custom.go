package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gokatarajesh/smart-quiz/internal/storage"
)

// kvStore is the slice of storage.Store used by repositories in this package.
type kvStore interface {
	Load(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any)
}

// CustomInput is the user-supplied part of a CustomQuestion.
type CustomInput struct {
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
	Correct  string   `json:"correct" yaml:"correct"`
}

// CustomRepository manages the user's custom-question list in the key-value store.
type CustomRepository struct {
	store    kvStore
	validate *validator.Validate
	now      func() time.Time
	mu       sync.Mutex
}

func NewCustomRepository(store kvStore) *CustomRepository {
	v := validator.New()
	v.RegisterStructValidation(correctIsOption, CustomQuestion{})
	return &CustomRepository{
		store:    store,
		validate: v,
		now:      time.Now,
	}
}

// correctIsOption rejects a correct answer that is not one of the four options.
func correctIsOption(sl validator.StructLevel) {
	q := sl.Current().Interface().(CustomQuestion)
	for _, opt := range q.Options {
		if opt == q.Correct {
			return
		}
	}
	sl.ReportError(q.Correct, "Correct", "correct", "oneofoptions", "")
}

// List returns the custom questions in insertion order.
func (r *CustomRepository) List(ctx context.Context) []CustomQuestion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Count returns the number of stored custom questions.
func (r *CustomRepository) Count(ctx context.Context) int {
	return len(r.List(ctx))
}

// Add validates in and appends it to the list.
func (r *CustomRepository) Add(ctx context.Context, in CustomInput) (CustomQuestion, error) {
	q := CustomQuestion{
		ID:       uuid.NewString(),
		Question: strings.TrimSpace(in.Question),
		Correct:  strings.TrimSpace(in.Correct),
		AddedAt:  r.now().UTC(),
	}
	for _, opt := range in.Options {
		q.Options = append(q.Options, strings.TrimSpace(opt))
	}
	if err := r.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return CustomQuestion{}, fmt.Errorf("%w: %s failed %s", ErrInvalidCustomQuestion, verrs[0].Field(), verrs[0].Tag())
		}
		return CustomQuestion{}, fmt.Errorf("%w: %v", ErrInvalidCustomQuestion, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.load(ctx), q)
	r.store.Set(ctx, storage.KeyCustomQuestions, list)
	return q, nil
}

// Delete removes the question with id.
func (r *CustomRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.load(ctx)
	for i, q := range list {
		if q.ID == id {
			list = append(list[:i], list[i+1:]...)
			r.store.Set(ctx, storage.KeyCustomQuestions, list)
			return nil
		}
	}
	return ErrCustomNotFound
}

func (r *CustomRepository) load(ctx context.Context) []CustomQuestion {
	var list []CustomQuestion
	if !r.store.Load(ctx, storage.KeyCustomQuestions, &list) {
		return []CustomQuestion{}
	}
	return list
}
