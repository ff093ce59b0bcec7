package question

import (
	"errors"
	"time"
)

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyCustom = "custom"
)

// TypeMultiple is the only question type requested from providers.
const TypeMultiple = "multiple"

// Source labels.
const (
	SourceOpenTDB = "opentdb"
	SourceCustom  = "custom"
)

// CustomCategory is the category assigned to questions drawn from the custom list.
const CustomCategory = "Custom"

var (
	ErrFetchFailed           = errors.New("failed to fetch questions from server")
	ErrNoResults             = errors.New("no questions found for your selection, please try different settings")
	ErrInvalidCustomQuestion = errors.New("please fill in the question and all four options")
	ErrCustomNotFound        = errors.New("custom question not found")
)

// Question is the normalized, immutable shape shared by every provider.
type Question struct {
	Text             string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
	Options          []string `json:"options"` // display order, fixed at normalization
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Source           string   `json:"source"`
}

// HasOption reports whether opt is one of the question's answers.
func (q Question) HasOption(opt string) bool {
	if opt == q.CorrectAnswer {
		return true
	}
	for _, o := range q.IncorrectAnswers {
		if o == opt {
			return true
		}
	}
	return false
}

// Filters narrows a question request.
type Filters struct {
	Category   string
	Difficulty string
	Count      int
}

// CustomQuestion is a user-authored multiple-choice question.
type CustomQuestion struct {
	ID       string    `json:"id"`
	Question string    `json:"question" yaml:"question" validate:"required"`
	Options  []string  `json:"options" yaml:"options" validate:"len=4,dive,required"`
	Correct  string    `json:"correct" yaml:"correct" validate:"required"`
	AddedAt  time.Time `json:"addedAt" yaml:"-"`
}
