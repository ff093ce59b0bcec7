package quiz

import (
	"errors"
	"time"

	"github.com/gokatarajesh/smart-quiz/internal/question"
	"github.com/gokatarajesh/smart-quiz/internal/quiz/scoring"
)

// Phase is the lifecycle state of the machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseConfiguring Phase = "configuring"
	PhaseInProgress  Phase = "in_progress"
	PhaseFinished    Phase = "finished"
)

// TimedOutAnswer is recorded as the selection when the countdown expires.
const TimedOutAnswer = "(timed out)"

const (
	minSecondsPerQuestion = 5
	defaultCategoryLabel  = "General"
	defaultDifficulty     = "medium"
)

var (
	ErrNoQuestionsAvailable = errors.New("no questions available")
	ErrNothingToResume      = errors.New("no valid quiz state found to resume")
	ErrStartInProgress      = errors.New("a quiz is already being prepared")
	ErrNoActiveSession      = errors.New("no quiz in progress")
	ErrNotAnswered          = errors.New("select an answer first")
	ErrUnknownOption        = errors.New("answer is not one of the options")
	ErrUserRequired         = errors.New("a display name is required")
	ErrNoResult             = errors.New("no finished quiz")
)

// Settings are the user's choices for a run.
type Settings struct {
	Category             string  `json:"category,omitempty"`
	Difficulty           string  `json:"difficulty,omitempty"`
	QuestionCount        int     `json:"questionCount"`
	SecondsPerQuestion   int     `json:"secondsPerQuestion"`
	NegativeMarkingValue float64 `json:"negativeMarkingValue"`
}

// Defaults fill settings the user left empty.
type Defaults struct {
	QuestionCount      int
	SecondsPerQuestion int
}

// Normalize applies defaults, clamps the timer to the minimum and makes the penalty non-positive.
func (s Settings) Normalize(d Defaults) Settings {
	if s.QuestionCount < 1 {
		s.QuestionCount = d.QuestionCount
		if s.QuestionCount < 1 {
			s.QuestionCount = 10
		}
	}
	if s.SecondsPerQuestion <= 0 {
		s.SecondsPerQuestion = d.SecondsPerQuestion
	}
	if s.SecondsPerQuestion < minSecondsPerQuestion {
		s.SecondsPerQuestion = minSecondsPerQuestion
	}
	if s.NegativeMarkingValue > 0 {
		s.NegativeMarkingValue = -s.NegativeMarkingValue
	}
	return s
}

// Filters converts settings into a question request.
func (s Settings) Filters() question.Filters {
	return question.Filters{
		Category:   s.Category,
		Difficulty: s.Difficulty,
		Count:      s.QuestionCount,
	}
}

// AnsweredRecord is the immutable log entry for one question.
type AnsweredRecord struct {
	QuestionText     string   `json:"questionText"`
	ShownOptions     []string `json:"shownOptions"`
	CorrectAnswer    string   `json:"correctAnswer"`
	SelectedAnswer   string   `json:"selectedAnswer"`
	IsCorrect        bool     `json:"isCorrect"`
	TimeTakenSeconds int      `json:"timeTakenSeconds"`
	Category         string   `json:"category"`
}

// TimedOut reports whether the record was produced by the countdown.
func (r AnsweredRecord) TimedOut() bool {
	return r.SelectedAnswer == TimedOutAnswer
}

// SessionState is the persisted snapshot of an in-progress run.
type SessionState struct {
	scoring.Tally
	ID              string                 `json:"id"`
	User            string                 `json:"user"`
	Settings        *Settings              `json:"settings,omitempty"`
	Questions       []question.Question    `json:"questions"`
	Index           int                    `json:"currentIndex"`
	AnswerLog       map[int]AnsweredRecord `json:"answerLog"`
	TimeLeftSeconds int                    `json:"timeLeftSeconds"`
	StartedAt       time.Time              `json:"startedAt"`
	Finished        bool                   `json:"finished"`
}

func (s *SessionState) current() question.Question {
	return s.Questions[s.Index]
}

func (s *SessionState) answered(i int) (AnsweredRecord, bool) {
	rec, ok := s.AnswerLog[i]
	return rec, ok
}

func (s *SessionState) isLast() bool {
	return s.Index == len(s.Questions)-1
}

// ReviewItem is one answered question in the result review.
type ReviewItem struct {
	Index int `json:"index"`
	AnsweredRecord
}

// Result summarizes a finished run.
type Result struct {
	SessionID      string       `json:"sessionId"`
	User           string       `json:"user"`
	Score          float64      `json:"score"`
	ScoreDisplay   string       `json:"scoreDisplay"`
	CorrectCount   int          `json:"correctCount"`
	WrongCount     int          `json:"wrongCount"`
	Total          int          `json:"total"`
	Percentage     int          `json:"percentage"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	Category       string       `json:"category"`
	Difficulty     string       `json:"difficulty"`
	Rank           int          `json:"rank,omitempty"`
	CompletedAt    time.Time    `json:"completedAt"`
	Review         []ReviewItem `json:"review"`
}

// Option states in a question view.
const (
	OptionCorrect = "correct"
	OptionWrong   = "wrong"
)

// OptionView is one answer button.
type OptionView struct {
	Text     string `json:"text"`
	Disabled bool   `json:"disabled"`
	State    string `json:"state,omitempty"`
}

// View is the read-only presentation of the current question.
type View struct {
	SessionID       string       `json:"sessionId"`
	Phase           Phase        `json:"phase"`
	Index           int          `json:"index"`
	Total           int          `json:"total"`
	Counter         string       `json:"counter"`
	ProgressPercent int          `json:"progressPercent"`
	Question        string       `json:"question"`
	Category        string       `json:"category"`
	Difficulty      string       `json:"difficulty"`
	Options         []OptionView `json:"options"`
	Answered        bool         `json:"answered"`
	TimeLeftSeconds int          `json:"timeLeftSeconds"`
	Score           string       `json:"score"`
	CanGoBack       bool         `json:"canGoBack"`
	NextEnabled     bool         `json:"nextEnabled"`
	NextLabel       string       `json:"nextLabel"`
}
