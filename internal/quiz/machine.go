package quiz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/leaderboard"
	"github.com/gokatarajesh/smart-quiz/internal/question"
	"github.com/gokatarajesh/smart-quiz/internal/quiz/scoring"
	"github.com/gokatarajesh/smart-quiz/internal/storage"
)

const mixedLabel = "Mixed"

type snapshotStore interface {
	Load(ctx context.Context, key string, dst any) bool
	LoadString(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value any)
	Remove(ctx context.Context, key string)
}

type questionSource interface {
	Resolve(ctx context.Context, f question.Filters) ([]question.Question, error)
}

type leaderboardSubmitter interface {
	Submit(ctx context.Context, entry leaderboard.Entry) int
}

// Recorder receives session counters. *metrics.Metrics satisfies it.
type Recorder interface {
	SessionStarted()
	SessionFinished()
	SessionResumed()
	SessionQuit()
	AnswerRecorded(outcome string)
	QuestionsResolved(err error)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()         {}
func (nopRecorder) SessionFinished()        {}
func (nopRecorder) SessionResumed()         {}
func (nopRecorder) SessionQuit()            {}
func (nopRecorder) AnswerRecorded(string)   {}
func (nopRecorder) QuestionsResolved(error) {}

// Options configures a Machine. Zero values select production behavior.
type Options struct {
	Clock     Clock
	Publisher Publisher
	Metrics   Recorder
	Engine    *scoring.Engine
	Defaults  Defaults
	NewID     func() string
}

// Machine owns the single in-progress quiz. All mutation is serialized by mu; the countdown
// runs in its own goroutine and re-enters through tick.
type Machine struct {
	mu       sync.Mutex
	phase    Phase
	session  *SessionState
	result   *Result
	gen      uint64
	stopTick func()

	store     snapshotStore
	source    questionSource
	board     leaderboardSubmitter
	clock     Clock
	publisher Publisher
	metrics   Recorder
	engine    *scoring.Engine
	defaults  Defaults
	newID     func() string
	logger    zerolog.Logger
}

func NewMachine(store snapshotStore, source questionSource, board leaderboardSubmitter, logger zerolog.Logger, opts Options) *Machine {
	m := &Machine{
		phase:     PhaseIdle,
		store:     store,
		source:    source,
		board:     board,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		engine:    opts.Engine,
		defaults:  opts.Defaults,
		newID:     opts.NewID,
		logger:    logger.With().Str("component", "quiz_machine").Logger(),
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.publisher == nil {
		m.publisher = nopPublisher{}
	}
	if m.metrics == nil {
		m.metrics = nopRecorder{}
	}
	if m.engine == nil {
		m.engine = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Phase returns the current lifecycle state.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// StartWith loads questions for settings and starts a run. The machine is Configuring while
// the source is consulted; a concurrent start fails with ErrStartInProgress.
func (m *Machine) StartWith(ctx context.Context, settings Settings) (View, error) {
	m.mu.Lock()
	if m.phase == PhaseConfiguring {
		m.mu.Unlock()
		return View{}, ErrStartInProgress
	}
	user, ok := m.userLocked(ctx)
	if !ok {
		m.mu.Unlock()
		return View{}, ErrUserRequired
	}
	settings = settings.Normalize(m.defaults)
	fallback := m.phase
	if m.phase == PhaseInProgress {
		m.suspendLocked(ctx)
		fallback = PhaseIdle
	}
	m.phase = PhaseConfiguring
	m.mu.Unlock()

	qs, err := m.source.Resolve(ctx, settings.Filters())
	m.metrics.QuestionsResolved(err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.phase = fallback
		m.logger.Warn().Err(err).Str("category", settings.Category).Str("difficulty", settings.Difficulty).Msg("question load failed")
		return View{}, fmt.Errorf("load questions: %w", err)
	}
	view, err := m.startLocked(ctx, user, settings, qs)
	if err != nil {
		m.phase = fallback
	}
	return view, err
}

// Start begins a run over the given questions. Fewer questions than requested are accepted.
func (m *Machine) Start(ctx context.Context, settings Settings, qs []question.Question) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseConfiguring {
		return View{}, ErrStartInProgress
	}
	user, ok := m.userLocked(ctx)
	if !ok {
		return View{}, ErrUserRequired
	}
	if len(qs) == 0 {
		return View{}, ErrNoQuestionsAvailable
	}
	if m.phase == PhaseInProgress {
		m.suspendLocked(ctx)
		m.phase = PhaseIdle
	}
	return m.startLocked(ctx, user, settings.Normalize(m.defaults), qs)
}

func (m *Machine) startLocked(ctx context.Context, user string, settings Settings, qs []question.Question) (View, error) {
	if len(qs) == 0 {
		return View{}, ErrNoQuestionsAvailable
	}
	m.stopTimerLocked()
	m.session = &SessionState{
		ID:              m.newID(),
		User:            user,
		Settings:        &settings,
		Questions:       qs,
		AnswerLog:       make(map[int]AnsweredRecord),
		TimeLeftSeconds: settings.SecondsPerQuestion,
		StartedAt:       m.clock.Now().UTC(),
	}
	m.result = nil
	m.phase = PhaseInProgress
	m.persistLocked(ctx)
	m.store.Set(ctx, storage.KeyLastSettings, settings)
	m.enterQuestionLocked()
	m.metrics.SessionStarted()

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("user", user).
		Int("questions", len(qs)).
		Int("seconds_per_question", settings.SecondsPerQuestion).
		Float64("negative", settings.NegativeMarkingValue).
		Msg("quiz started")
	return m.viewLocked(), nil
}

// Restore continues an unfinished snapshot. Missing settings fall back to the last used ones.
func (m *Machine) Restore(ctx context.Context, snap *SessionState) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseConfiguring {
		return View{}, ErrStartInProgress
	}
	if snap == nil || snap.Finished || len(snap.Questions) == 0 || snap.Index < 0 || snap.Index >= len(snap.Questions) {
		return View{}, ErrNothingToResume
	}
	if snap.Settings == nil {
		var last Settings
		m.store.Load(ctx, storage.KeyLastSettings, &last)
		snap.Settings = &last
	}
	normalized := snap.Settings.Normalize(m.defaults)
	snap.Settings = &normalized
	if snap.AnswerLog == nil {
		snap.AnswerLog = make(map[int]AnsweredRecord)
	}

	m.stopTimerLocked()
	m.session = snap
	m.result = nil
	m.phase = PhaseInProgress
	m.enterQuestionLocked()
	m.persistLocked(ctx)
	m.metrics.SessionResumed()

	m.logger.Info().
		Str("session_id", snap.ID).
		Int("index", snap.Index).
		Int("answered", len(snap.AnswerLog)).
		Msg("quiz resumed")
	return m.viewLocked(), nil
}

// Answer records selected for the current question. Answering an already answered question
// is a no-op.
func (m *Machine) Answer(ctx context.Context, selected string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseInProgress {
		return View{}, ErrNoActiveSession
	}
	s := m.session
	if _, done := s.answered(s.Index); done {
		return m.viewLocked(), nil
	}
	q := s.current()
	if !q.HasOption(selected) {
		return View{}, ErrUnknownOption
	}
	m.stopTimerLocked()

	out := m.engine.Evaluate(selected == q.CorrectAnswer, false, s.Settings.NegativeMarkingValue, s.Settings.SecondsPerQuestion, s.TimeLeftSeconds)
	rec := m.recordLocked(ctx, selected, out)

	outcome := "wrong"
	if out.IsCorrect {
		outcome = "correct"
	}
	m.metrics.AnswerRecorded(outcome)
	m.publisher.Publish(Event{
		Type:            EventAnswerRecorded,
		SessionID:       s.ID,
		Index:           s.Index,
		TimeLeftSeconds: s.TimeLeftSeconds,
		Score:           scoring.FormatScore(s.Score),
		Record:          &rec,
	})
	return m.viewLocked(), nil
}

// Advance moves past an answered question, finishing the run after the last one.
func (m *Machine) Advance(ctx context.Context) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseInProgress {
		return View{}, ErrNoActiveSession
	}
	s := m.session
	if _, done := s.answered(s.Index); !done {
		return View{}, ErrNotAnswered
	}
	if s.isLast() {
		m.finishLocked(ctx)
		return m.viewLocked(), nil
	}
	s.Index++
	m.enterQuestionLocked()
	m.persistLocked(ctx)
	return m.viewLocked(), nil
}

// Retreat shows the previous question. History is not modified.
func (m *Machine) Retreat(ctx context.Context) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseInProgress {
		return View{}, ErrNoActiveSession
	}
	s := m.session
	if s.Index > 0 {
		s.Index--
		m.enterQuestionLocked()
		m.persistLocked(ctx)
	}
	return m.viewLocked(), nil
}

// Quit stops the countdown and leaves the run resumable.
func (m *Machine) Quit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseInProgress {
		return ErrNoActiveSession
	}
	id := m.session.ID
	m.suspendLocked(ctx)
	m.phase = PhaseIdle
	m.metrics.SessionQuit()
	m.logger.Info().Str("session_id", id).Msg("quiz quit")
	return nil
}

// Close persists an in-progress run and stops its countdown.
func (m *Machine) Close(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseInProgress {
		m.suspendLocked(ctx)
		m.phase = PhaseIdle
	}
	m.stopTimerLocked()
}

// Current returns the view of the current question.
func (m *Machine) Current() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || (m.phase != PhaseInProgress && m.phase != PhaseFinished) {
		return View{}, ErrNoActiveSession
	}
	return m.viewLocked(), nil
}

// Result returns the summary of the last finished run.
func (m *Machine) Result() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return Result{}, ErrNoResult
	}
	return *m.result, nil
}

func (m *Machine) userLocked(ctx context.Context) (string, bool) {
	user, ok := m.store.LoadString(ctx, storage.KeyUser)
	if !ok {
		return "", false
	}
	user = strings.TrimSpace(user)
	return user, user != ""
}

func (m *Machine) persistLocked(ctx context.Context) {
	m.store.Set(ctx, storage.KeySessionState, m.session)
}

// suspendLocked saves the running session and detaches it from the machine.
func (m *Machine) suspendLocked(ctx context.Context) {
	m.stopTimerLocked()
	if m.session != nil {
		m.persistLocked(ctx)
	}
	m.session = nil
}

// enterQuestionLocked resets the countdown for the current index. Answered questions are
// shown read-only and get no countdown.
func (m *Machine) enterQuestionLocked() {
	m.stopTimerLocked()
	s := m.session
	s.TimeLeftSeconds = s.Settings.SecondsPerQuestion
	if _, done := s.answered(s.Index); done {
		return
	}
	m.startTimerLocked()
}

func (m *Machine) startTimerLocked() {
	m.gen++
	gen := m.gen
	t := m.clock.NewTicker(time.Second)
	done := make(chan struct{})
	m.stopTick = func() {
		t.Stop()
		close(done)
	}
	go m.countdown(gen, t, done)
}

// stopTimerLocked cancels the active countdown; any tick already in flight is dropped by
// the generation check.
func (m *Machine) stopTimerLocked() {
	if m.stopTick != nil {
		m.stopTick()
		m.stopTick = nil
	}
	m.gen++
}

func (m *Machine) countdown(gen uint64, t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			if !m.tick(gen) {
				return
			}
		}
	}
}

func (m *Machine) tick(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.phase != PhaseInProgress || m.session == nil {
		return false
	}
	s := m.session
	if _, done := s.answered(s.Index); done {
		return false
	}
	s.TimeLeftSeconds--
	m.publisher.Publish(Event{
		Type:            EventQuestionTick,
		SessionID:       s.ID,
		Index:           s.Index,
		TimeLeftSeconds: s.TimeLeftSeconds,
	})
	if s.TimeLeftSeconds > 0 {
		return true
	}

	m.stopTimerLocked()
	m.timeoutLocked(context.Background())
	return false
}

func (m *Machine) timeoutLocked(ctx context.Context) {
	s := m.session
	s.TimeLeftSeconds = 0
	out := m.engine.Evaluate(false, true, s.Settings.NegativeMarkingValue, s.Settings.SecondsPerQuestion, 0)
	rec := m.recordLocked(ctx, TimedOutAnswer, out)

	m.metrics.AnswerRecorded("timeout")
	m.publisher.Publish(Event{
		Type:      EventQuestionTimeout,
		SessionID: s.ID,
		Index:     s.Index,
		Score:     scoring.FormatScore(s.Score),
		Record:    &rec,
	})
	m.logger.Debug().Str("session_id", s.ID).Int("index", s.Index).Msg("question timed out")
}

// recordLocked writes the log entry for the current index, applies its score and persists.
func (m *Machine) recordLocked(ctx context.Context, selected string, out scoring.Outcome) AnsweredRecord {
	s := m.session
	q := s.current()
	rec := AnsweredRecord{
		QuestionText:     q.Text,
		ShownOptions:     displayOptions(q, nil),
		CorrectAnswer:    q.CorrectAnswer,
		SelectedAnswer:   selected,
		IsCorrect:        out.IsCorrect,
		TimeTakenSeconds: out.TimeTaken,
		Category:         q.Category,
	}
	s.AnswerLog[s.Index] = rec
	s.Apply(out)
	m.persistLocked(ctx)
	return rec
}

func (m *Machine) finishLocked(ctx context.Context) {
	m.stopTimerLocked()
	s := m.session
	now := m.clock.Now().UTC()
	total := len(s.Questions)

	res := &Result{
		SessionID:      s.ID,
		User:           s.User,
		Score:          scoring.RoundScore(s.Score),
		ScoreDisplay:   scoring.FormatScore(s.Score),
		CorrectCount:   s.Correct,
		WrongCount:     s.Wrong,
		Total:          total,
		Percentage:     scoring.Percentage(s.Correct, total),
		ElapsedSeconds: scoring.ElapsedSeconds(s.StartedAt, now),
		Category:       mixedLabel,
		Difficulty:     mixedLabel,
		CompletedAt:    now,
		Review:         review(s.AnswerLog),
	}
	if s.Settings.Category != "" {
		res.Category = question.CategoryName(s.Settings.Category)
	}
	if s.Settings.Difficulty != "" {
		res.Difficulty = s.Settings.Difficulty
	}

	res.Rank = m.board.Submit(ctx, leaderboard.Entry{
		User:             res.User,
		Score:            res.Score,
		CorrectCount:     res.CorrectCount,
		WrongCount:       res.WrongCount,
		Total:            res.Total,
		Percentage:       res.Percentage,
		TimeTakenSeconds: res.ElapsedSeconds,
		CompletedAt:      now,
		Category:         res.Category,
		Difficulty:       res.Difficulty,
	})
	m.store.Remove(ctx, storage.KeySessionState)
	s.Finished = true
	m.result = res
	m.phase = PhaseFinished
	m.metrics.SessionFinished()

	m.publisher.Publish(Event{
		Type:      EventSessionFinished,
		SessionID: s.ID,
		Index:     s.Index,
		Score:     res.ScoreDisplay,
		Result:    res,
	})
	m.logger.Info().
		Str("session_id", s.ID).
		Str("score", res.ScoreDisplay).
		Int("correct", res.CorrectCount).
		Int("total", total).
		Int("rank", res.Rank).
		Msg("quiz finished")
}

func review(log map[int]AnsweredRecord) []ReviewItem {
	items := make([]ReviewItem, 0, len(log))
	for i, rec := range log {
		items = append(items, ReviewItem{Index: i, AnsweredRecord: rec})
	}
	sort.Slice(items, func(a, b int) bool { return items[a].Index < items[b].Index })
	return items
}

func (m *Machine) viewLocked() View {
	s := m.session
	q := s.current()
	rec, answered := s.answered(s.Index)
	var recPtr *AnsweredRecord
	if answered {
		recPtr = &rec
	}
	total := len(s.Questions)

	return View{
		SessionID:       s.ID,
		Phase:           m.phase,
		Index:           s.Index,
		Total:           total,
		Counter:         fmt.Sprintf("Question %d of %d", s.Index+1, total),
		ProgressPercent: scoring.Percentage(s.Index+1, total),
		Question:        q.Text,
		Category:        orDefault(q.Category, defaultCategoryLabel),
		Difficulty:      orDefault(q.Difficulty, defaultDifficulty),
		Options:         OptionStates(q, recPtr),
		Answered:        answered,
		TimeLeftSeconds: s.TimeLeftSeconds,
		Score:           scoring.FormatScore(s.Score),
		CanGoBack:       s.Index > 0,
		NextEnabled:     answered,
		NextLabel:       nextLabel(answered, s.isLast()),
	}
}

// OptionStates derives the answer buttons for q. Without a record every option is enabled;
// with one every option is disabled, the selection is marked correct or wrong and, after a
// wrong answer or timeout, the true answer is marked correct.
func OptionStates(q question.Question, rec *AnsweredRecord) []OptionView {
	opts := displayOptions(q, rec)
	out := make([]OptionView, len(opts))
	for i, opt := range opts {
		ov := OptionView{Text: opt}
		if rec != nil {
			ov.Disabled = true
			switch {
			case opt == rec.SelectedAnswer && rec.IsCorrect:
				ov.State = OptionCorrect
			case opt == rec.SelectedAnswer:
				ov.State = OptionWrong
			case opt == rec.CorrectAnswer && !rec.IsCorrect:
				ov.State = OptionCorrect
			}
		}
		out[i] = ov
	}
	return out
}

func displayOptions(q question.Question, rec *AnsweredRecord) []string {
	if rec != nil && len(rec.ShownOptions) > 0 {
		return rec.ShownOptions
	}
	if len(q.Options) > 0 {
		return q.Options
	}
	return append([]string{q.CorrectAnswer}, q.IncorrectAnswers...)
}

func nextLabel(answered, last bool) string {
	switch {
	case !answered:
		return "Select Answer"
	case last:
		return "Finish Quiz"
	default:
		return "Next Question"
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
