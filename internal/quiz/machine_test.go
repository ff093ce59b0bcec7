package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/smart-quiz/internal/leaderboard"
	"github.com/gokatarajesh/smart-quiz/internal/question"
	"github.com/gokatarajesh/smart-quiz/internal/storage"
)

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) latest() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type recordingPublisher struct {
	events chan Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan Event, 128)}
}

func (p *recordingPublisher) Publish(evt Event) { p.events <- evt }

// next waits for the next event of the given type, skipping others.
func (p *recordingPublisher) next(t *testing.T, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-p.events:
			if evt.Type == typ {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
			return Event{}
		}
	}
}

type stubSource struct {
	mu      sync.Mutex
	qs      []question.Question
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (s *stubSource) Resolve(_ context.Context, f question.Filters) ([]question.Question, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.qs[:min(f.Count, len(s.qs))], nil
}

type fixture struct {
	machine *Machine
	store   *storage.Store
	board   *leaderboard.Service
	clock   *fakeClock
	events  *recordingPublisher
	source  *stubSource
}

func makeQuestions(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			Text:             fmt.Sprintf("Question %d?", i+1),
			CorrectAnswer:    "right",
			IncorrectAnswers: []string{"wrong-a", "wrong-b", "wrong-c"},
			Options:          []string{"wrong-a", "right", "wrong-b", "wrong-c"},
			Category:         "History",
			Difficulty:       question.DifficultyEasy,
			Source:           question.SourceOpenTDB,
		}
	}
	return qs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.New(ctx, storage.NewMemoryBackend(), zerolog.Nop(), storage.Options{KeyPrefix: "quiz."})
	store.Set(ctx, storage.KeyUser, "alice")

	f := &fixture{
		store:  store,
		board:  leaderboard.NewService(store, zerolog.Nop(), leaderboard.ServiceOptions{}),
		clock:  newFakeClock(),
		events: newRecordingPublisher(),
		source: &stubSource{qs: makeQuestions(10)},
	}
	f.machine = NewMachine(store, f.source, f.board, zerolog.Nop(), Options{
		Clock:     f.clock,
		Publisher: f.events,
		Defaults:  Defaults{QuestionCount: 10, SecondsPerQuestion: 15},
	})
	t.Cleanup(func() { f.machine.Close(context.Background()) })
	return f
}

func (f *fixture) start(t *testing.T, s Settings) View {
	t.Helper()
	view, err := f.machine.StartWith(context.Background(), s)
	require.NoError(t, err)
	return view
}

func (f *fixture) snapshot(t *testing.T) (*SessionState, bool) {
	t.Helper()
	var snap SessionState
	if !f.store.Load(context.Background(), storage.KeySessionState, &snap) {
		return nil, false
	}
	return &snap, true
}

// expire ticks the current countdown to zero.
func (f *fixture) expire(t *testing.T, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		f.clock.latest().ch <- f.clock.Now()
		f.events.next(t, EventQuestionTick)
	}
	f.events.next(t, EventQuestionTimeout)
}

func TestStartThenCorrectAnswerScoresOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.start(t, Settings{QuestionCount: 3, SecondsPerQuestion: 15})
	assert.Equal(t, PhaseInProgress, view.Phase)
	assert.Equal(t, "Question 1 of 3", view.Counter)
	assert.Equal(t, 33, view.ProgressPercent)
	assert.Equal(t, 15, view.TimeLeftSeconds)
	assert.False(t, view.NextEnabled)
	assert.Equal(t, "Select Answer", view.NextLabel)
	assert.False(t, view.CanGoBack)

	view, err := f.machine.Answer(ctx, "right")
	require.NoError(t, err)
	assert.Equal(t, "1", view.Score)
	assert.True(t, view.Answered)
	assert.Equal(t, "Next Question", view.NextLabel)

	snap, ok := f.snapshot(t)
	require.True(t, ok)
	assert.Equal(t, "1", snap.Score.String())
	assert.Equal(t, 1, snap.Correct)
	assert.True(t, snap.AnswerLog[0].IsCorrect)
	assert.Equal(t, "right", snap.AnswerLog[0].SelectedAnswer)
}

func TestIncorrectAnswerAppliesNegativeMarking(t *testing.T) {
	f := newFixture(t)
	f.start(t, Settings{QuestionCount: 2, SecondsPerQuestion: 15, NegativeMarkingValue: -0.25})

	view, err := f.machine.Answer(context.Background(), "wrong-b")
	require.NoError(t, err)
	assert.Equal(t, "-0.3", view.Score)

	snap, _ := f.snapshot(t)
	assert.Equal(t, "-0.25", snap.Score.String())
	assert.Equal(t, 1, snap.Wrong)

	raw, ok := f.store.Get(context.Background(), storage.KeySessionState)
	require.True(t, ok)
	assert.Contains(t, string(raw.Raw()), `"score":-0.25`)

	rec := f.events.next(t, EventAnswerRecorded).Record
	require.NotNil(t, rec)
	assert.False(t, rec.IsCorrect)
	assert.Equal(t, "right", rec.CorrectAnswer)
}

func TestAnswerTwiceIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t, Settings{QuestionCount: 2, NegativeMarkingValue: -1})

	_, err := f.machine.Answer(ctx, "right")
	require.NoError(t, err)
	view, err := f.machine.Answer(ctx, "wrong-a")
	require.NoError(t, err)

	assert.Equal(t, "1", view.Score)
	snap, _ := f.snapshot(t)
	assert.Equal(t, 1, snap.Correct)
	assert.Zero(t, snap.Wrong)
	assert.Equal(t, "right", snap.AnswerLog[0].SelectedAnswer)
}

func TestAnswerRejectsUnknownOption(t *testing.T) {
	f := newFixture(t)
	f.start(t, Settings{QuestionCount: 1})

	_, err := f.machine.Answer(context.Background(), "not an option")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestAdvanceRequiresAnswer(t *testing.T) {
	f := newFixture(t)
	f.start(t, Settings{QuestionCount: 2})

	_, err := f.machine.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNotAnswered)
}

func TestRetreatShowsAnsweredQuestionReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t, Settings{QuestionCount: 3})

	_, err := f.machine.Answer(ctx, "wrong-a")
	require.NoError(t, err)
	view, err := f.machine.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Index)
	assert.True(t, view.CanGoBack)
	tickers := f.clock.tickerCount()

	view, err = f.machine.Retreat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)
	assert.True(t, view.Answered)
	assert.Equal(t, tickers, f.clock.tickerCount(), "answered questions get no countdown")
	assert.True(t, f.clock.latest().isStopped())

	states := map[string]string{}
	for _, o := range view.Options {
		assert.True(t, o.Disabled)
		states[o.Text] = o.State
	}
	assert.Equal(t, OptionWrong, states["wrong-a"])
	assert.Equal(t, OptionCorrect, states["right"])
	assert.Empty(t, states["wrong-b"])

	// Retreating at the first question does nothing.
	view, err = f.machine.Retreat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Index)

	snap, _ := f.snapshot(t)
	assert.Len(t, snap.AnswerLog, 1)
}

func TestTimeoutRecordsWrongAnswerOnce(t *testing.T) {
	f := newFixture(t)
	f.start(t, Settings{QuestionCount: 2, SecondsPerQuestion: 5, NegativeMarkingValue: -0.5})
	ticker := f.clock.latest()

	f.expire(t, 5)

	view, err := f.machine.Current()
	require.NoError(t, err)
	assert.True(t, view.Answered)
	assert.Zero(t, view.TimeLeftSeconds)
	assert.Equal(t, "-0.5", view.Score)
	assert.True(t, ticker.isStopped())

	snap, _ := f.snapshot(t)
	rec := snap.AnswerLog[0]
	assert.Equal(t, TimedOutAnswer, rec.SelectedAnswer)
	assert.True(t, rec.TimedOut())
	assert.Equal(t, 5, rec.TimeTakenSeconds)
	assert.Equal(t, 1, snap.Wrong)

	for _, o := range view.Options {
		if o.Text == "right" {
			assert.Equal(t, OptionCorrect, o.State)
		} else {
			assert.Empty(t, o.State)
		}
	}
}

func TestStaleTickIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t, Settings{QuestionCount: 2})

	f.machine.mu.Lock()
	staleGen := f.machine.gen
	f.machine.mu.Unlock()

	_, err := f.machine.Answer(ctx, "right")
	require.NoError(t, err)
	_, err = f.machine.Advance(ctx)
	require.NoError(t, err)

	assert.False(t, f.machine.tick(staleGen))
	view, err := f.machine.Current()
	require.NoError(t, err)
	assert.Equal(t, 15, view.TimeLeftSeconds)
}

func TestQuitThenResumeRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t, Settings{QuestionCount: 4, NegativeMarkingValue: -0.25})

	_, err := f.machine.Answer(ctx, "right")
	require.NoError(t, err)
	_, err = f.machine.Advance(ctx)
	require.NoError(t, err)
	_, err = f.machine.Answer(ctx, "wrong-c")
	require.NoError(t, err)

	require.NoError(t, f.machine.Quit(ctx))
	assert.Equal(t, PhaseIdle, f.machine.Phase())
	assert.True(t, f.clock.latest().isStopped())
	_, err = f.machine.Current()
	assert.ErrorIs(t, err, ErrNoActiveSession)

	snap, ok := f.snapshot(t)
	require.True(t, ok)
	assert.False(t, snap.Finished)

	view, err := f.machine.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Index)
	assert.Equal(t, "0.8", view.Score)
	assert.True(t, view.Answered)

	restored, _ := f.snapshot(t)
	assert.Equal(t, snap.ID, restored.ID)
	assert.Equal(t, "0.75", restored.Score.String())
	assert.Equal(t, snap.AnswerLog, restored.AnswerLog)
	assert.Equal(t, snap.Questions, restored.Questions)
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		snap *SessionState
	}{
		{"nil", nil},
		{"finished", &SessionState{Questions: makeQuestions(1), Finished: true}},
		{"no questions", &SessionState{}},
		{"index out of range", &SessionState{Questions: makeQuestions(1), Index: 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.machine.Restore(ctx, tc.snap)
			assert.ErrorIs(t, err, ErrNothingToResume)
		})
	}
}

func TestRestoreFallsBackToLastSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Set(ctx, storage.KeyLastSettings, Settings{QuestionCount: 2, SecondsPerQuestion: 30, NegativeMarkingValue: -1})

	view, err := f.machine.Restore(ctx, &SessionState{ID: "old", User: "alice", Questions: makeQuestions(2)})
	require.NoError(t, err)
	assert.Equal(t, 30, view.TimeLeftSeconds)

	_, err = f.machine.Answer(ctx, "wrong-a")
	require.NoError(t, err)
	snap, _ := f.snapshot(t)
	assert.Equal(t, "-1", snap.Score.String())
}

func TestStartWithoutQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.machine.Start(ctx, Settings{}, nil)
	assert.ErrorIs(t, err, ErrNoQuestionsAvailable)

	f.source.qs = nil
	_, err = f.machine.StartWith(ctx, Settings{QuestionCount: 5})
	assert.ErrorIs(t, err, ErrNoQuestionsAvailable)
	assert.Equal(t, PhaseIdle, f.machine.Phase())

	_, ok := f.snapshot(t)
	assert.False(t, ok)
}

func TestStartPropagatesSourceErrors(t *testing.T) {
	f := newFixture(t)
	f.source.err = question.ErrNoResults

	_, err := f.machine.StartWith(context.Background(), Settings{Category: "9"})
	assert.ErrorIs(t, err, question.ErrNoResults)
	assert.Equal(t, PhaseIdle, f.machine.Phase())
}

func TestStartToleratesFewerQuestions(t *testing.T) {
	f := newFixture(t)
	view := f.start(t, Settings{QuestionCount: 50})
	assert.Equal(t, 10, view.Total)
}

func TestStartRequiresUser(t *testing.T) {
	f := newFixture(t)
	f.store.Remove(context.Background(), storage.KeyUser)

	_, err := f.machine.StartWith(context.Background(), Settings{})
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestStartAcceptsRawStoredUser(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, "quiz.user", []byte("alice")))
	store := storage.New(ctx, backend, zerolog.Nop(), storage.Options{KeyPrefix: "quiz."})

	m := NewMachine(store, &stubSource{qs: makeQuestions(3)},
		leaderboard.NewService(store, zerolog.Nop(), leaderboard.ServiceOptions{}),
		zerolog.Nop(), Options{Clock: newFakeClock(), Publisher: newRecordingPublisher(), Defaults: Defaults{QuestionCount: 10, SecondsPerQuestion: 15}})
	t.Cleanup(func() { m.Close(context.Background()) })

	_, err := m.StartWith(ctx, Settings{QuestionCount: 3})
	require.NoError(t, err)

	var snap SessionState
	require.True(t, store.Load(ctx, storage.KeySessionState, &snap))
	assert.Equal(t, "alice", snap.User)
}

func TestConcurrentStartIsRejected(t *testing.T) {
	f := newFixture(t)
	f.source.block = make(chan struct{})
	f.source.entered = make(chan struct{}, 1)

	errs := make(chan error, 1)
	go func() {
		_, err := f.machine.StartWith(context.Background(), Settings{QuestionCount: 2})
		errs <- err
	}()
	<-f.source.entered
	assert.Equal(t, PhaseConfiguring, f.machine.Phase())

	_, err := f.machine.StartWith(context.Background(), Settings{QuestionCount: 2})
	assert.ErrorIs(t, err, ErrStartInProgress)

	close(f.source.block)
	require.NoError(t, <-errs)
	assert.Equal(t, PhaseInProgress, f.machine.Phase())
}

func TestStartPersistsLastSettingsNormalized(t *testing.T) {
	f := newFixture(t)
	f.start(t, Settings{QuestionCount: 0, SecondsPerQuestion: 2, NegativeMarkingValue: 0.5})

	var last Settings
	require.True(t, f.store.Load(context.Background(), storage.KeyLastSettings, &last))
	assert.Equal(t, Settings{QuestionCount: 10, SecondsPerQuestion: 5, NegativeMarkingValue: -0.5}, last)
}

func TestScenarioFinishesWithLeaderboardEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t, Settings{QuestionCount: 5, SecondsPerQuestion: 15, NegativeMarkingValue: -0.25})

	answerAndAdvance := func(selected string) {
		t.Helper()
		_, err := f.machine.Answer(ctx, selected)
		require.NoError(t, err)
		_, err = f.machine.Advance(ctx)
		require.NoError(t, err)
	}

	answerAndAdvance("right")
	answerAndAdvance("wrong-a")

	f.clock.Advance(7 * time.Second)
	f.expire(t, 15)
	_, err := f.machine.Advance(ctx)
	require.NoError(t, err)

	answerAndAdvance("right")
	_, err = f.machine.Answer(ctx, "right")
	require.NoError(t, err)

	view, err := f.machine.Current()
	require.NoError(t, err)
	assert.Equal(t, "Finish Quiz", view.NextLabel)

	f.clock.Advance(53500 * time.Millisecond)
	view, err = f.machine.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, view.Phase)

	res, err := f.machine.Result()
	require.NoError(t, err)
	assert.Equal(t, 2.5, res.Score)
	assert.Equal(t, "2.5", res.ScoreDisplay)
	assert.Equal(t, 3, res.CorrectCount)
	assert.Equal(t, 2, res.WrongCount)
	assert.Equal(t, 60, res.Percentage)
	assert.Equal(t, 61, res.ElapsedSeconds)
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, "Mixed", res.Category)
	require.Len(t, res.Review, 5)
	assert.Equal(t, TimedOutAnswer, res.Review[2].SelectedAnswer)

	board := f.board.List(ctx)
	require.Len(t, board, 1)
	assert.Equal(t, leaderboard.Entry{
		User:             "alice",
		Score:            2.5,
		CorrectCount:     3,
		WrongCount:       2,
		Total:            5,
		Percentage:       60,
		TimeTakenSeconds: 61,
		CompletedAt:      f.clock.Now(),
		Category:         "Mixed",
		Difficulty:       "Mixed",
	}, board[0])

	_, ok := f.snapshot(t)
	assert.False(t, ok, "snapshot removed once finished")

	finished := f.events.next(t, EventSessionFinished)
	require.NotNil(t, finished.Result)
	assert.Equal(t, 1, finished.Result.Rank)

	_, err = f.machine.Answer(ctx, "right")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestResultBeforeFinish(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.Result()
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestOptionStatesUnanswered(t *testing.T) {
	q := makeQuestions(1)[0]
	opts := OptionStates(q, nil)
	require.Len(t, opts, 4)
	for i, o := range opts {
		assert.Equal(t, q.Options[i], o.Text)
		assert.False(t, o.Disabled)
		assert.Empty(t, o.State)
	}
}

func TestOptionStatesCorrectAnswer(t *testing.T) {
	q := makeQuestions(1)[0]
	rec := &AnsweredRecord{ShownOptions: q.Options, CorrectAnswer: "right", SelectedAnswer: "right", IsCorrect: true}
	for _, o := range OptionStates(q, rec) {
		assert.True(t, o.Disabled)
		if o.Text == "right" {
			assert.Equal(t, OptionCorrect, o.State)
		} else {
			assert.Empty(t, o.State)
		}
	}
}

func TestSettingsNormalize(t *testing.T) {
	d := Defaults{QuestionCount: 10, SecondsPerQuestion: 15}
	assert.Equal(t, Settings{QuestionCount: 10, SecondsPerQuestion: 15}, Settings{}.Normalize(d))
	assert.Equal(t, Settings{QuestionCount: 3, SecondsPerQuestion: 5, NegativeMarkingValue: -0.25},
		Settings{QuestionCount: 3, SecondsPerQuestion: 1, NegativeMarkingValue: 0.25}.Normalize(d))
	assert.Equal(t, 10, Settings{}.Normalize(Defaults{}).QuestionCount)
	assert.Equal(t, 5, Settings{}.Normalize(Defaults{}).SecondsPerQuestion)
}
