package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz/internal/loop/looptest"
	"trivia-quiz/internal/opentdb"
	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/storage"
)

// keepOrder leaves options as built: incorrect answers first, correct last.
type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

type fakeSource struct {
	calls   int
	params  []opentdb.Params
	respond func(call int) ([]opentdb.RawQuestion, error)
}

func (f *fakeSource) FetchQuestions(_ context.Context, params opentdb.Params) ([]opentdb.RawQuestion, error) {
	call := f.calls
	f.calls++
	f.params = append(f.params, params)
	return f.respond(call)
}

type fakeRenderer struct {
	presented []Presentation
	finished  []quiz.Score
	errs      []error
	ticks     []time.Duration
}

func (r *fakeRenderer) QuestionPresented(p Presentation) {
	r.presented = append(r.presented, p)
}

func (r *fakeRenderer) QuizFinished(score quiz.Score) {
	r.finished = append(r.finished, score)
}

func (r *fakeRenderer) Error(err error) {
	r.errs = append(r.errs, err)
}

func (r *fakeRenderer) TimeLeft(remaining time.Duration) {
	r.ticks = append(r.ticks, remaining)
}

func (r *fakeRenderer) lastPresented(t *testing.T) Presentation {
	t.Helper()
	if len(r.presented) == 0 {
		t.Fatalf("nothing presented")
	}
	return r.presented[len(r.presented)-1]
}

type fakeRecorder struct {
	results []quiz.Result
}

func (f *fakeRecorder) RecordResult(ctx context.Context, result quiz.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.results = append(f.results, result)
	return nil
}

type harness struct {
	clock    *looptest.Manual
	source   *fakeSource
	renderer *fakeRenderer
	recorder *fakeRecorder
	kv       *storage.MemoryKV
	ctrl     *Controller
	policy   Policy
}

func rawQuestion(text, correct string, incorrect ...string) opentdb.RawQuestion {
	return opentdb.RawQuestion{
		Question:         text,
		CorrectAnswer:    correct,
		IncorrectAnswers: incorrect,
	}
}

func twoQuestions() []opentdb.RawQuestion {
	return []opentdb.RawQuestion{
		rawQuestion("Capital of France?", "Paris", "Rome", "Madrid", "Berlin"),
		rawQuestion("2+2?", "4", "3", "5", "22"),
	}
}

func staticBatch(batch []opentdb.RawQuestion) func(int) ([]opentdb.RawQuestion, error) {
	return func(int) ([]opentdb.RawQuestion, error) {
		return batch, nil
	}
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newHarness(t *testing.T, kv *storage.MemoryKV, policy Policy, respond func(int) ([]opentdb.RawQuestion, error)) *harness {
	t.Helper()

	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	h := &harness{
		clock:    looptest.NewManual(),
		source:   &fakeSource{respond: respond},
		renderer: &fakeRenderer{},
		recorder: &fakeRecorder{},
		kv:       kv,
		policy:   policy.withDefaults(),
	}

	ids := 0
	ctrl, err := NewController(Options{
		Executor: h.clock,
		Source:   h.source,
		Store:    kv,
		Renderer: h.renderer,
		Recorder: h.recorder,
		Logger:   quietLogger(),
		Shuffler: keepOrder{},
		Policy:   policy,
		NewSessionID: func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		},
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	h.ctrl = ctrl
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.ctrl.Initialize(context.Background())
	h.clock.Drain()
	if h.ctrl.Phase() != PhasePresenting {
		t.Fatalf("phase after start = %s, want presenting", h.ctrl.Phase())
	}
}

func (h *harness) prefs() *storage.Prefs {
	return storage.NewPrefs(h.kv)
}

func assertCounters(t *testing.T, state quiz.State, correct, answered int) {
	t.Helper()
	if state.CorrectAnswers != correct || state.QuestionsAnswered != answered {
		t.Fatalf("counters = (correct=%d, answered=%d), want (%d, %d)",
			state.CorrectAnswers, state.QuestionsAnswered, correct, answered)
	}
}

func TestTwoQuestionSessionScoresAndFinishes(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	first := h.renderer.lastPresented(t)
	if first.Text != "Capital of France?" || first.Index != 0 || first.Total != 2 {
		t.Fatalf("unexpected first presentation: %+v", first)
	}
	if len(first.Options) != 4 || first.Options[3] != "Paris" {
		t.Fatalf("unexpected options: %v", first.Options)
	}

	if err := h.ctrl.SubmitAnswer(3); err != nil {
		t.Fatalf("SubmitAnswer(correct) failed: %v", err)
	}
	assertCounters(t, h.ctrl.Snapshot(), 1, 1)
	h.ctrl.AdvanceToNext(ctx)

	second := h.renderer.lastPresented(t)
	if second.Text != "2+2?" || second.Index != 1 || second.Progress() != 50 {
		t.Fatalf("unexpected second presentation: %+v", second)
	}

	if err := h.ctrl.SubmitAnswer(0); err != nil {
		t.Fatalf("SubmitAnswer(incorrect) failed: %v", err)
	}
	assertCounters(t, h.ctrl.Snapshot(), 1, 2)
	h.ctrl.AdvanceToNext(ctx)

	if len(h.renderer.finished) != 1 {
		t.Fatalf("expected one QuizFinished, got %d", len(h.renderer.finished))
	}
	score := h.renderer.finished[0]
	if score.Correct != 1 || score.Total != 2 || score.Reason != quiz.FinishExhausted || score.SessionID != "session-1" {
		t.Fatalf("unexpected score: %+v", score)
	}
	if h.ctrl.Phase() != PhaseTerminal {
		t.Fatalf("phase = %s, want terminal", h.ctrl.Phase())
	}
	if h.clock.PendingTimers() != 0 {
		t.Fatalf("countdown still scheduled after finish")
	}

	state := h.ctrl.Snapshot()
	if !state.QuizCompleted || len(state.Questions) != 0 || state.RemainingTime != h.policy.TotalTime {
		t.Fatalf("terminal state not reset to defaults: %+v", state)
	}
	assertCounters(t, state, 0, 0)

	completed, _ := h.prefs().Bool(ctx, KeyCompleted, false)
	if !completed {
		t.Fatalf("quizCompleted not persisted")
	}
	if _, ok, _ := h.kv.Get(ctx, KeyQuestions); ok {
		t.Fatalf("currentQuestions should be removed after finish")
	}

	if len(h.recorder.results) != 1 || h.recorder.results[0].Score != score {
		t.Fatalf("recorder got %+v", h.recorder.results)
	}
}

func TestTimerExpiryFinishesOnceAndRejectsAnswers(t *testing.T) {
	h := newHarness(t, nil, Policy{TotalTime: 5 * time.Second}, staticBatch(twoQuestions()))
	h.start(t)

	if err := h.ctrl.SubmitAnswer(3); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	h.ctrl.AdvanceToNext(context.Background())

	h.clock.Advance(5 * time.Second)

	want := []time.Duration{4 * time.Second, 3 * time.Second, 2 * time.Second, time.Second, 0}
	if !reflect.DeepEqual(h.renderer.ticks, want) {
		t.Fatalf("ticks = %v, want %v", h.renderer.ticks, want)
	}
	if len(h.renderer.finished) != 1 {
		t.Fatalf("expected exactly one finish, got %d", len(h.renderer.finished))
	}
	score := h.renderer.finished[0]
	if score.Correct != 1 || score.Total != 2 || score.Reason != quiz.FinishTimeout {
		t.Fatalf("unexpected timeout score: %+v", score)
	}

	before := h.ctrl.Snapshot()
	if err := h.ctrl.SubmitAnswer(0); !errors.Is(err, quiz.ErrIndexOutOfRange) {
		t.Fatalf("SubmitAnswer after timeout error = %v, want ErrIndexOutOfRange", err)
	}
	if !reflect.DeepEqual(before, h.ctrl.Snapshot()) {
		t.Fatalf("rejected submit mutated state")
	}

	h.clock.Advance(time.Minute)
	if len(h.renderer.finished) != 1 {
		t.Fatalf("finish fired again")
	}
}

func TestInitializeAfterCompletionFetchesFreshBatch(t *testing.T) {
	kv := storage.NewMemoryKV()
	stale := `[{"questionText":"Stale?","options":["a","b","c","d"],"correctAnswerIndex":0}]`
	if err := storage.NewPrefs(kv).Edit().
		PutBool(KeyCompleted, true).
		PutString(KeyQuestions, stale).
		PutInt(KeyAnswered, 0).
		Commit(context.Background()); err != nil {
		t.Fatalf("seeding store failed: %v", err)
	}

	h := newHarness(t, kv, Policy{}, staticBatch(twoQuestions()))
	h.start(t)

	if h.source.calls != 1 {
		t.Fatalf("source calls = %d, want 1", h.source.calls)
	}
	for _, p := range h.renderer.presented {
		if p.Text == "Stale?" {
			t.Fatalf("stale question was presented")
		}
	}
	if got := h.renderer.lastPresented(t).Text; got != "Capital of France?" {
		t.Fatalf("presented %q, want first question of new batch", got)
	}
	if h.ctrl.Snapshot().QuizCompleted {
		t.Fatalf("quizCompleted should be cleared by a new batch")
	}
}

func TestInitializeRequestsConfiguredParams(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)

	want := DefaultPolicy().Params
	if len(h.source.params) != 1 || h.source.params[0] != want {
		t.Fatalf("params = %+v, want %+v", h.source.params, want)
	}
}

func TestSuspendThenResumeRestoresIdenticalState(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.SubmitAnswer(3); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	h.ctrl.AdvanceToNext(ctx)
	h.clock.Advance(2 * time.Second)

	h.ctrl.Suspend(ctx)
	before := h.ctrl.Snapshot()
	if before.RemainingTime != h.policy.TotalTime-2*time.Second {
		t.Fatalf("remaining at suspend = %s", before.RemainingTime)
	}
	if h.clock.PendingTimers() != 0 {
		t.Fatalf("suspend left the countdown scheduled")
	}

	ticks := len(h.renderer.ticks)
	h.clock.Advance(time.Minute)
	if len(h.renderer.ticks) != ticks {
		t.Fatalf("tick fired after suspend")
	}

	h.ctrl.Resume(ctx)
	h.clock.Drain()

	after := h.ctrl.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("resume changed state:\nbefore %+v\nafter  %+v", before, after)
	}
	if h.source.calls != 1 {
		t.Fatalf("resume refetched: calls = %d", h.source.calls)
	}
	if got := h.renderer.lastPresented(t); got.Text != "2+2?" || got.Index != 1 {
		t.Fatalf("resume presented %+v", got)
	}
	if h.clock.PendingTimers() != 1 {
		t.Fatalf("resume should restart exactly one countdown, pending = %d", h.clock.PendingTimers())
	}
}

func TestSuspendedStateRestoresIntoNewController(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.SubmitAnswer(1); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	h.ctrl.AdvanceToNext(ctx)
	h.clock.Advance(3 * time.Second)
	h.ctrl.Suspend(ctx)
	before := h.ctrl.Snapshot()

	restarted := newHarness(t, h.kv, Policy{}, staticBatch(nil))
	restarted.start(t)

	if restarted.source.calls != 0 {
		t.Fatalf("restored session should not fetch")
	}
	if !reflect.DeepEqual(before, restarted.ctrl.Snapshot()) {
		t.Fatalf("restored state differs:\nbefore %+v\nafter  %+v", before, restarted.ctrl.Snapshot())
	}
	if restarted.ctrl.SessionID() != "session-1" {
		t.Fatalf("session id = %q, want session-1", restarted.ctrl.SessionID())
	}
}

func TestSuspendDiscardsInFlightFetch(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	ctx := context.Background()

	h.ctrl.Initialize(ctx)
	if h.ctrl.Phase() != PhaseFetching {
		t.Fatalf("phase = %s, want fetching", h.ctrl.Phase())
	}
	h.ctrl.Suspend(ctx)
	h.clock.Drain()

	if h.source.calls != 1 {
		t.Fatalf("source calls = %d, want 1", h.source.calls)
	}
	if len(h.renderer.presented) != 0 {
		t.Fatalf("stale fetch result was presented")
	}
	if h.ctrl.Phase() != PhaseEmpty {
		t.Fatalf("phase = %s, want empty", h.ctrl.Phase())
	}
	if h.clock.PendingTimers() != 0 {
		t.Fatalf("stale fetch started a countdown")
	}
	if len(h.ctrl.Snapshot().Questions) != 0 {
		t.Fatalf("stale fetch populated the state")
	}
}

func TestNewerFetchSupersedesOlder(t *testing.T) {
	batches := [][]opentdb.RawQuestion{
		{rawQuestion("Old?", "yes", "no", "maybe", "never")},
		{rawQuestion("New?", "yes", "no", "maybe", "never")},
	}
	h := newHarness(t, nil, Policy{}, func(call int) ([]opentdb.RawQuestion, error) {
		return batches[call], nil
	})
	ctx := context.Background()

	h.ctrl.FetchNewBatch(ctx)
	h.ctrl.FetchNewBatch(ctx)
	h.clock.Drain()

	if len(h.renderer.presented) != 1 || h.renderer.presented[0].Text != "New?" {
		t.Fatalf("presented %+v, want only the newer batch", h.renderer.presented)
	}
	if h.clock.PendingTimers() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clock.PendingTimers())
	}
}

func TestFetchFailureReportsSourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		respond func(int) ([]opentdb.RawQuestion, error)
	}{
		{
			name: "source error",
			respond: func(int) ([]opentdb.RawQuestion, error) {
				return nil, errors.New("connection refused")
			},
		},
		{
			name:    "empty batch",
			respond: staticBatch([]opentdb.RawQuestion{}),
		},
		{
			name: "too many options",
			respond: staticBatch([]opentdb.RawQuestion{
				rawQuestion("Q?", "a", "b", "c", "d", "e"),
			}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil, Policy{}, tc.respond)
			h.ctrl.Initialize(context.Background())
			h.clock.Drain()

			if len(h.renderer.errs) != 1 || !errors.Is(h.renderer.errs[0], quiz.ErrSourceUnavailable) {
				t.Fatalf("renderer errors = %v, want ErrSourceUnavailable", h.renderer.errs)
			}
			if h.ctrl.Phase() != PhaseEmpty {
				t.Fatalf("phase = %s, want empty", h.ctrl.Phase())
			}
			if h.clock.PendingTimers() != 0 {
				t.Fatalf("failed fetch started a countdown")
			}
			if len(h.renderer.presented) != 0 {
				t.Fatalf("failed fetch presented a question")
			}
			if !reflect.DeepEqual(h.ctrl.Snapshot(), quiz.NewState(h.policy.TotalTime)) {
				t.Fatalf("failed fetch changed state: %+v", h.ctrl.Snapshot())
			}
		})
	}
}

func TestFetchFailureKeepsResumableBatch(t *testing.T) {
	h := newHarness(t, nil, Policy{}, func(call int) ([]opentdb.RawQuestion, error) {
		if call == 0 {
			return twoQuestions(), nil
		}
		return nil, errors.New("timeout")
	})
	h.start(t)
	ctx := context.Background()

	if err := h.ctrl.SubmitAnswer(3); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	before := h.ctrl.Snapshot()

	h.ctrl.FetchNewBatch(ctx)
	h.clock.Drain()

	if h.ctrl.Phase() != PhasePresenting {
		t.Fatalf("phase = %s, want presenting", h.ctrl.Phase())
	}
	if !reflect.DeepEqual(before, h.ctrl.Snapshot()) {
		t.Fatalf("failed refetch changed state")
	}
	if len(h.renderer.errs) != 1 || quiz.KindOf(h.renderer.errs[0]) != quiz.KindSourceUnavailable {
		t.Fatalf("renderer errors = %v", h.renderer.errs)
	}
}

func TestSubmitAnswerRejectsInvalidIndexWithoutMutation(t *testing.T) {
	batch := []opentdb.RawQuestion{rawQuestion("Sky is blue?", "True", "False")}
	h := newHarness(t, nil, Policy{}, staticBatch(batch))
	h.start(t)

	tests := []struct {
		name string
		idx  int
		want error
	}{
		{name: "negative", idx: -1, want: quiz.ErrNoSelection},
		{name: "past four", idx: 4, want: quiz.ErrNoSelection},
		{name: "past option count", idx: 2, want: quiz.ErrNoSelection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := h.ctrl.Snapshot()
			err := h.ctrl.SubmitAnswer(tc.idx)
			if !errors.Is(err, tc.want) {
				t.Fatalf("SubmitAnswer(%d) error = %v, want %v", tc.idx, err, tc.want)
			}
			if !reflect.DeepEqual(before, h.ctrl.Snapshot()) {
				t.Fatalf("rejected submit mutated state")
			}
		})
	}

	if err := h.ctrl.SubmitAnswer(1); err != nil {
		t.Fatalf("SubmitAnswer(valid) failed: %v", err)
	}
	if err := h.ctrl.SubmitAnswer(1); !errors.Is(err, quiz.ErrIndexOutOfRange) {
		t.Fatalf("double submit error = %v, want ErrIndexOutOfRange", err)
	}
	assertCounters(t, h.ctrl.Snapshot(), 1, 1)
}

func TestConfirmWithoutSelection(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)

	if err := h.ctrl.Confirm(context.Background()); !errors.Is(err, quiz.ErrNoSelection) {
		t.Fatalf("Confirm error = %v, want ErrNoSelection", err)
	}
	if len(h.renderer.errs) != 1 || quiz.KindOf(h.renderer.errs[0]) != quiz.KindNoSelection {
		t.Fatalf("renderer errors = %v", h.renderer.errs)
	}
	assertCounters(t, h.ctrl.Snapshot(), 0, 0)
}

func TestSelectThenConfirmAdvances(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	h.ctrl.Select(0)
	h.ctrl.Select(3)
	if err := h.ctrl.Confirm(ctx); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	assertCounters(t, h.ctrl.Snapshot(), 1, 1)
	if got := h.renderer.lastPresented(t).Index; got != 1 {
		t.Fatalf("presented index = %d, want 1", got)
	}

	// The selection is consumed by Confirm.
	if err := h.ctrl.Confirm(ctx); !errors.Is(err, quiz.ErrNoSelection) {
		t.Fatalf("second Confirm error = %v, want ErrNoSelection", err)
	}

	current, ok := h.ctrl.Current()
	if !ok || current.Text != "2+2?" {
		t.Fatalf("Current() = %+v, %v", current, ok)
	}
}

func TestCorruptPersistenceFallsBackToFetch(t *testing.T) {
	tests := []struct {
		name string
		puts map[string]string
	}{
		{
			name: "undecodable questions",
			puts: map[string]string{KeyQuestions: "{not json"},
		},
		{
			name: "answered exceeds questions",
			puts: map[string]string{
				KeyQuestions: `[{"questionText":"Q","options":["a","b","c","d"],"correctAnswerIndex":1}]`,
				KeyAnswered:  "5",
			},
		},
		{
			name: "malformed remaining time",
			puts: map[string]string{
				KeyQuestions: `[{"questionText":"Q","options":["a","b","c","d"],"correctAnswerIndex":1}]`,
				KeyRemaining: "soon",
			},
		},
		{
			name: "unknown schema version",
			puts: map[string]string{
				KeyQuestions:     `[{"questionText":"Q","options":["a","b","c","d"],"correctAnswerIndex":1}]`,
				KeySchemaVersion: "9",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kv := storage.NewMemoryKV()
			if err := kv.Apply(context.Background(), storage.Batch{Puts: tc.puts}); err != nil {
				t.Fatalf("seeding store failed: %v", err)
			}

			h := newHarness(t, kv, Policy{}, staticBatch(twoQuestions()))
			h.start(t)

			if h.source.calls != 1 {
				t.Fatalf("corrupt store should trigger a fetch, calls = %d", h.source.calls)
			}
			state := h.ctrl.Snapshot()
			if len(state.Questions) != 2 {
				t.Fatalf("state not rebuilt from fresh batch: %+v", state)
			}
			assertCounters(t, state, 0, 0)
		})
	}
}

func TestInitializeWithAllAnsweredFinishes(t *testing.T) {
	kv := storage.NewMemoryKV()
	if err := storage.NewPrefs(kv).Edit().
		PutString(KeyQuestions, `[{"questionText":"Q","options":["a","b","c","d"],"correctAnswerIndex":1}]`).
		PutInt(KeyAnswered, 1).
		PutInt(KeyCorrect, 1).
		PutInt64(KeyRemaining, 30000).
		Commit(context.Background()); err != nil {
		t.Fatalf("seeding store failed: %v", err)
	}

	h := newHarness(t, kv, Policy{}, staticBatch(twoQuestions()))
	h.ctrl.Initialize(context.Background())
	h.clock.Drain()

	if len(h.renderer.finished) != 1 || h.renderer.finished[0].Correct != 1 || h.renderer.finished[0].Total != 1 {
		t.Fatalf("finished = %+v", h.renderer.finished)
	}
	if h.ctrl.Phase() != PhaseTerminal {
		t.Fatalf("phase = %s, want terminal", h.ctrl.Phase())
	}
	if h.source.calls != 0 {
		t.Fatalf("finishing a restored session should not fetch")
	}
}

func TestRestoreWithNoTimeLeftTimesOut(t *testing.T) {
	kv := storage.NewMemoryKV()
	if err := storage.NewPrefs(kv).Edit().
		PutString(KeyQuestions, `[{"questionText":"Q","options":["a","b","c","d"],"correctAnswerIndex":1}]`).
		PutInt64(KeyRemaining, 0).
		Commit(context.Background()); err != nil {
		t.Fatalf("seeding store failed: %v", err)
	}

	h := newHarness(t, kv, Policy{}, staticBatch(twoQuestions()))
	h.ctrl.Initialize(context.Background())
	h.clock.Advance(0)

	if len(h.renderer.finished) != 1 || h.renderer.finished[0].Reason != quiz.FinishTimeout {
		t.Fatalf("finished = %+v, want one timeout", h.renderer.finished)
	}
}

func TestTicksUpdateRemainingTime(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)

	h.clock.Advance(3 * time.Second)

	if got := h.ctrl.Snapshot().RemainingTime; got != h.policy.TotalTime-3*time.Second {
		t.Fatalf("remaining = %s", got)
	}
	if len(h.renderer.ticks) != 3 {
		t.Fatalf("ticks = %v", h.renderer.ticks)
	}

	if err := h.ctrl.SubmitAnswer(0); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	h.ctrl.AdvanceToNext(context.Background())
	if got := h.renderer.lastPresented(t).Remaining; got != h.policy.TotalTime-3*time.Second {
		t.Fatalf("presentation remaining = %s", got)
	}
}

func TestAdvanceWithoutBatchIsNoop(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))

	h.ctrl.AdvanceToNext(context.Background())

	if len(h.renderer.presented) != 0 || len(h.renderer.finished) != 0 {
		t.Fatalf("advance without batch produced events")
	}
	if h.ctrl.Phase() != PhaseEmpty {
		t.Fatalf("phase = %s, want empty", h.ctrl.Phase())
	}
}

func TestNewControllerValidatesOptions(t *testing.T) {
	base := Options{
		Executor: looptest.NewManual(),
		Source:   &fakeSource{},
		Store:    storage.NewMemoryKV(),
		Renderer: &fakeRenderer{},
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{name: "no executor", mutate: func(o *Options) { o.Executor = nil }},
		{name: "no source", mutate: func(o *Options) { o.Source = nil }},
		{name: "no store", mutate: func(o *Options) { o.Store = nil }},
		{name: "no renderer", mutate: func(o *Options) { o.Renderer = nil }},
		{name: "bad difficulty", mutate: func(o *Options) { o.Policy.Params.Difficulty = "impossible" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := base
			tc.mutate(&opts)
			if _, err := NewController(opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := NewController(base); err != nil {
		t.Fatalf("NewController(base) failed: %v", err)
	}
}

func TestCountersHoldUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := newHarness(t, nil, Policy{TotalTime: 20 * time.Second}, staticBatch(twoQuestions()))
	ctx := context.Background()
	h.ctrl.Initialize(ctx)

	for step := 0; step < 500; step++ {
		switch rng.Intn(7) {
		case 0:
			_ = h.ctrl.SubmitAnswer(rng.Intn(6) - 1)
		case 1:
			h.ctrl.AdvanceToNext(ctx)
		case 2:
			h.clock.Advance(time.Duration(rng.Intn(4)) * time.Second)
		case 3:
			h.ctrl.Suspend(ctx)
		case 4:
			h.ctrl.Resume(ctx)
		case 5:
			h.ctrl.FetchNewBatch(ctx)
		case 6:
			h.clock.Drain()
		}

		state := h.ctrl.Snapshot()
		if err := state.Validate(h.policy.TotalTime); err != nil {
			t.Fatalf("step %d: invalid state: %v", step, err)
		}
		if pending := h.clock.PendingTimers(); pending > 1 {
			t.Fatalf("step %d: %d countdowns live", step, pending)
		}
	}
}

func TestResumeWithoutSuspendKeepsLiveProgress(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	h.ctrl.Select(3)
	if err := h.ctrl.Confirm(ctx); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	h.clock.Advance(30 * time.Second)
	before := h.ctrl.Snapshot()
	presented := len(h.renderer.presented)

	h.ctrl.Resume(ctx)
	h.clock.Drain()

	after := h.ctrl.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("resume on a live session changed state:\nbefore %+v\nafter  %+v", before, after)
	}
	if after.RemainingTime != h.policy.TotalTime-30*time.Second {
		t.Fatalf("remaining = %s, want %s", after.RemainingTime, h.policy.TotalTime-30*time.Second)
	}
	if len(h.renderer.presented) != presented || h.source.calls != 1 {
		t.Fatalf("resume re-presented or refetched: presented %d -> %d, calls %d",
			presented, len(h.renderer.presented), h.source.calls)
	}
	if h.clock.PendingTimers() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clock.PendingTimers())
	}
}

func TestAnswersRejectedWhileSuspended(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	h.ctrl.Suspend(ctx)
	if !h.ctrl.Suspended() {
		t.Fatalf("Suspended() = false after Suspend")
	}

	if err := h.ctrl.SubmitAnswer(3); !errors.Is(err, quiz.ErrSuspended) {
		t.Fatalf("SubmitAnswer error = %v, want ErrSuspended", err)
	}
	h.ctrl.Select(3)
	if err := h.ctrl.Confirm(ctx); !errors.Is(err, quiz.ErrSuspended) {
		t.Fatalf("Confirm error = %v, want ErrSuspended", err)
	}
	assertCounters(t, h.ctrl.Snapshot(), 0, 0)
	if last := h.renderer.errs[len(h.renderer.errs)-1]; quiz.KindOf(last) != quiz.KindSuspended {
		t.Fatalf("renderer error = %v, want suspended kind", last)
	}

	h.ctrl.Resume(ctx)
	h.clock.Drain()
	if h.ctrl.Suspended() {
		t.Fatalf("still suspended after Resume")
	}
	h.ctrl.Select(3)
	if err := h.ctrl.Confirm(ctx); err != nil {
		t.Fatalf("Confirm after resume failed: %v", err)
	}
	assertCounters(t, h.ctrl.Snapshot(), 1, 1)
}

func TestNewBatchEndsSuspension(t *testing.T) {
	h := newHarness(t, nil, Policy{}, staticBatch(twoQuestions()))
	h.start(t)
	ctx := context.Background()

	h.ctrl.Suspend(ctx)
	h.ctrl.FetchNewBatch(ctx)
	h.clock.Drain()

	if h.ctrl.Suspended() || h.ctrl.Phase() != PhasePresenting {
		t.Fatalf("suspended = %v, phase = %s after new batch", h.ctrl.Suspended(), h.ctrl.Phase())
	}
	if err := h.ctrl.SubmitAnswer(3); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
}

// contextKV fails writes whose context is already done, like the SQLite
// and Redis stores do.
type contextKV struct {
	*storage.MemoryKV
}

func (k contextKV) Apply(ctx context.Context, batch storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.MemoryKV.Apply(ctx, batch)
}

func TestPersistOutlivesCancelledCaller(t *testing.T) {
	tests := []struct {
		name          string
		act           func(ctx context.Context, ctrl *Controller)
		wantCompleted bool
		wantRecorded  int
	}{
		{
			name: "last answer",
			act: func(ctx context.Context, ctrl *Controller) {
				ctrl.Select(3)
				_ = ctrl.Confirm(ctx)
			},
			wantCompleted: true,
			wantRecorded:  1,
		},
		{
			name:          "suspend",
			act:           func(ctx context.Context, ctrl *Controller) { ctrl.Suspend(ctx) },
			wantCompleted: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := looptest.NewManual()
			kv := storage.NewMemoryKV()
			renderer := &fakeRenderer{}
			recorder := &fakeRecorder{}
			ctrl, err := NewController(Options{
				Executor: clock,
				Source:   &fakeSource{respond: staticBatch(twoQuestions()[:1])},
				Store:    contextKV{kv},
				Renderer: renderer,
				Recorder: recorder,
				Logger:   quietLogger(),
				Shuffler: keepOrder{},
			})
			if err != nil {
				t.Fatalf("NewController failed: %v", err)
			}
			ctrl.Initialize(context.Background())
			clock.Drain()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			tc.act(ctx, ctrl)

			if len(renderer.errs) != 0 {
				t.Fatalf("renderer errors: %v", renderer.errs)
			}
			completed, err := storage.NewPrefs(kv).Bool(context.Background(), KeyCompleted, !tc.wantCompleted)
			if err != nil || completed != tc.wantCompleted {
				t.Fatalf("quizCompleted = (%v, %v), want %v", completed, err, tc.wantCompleted)
			}
			if len(recorder.results) != tc.wantRecorded {
				t.Fatalf("recorded %d results, want %d", len(recorder.results), tc.wantRecorded)
			}
		})
	}
}
