package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trivia-quiz/internal/countdown"
	"trivia-quiz/internal/opentdb"
	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/storage"
)

const noSelection = -1

type Options struct {
	Executor Executor
	Source   Source
	Store    storage.KV
	Renderer Renderer
	Recorder ResultRecorder
	Logger   logrus.FieldLogger
	Shuffler quiz.Shuffler
	Policy   Policy
	// NewSessionID defaults to uuid.NewString.
	NewSessionID func() string
}

// Controller owns the session state and the countdown. Every exported
// method must run on the Executor's serialized context.
//
// Invariants:
//   - at most one countdown is live.
//   - a fetch completion only applies if its generation is still current;
//     Suspend, Initialize and a newer FetchNewBatch all invalidate it.
//   - while suspended no answer is accepted and Resume is the only way
//     back; Resume on a live session changes nothing.
type Controller struct {
	exec     Executor
	source   Source
	prefs    *storage.Prefs
	renderer Renderer
	recorder ResultRecorder
	log      logrus.FieldLogger
	shuffler quiz.Shuffler
	policy   Policy
	newID    func() string

	timer *countdown.Countdown
	state quiz.State
	phase Phase

	// beforeFetch is the phase a failed fetch falls back to.
	beforeFetch Phase
	fetchGen    uint64
	cancelFetch context.CancelFunc

	selection int
	suspended bool
}

func NewController(opts Options) (*Controller, error) {
	switch {
	case opts.Executor == nil:
		return nil, errors.New("session: executor is required")
	case opts.Source == nil:
		return nil, errors.New("session: question source is required")
	case opts.Store == nil:
		return nil, errors.New("session: store is required")
	case opts.Renderer == nil:
		return nil, errors.New("session: renderer is required")
	}

	policy := opts.Policy.withDefaults()
	if err := policy.Params.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	shuffler := opts.Shuffler
	if shuffler == nil {
		shuffler = quiz.NewRandomShuffler()
	}
	newID := opts.NewSessionID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Controller{
		exec:      opts.Executor,
		source:    opts.Source,
		prefs:     storage.NewPrefs(opts.Store),
		renderer:  opts.Renderer,
		recorder:  opts.Recorder,
		log:       logger,
		shuffler:  shuffler,
		policy:    policy,
		newID:     newID,
		timer:     countdown.New(opts.Executor, policy.TickInterval),
		state:     quiz.NewState(policy.TotalTime),
		phase:     PhaseEmpty,
		selection: noSelection,
	}, nil
}

// Initialize restores the persisted session. A completed or empty session
// starts a fresh fetch; anything else resumes where it left off.
func (c *Controller) Initialize(ctx context.Context) {
	c.timer.Cancel()
	c.invalidateFetch()
	c.selection = noSelection
	c.suspended = false

	state, err := LoadState(ctx, c.prefs, c.policy.TotalTime)
	if err != nil {
		c.log.WithError(err).Warn("restoring session failed, starting from defaults")
	}
	c.state = state

	if state.QuizCompleted || len(state.Questions) == 0 {
		c.phase = PhaseEmpty
		if state.QuizCompleted {
			// A finished session may still carry stale questions from an
			// older writer; they are never resumed.
			c.state = quiz.NewState(c.policy.TotalTime)
			c.state.QuizCompleted = true
			c.phase = PhaseTerminal
		}
		c.FetchNewBatch(ctx)
		return
	}

	c.entry().WithFields(logrus.Fields{
		"answered":  state.QuestionsAnswered,
		"remaining": state.RemainingTime,
	}).Info("resuming session")

	if state.Exhausted() {
		c.finish(ctx, quiz.FinishExhausted)
		return
	}

	c.phase = PhasePresenting
	c.present()
	c.startCountdown(state.RemainingTime)
}

// Resume restores what Suspend persisted. It is a no-op unless the session
// is suspended, so live progress is never replaced by an older snapshot.
func (c *Controller) Resume(ctx context.Context) {
	if !c.suspended {
		c.entry().Debug("resume ignored, session is not suspended")
		return
	}
	c.Initialize(ctx)
}

// FetchNewBatch requests a batch off the serialized context. A newer call,
// Suspend or Initialize makes the in-flight request stale.
func (c *Controller) FetchNewBatch(ctx context.Context) {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	if c.phase != PhaseFetching {
		c.beforeFetch = c.phase
	}
	c.fetchGen++
	c.phase = PhaseFetching

	generation := c.fetchGen
	params := c.policy.Params
	persistCtx := context.WithoutCancel(ctx)
	fetchCtx, cancel := context.WithTimeout(persistCtx, c.policy.FetchTimeout)
	c.cancelFetch = cancel

	c.log.WithFields(logrus.Fields{
		"generation": generation,
		"amount":     params.Amount,
		"category":   params.Category,
		"difficulty": params.Difficulty,
	}).Debug("fetching question batch")

	c.exec.Go(func() {
		raw, err := c.source.FetchQuestions(fetchCtx, params)
		cancel()
		c.exec.Post(func() {
			c.completeFetch(persistCtx, generation, raw, err)
		})
	})
}

func (c *Controller) completeFetch(ctx context.Context, generation uint64, raw []opentdb.RawQuestion, err error) {
	if generation != c.fetchGen {
		c.log.WithFields(logrus.Fields{
			"generation": generation,
			"current":    c.fetchGen,
		}).Debug("discarding stale fetch result")
		return
	}
	c.cancelFetch = nil

	if err == nil && len(raw) == 0 {
		err = errors.New("source returned no questions")
	}

	var state quiz.State
	if err == nil {
		state = quiz.State{
			SessionID:     c.newID(),
			Questions:     quiz.BuildQuestions(raw, c.shuffler),
			RemainingTime: c.policy.TotalTime,
		}
		err = state.Validate(c.policy.TotalTime)
	}
	if err != nil {
		c.phase = c.beforeFetch
		err = fmt.Errorf("%w: %v", quiz.ErrSourceUnavailable, err)
		c.log.WithError(err).WithField("generation", generation).Warn("fetching question batch failed")
		c.renderer.Error(err)
		return
	}

	c.timer.Cancel()
	c.state = state
	c.selection = noSelection
	c.suspended = false
	c.phase = PhasePresenting
	c.persist(ctx)

	c.entry().WithField("questions", len(state.Questions)).Info("session started")
	c.present()
	c.startCountdown(state.RemainingTime)
}

// SubmitAnswer scores idx against the current question. On error nothing
// changes.
func (c *Controller) SubmitAnswer(idx int) error {
	if c.suspended {
		return quiz.ErrSuspended
	}
	if idx < 0 || idx >= quiz.MaxOptions {
		return fmt.Errorf("%w: option %d", quiz.ErrNoSelection, idx)
	}
	question, ok := c.state.Current()
	if !ok {
		return fmt.Errorf("%w: answered %d of %d", quiz.ErrIndexOutOfRange, c.state.QuestionsAnswered, len(c.state.Questions))
	}
	if idx >= len(question.Options) {
		return fmt.Errorf("%w: option %d of %d", quiz.ErrNoSelection, idx, len(question.Options))
	}

	if idx == question.CorrectOptionIndex {
		c.state.CorrectAnswers++
	}
	c.state.QuestionsAnswered++
	return nil
}

// AdvanceToNext presents the next question, or ends the session once every
// question is answered. Without a loaded batch it does nothing.
func (c *Controller) AdvanceToNext(ctx context.Context) {
	if len(c.state.Questions) == 0 {
		return
	}
	if !c.state.Exhausted() {
		c.present()
		return
	}
	c.finish(ctx, quiz.FinishExhausted)
}

// Suspend stops the countdown, drops any in-flight fetch and persists the
// state so Resume can pick it up.
func (c *Controller) Suspend(ctx context.Context) {
	c.timer.Cancel()
	c.invalidateFetch()

	// Only a finished session is persisted as completed.
	c.state.QuizCompleted = c.phase == PhaseTerminal
	c.suspended = true
	c.persist(ctx)
	c.entry().WithField("remaining", c.state.RemainingTime).Info("session suspended")
}

// Select records the option the user is pointing at.
func (c *Controller) Select(idx int) {
	c.selection = idx
}

// Confirm submits the selected option and moves on. Errors are reported to
// the renderer as well as returned.
func (c *Controller) Confirm(ctx context.Context) error {
	idx := c.selection
	c.selection = noSelection

	if c.suspended {
		err := quiz.ErrSuspended
		c.renderer.Error(err)
		return err
	}
	if idx == noSelection {
		err := quiz.ErrNoSelection
		c.renderer.Error(err)
		return err
	}
	if err := c.SubmitAnswer(idx); err != nil {
		c.log.WithError(err).Debug("answer rejected")
		c.renderer.Error(err)
		return err
	}
	c.AdvanceToNext(ctx)
	return nil
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() quiz.State {
	return c.state.Clone()
}

func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) Suspended() bool {
	return c.suspended
}

func (c *Controller) SessionID() string {
	return c.state.SessionID
}

// Current returns the question being shown, if any.
func (c *Controller) Current() (Presentation, bool) {
	if c.phase != PhasePresenting && c.phase != PhaseFetching {
		return Presentation{}, false
	}
	return c.presentation()
}

func (c *Controller) onTick(remaining time.Duration) {
	c.state.RemainingTime = remaining
	if observer, ok := c.renderer.(TickObserver); ok {
		observer.TimeLeft(remaining)
	}
}

func (c *Controller) onTimerFinish() {
	c.entry().Info("time is up")
	c.finish(context.Background(), quiz.FinishTimeout)
}

// finish is the terminal transition shared by exhaustion and timeout.
func (c *Controller) finish(ctx context.Context, reason quiz.FinishReason) {
	// The outcome must be stored even if the caller that triggered it is gone.
	ctx = context.WithoutCancel(ctx)
	c.timer.Cancel()

	score := quiz.Score{
		SessionID: c.state.SessionID,
		Correct:   c.state.CorrectAnswers,
		Total:     len(c.state.Questions),
		Reason:    reason,
	}

	c.state = quiz.NewState(c.policy.TotalTime)
	c.state.QuizCompleted = true
	c.selection = noSelection
	if c.phase == PhaseFetching {
		c.beforeFetch = PhaseTerminal
	} else {
		c.phase = PhaseTerminal
	}
	c.persist(ctx)

	c.log.WithFields(logrus.Fields{
		"session_id": score.SessionID,
		"correct":    score.Correct,
		"total":      score.Total,
		"reason":     score.Reason,
	}).Info("session finished")
	c.renderer.QuizFinished(score)

	if c.recorder != nil {
		err := c.recorder.RecordResult(ctx, quiz.Result{Score: score})
		if err != nil {
			c.log.WithError(err).Warn("recording session result failed")
		}
	}
}

func (c *Controller) present() {
	if p, ok := c.presentation(); ok {
		c.renderer.QuestionPresented(p)
	}
}

func (c *Controller) presentation() (Presentation, bool) {
	question, ok := c.state.Current()
	if !ok {
		return Presentation{}, false
	}
	options := make([]string, len(question.Options))
	copy(options, question.Options)
	return Presentation{
		SessionID: c.state.SessionID,
		Text:      question.Text,
		Options:   options,
		Index:     c.state.QuestionsAnswered,
		Total:     len(c.state.Questions),
		Remaining: c.state.RemainingTime,
	}, true
}

func (c *Controller) startCountdown(d time.Duration) {
	c.timer.Start(d, c.onTick, c.onTimerFinish)
}

func (c *Controller) invalidateFetch() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.fetchGen++
	if c.phase == PhaseFetching {
		c.phase = c.beforeFetch
	}
}

// persist reports write failures but never aborts the transition that
// triggered it.
func (c *Controller) persist(ctx context.Context) {
	if err := SaveState(context.WithoutCancel(ctx), c.prefs, c.state); err != nil {
		c.entry().WithError(err).Error("persisting session failed")
		c.renderer.Error(err)
	}
}

func (c *Controller) entry() logrus.FieldLogger {
	return c.log.WithFields(logrus.Fields{
		"session_id": c.state.SessionID,
		"phase":      c.phase,
	})
}
