// Package session drives one quiz session: fetch, present, score, persist
// and resume. Everything in here runs on a single serialized context.
package session

import (
	"context"
	"time"

	"trivia-quiz/internal/opentdb"
	"trivia-quiz/internal/quiz"
)

// Executor is the serialized context. loop.Loop satisfies it in
// production and looptest.Manual in tests.
type Executor interface {
	Post(fn func())
	Go(fn func())
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type Source interface {
	FetchQuestions(ctx context.Context, params opentdb.Params) ([]opentdb.RawQuestion, error)
}

// Renderer receives controller events on the serialized context. It must
// not block.
type Renderer interface {
	QuestionPresented(p Presentation)
	QuizFinished(score quiz.Score)
	Error(err error)
}

// TickObserver is implemented by renderers that show the countdown.
type TickObserver interface {
	TimeLeft(remaining time.Duration)
}

// ResultRecorder keeps finished sessions. It is optional.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result quiz.Result) error
}

type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseFetching
	PhasePresenting
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhasePresenting:
		return "presenting"
	case PhaseTerminal:
		return "terminal"
	default:
		return "empty"
	}
}

// Presentation is what a renderer needs to show the current question.
// Index is zero-based.
type Presentation struct {
	SessionID string
	Text      string
	Options   []string
	Index     int
	Total     int
	Remaining time.Duration
}

// Progress is the share of the batch already answered, in percent.
func (p Presentation) Progress() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Index * 100 / p.Total
}

type Policy struct {
	Params       opentdb.Params
	TotalTime    time.Duration
	TickInterval time.Duration
	FetchTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Params: opentdb.Params{
			Amount:     10,
			Category:   18,
			Difficulty: opentdb.DifficultyEasy,
			Type:       opentdb.TypeMultiple,
		},
		TotalTime:    quiz.DefaultTotalTime,
		TickInterval: time.Second,
		FetchTimeout: 15 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Params.Amount <= 0 {
		p.Params.Amount = def.Params.Amount
	}
	if p.TotalTime <= 0 {
		p.TotalTime = def.TotalTime
	}
	if p.TickInterval <= 0 {
		p.TickInterval = def.TickInterval
	}
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = def.FetchTimeout
	}
	return p
}
