package httpapi

import (
	"sync"

	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
)

// Events is the session renderer for HTTP clients. It keeps the latest
// outcome and error so a poll of GET /session can show them.
type Events struct {
	mu       sync.Mutex
	finished *quiz.Score
	lastErr  error
}

var _ session.Renderer = (*Events)(nil)

func NewEvents() *Events {
	return &Events{}
}

func (e *Events) QuestionPresented(session.Presentation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = nil
	e.lastErr = nil
}

func (e *Events) QuizFinished(score quiz.Score) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = &score
}

func (e *Events) Error(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

func (e *Events) latest() (*quiz.Score, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished == nil {
		return nil, e.lastErr
	}
	score := *e.finished
	return &score, e.lastErr
}
