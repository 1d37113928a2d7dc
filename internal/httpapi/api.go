package httpapi

import (
	"context"

	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
)

// Dispatcher runs fn on the controller's serialized context and waits.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

type HistoryLister interface {
	ListResults(ctx context.Context, limit int) ([]quiz.Result, error)
}

type API struct {
	dispatch Dispatcher
	ctrl     *session.Controller
	events   *Events
	history  HistoryLister
}

// NewAPI serves one controller. events must be the renderer the controller
// was built with; history may be nil.
func NewAPI(dispatch Dispatcher, ctrl *session.Controller, events *Events, history HistoryLister) *API {
	if events == nil {
		events = NewEvents()
	}
	return &API{
		dispatch: dispatch,
		ctrl:     ctrl,
		events:   events,
		history:  history,
	}
}
