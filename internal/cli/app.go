package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
)

const historyLimit = 10

// Dispatcher runs fn on the controller's serialized context and waits.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

type HistoryLister interface {
	ListResults(ctx context.Context, limit int) ([]quiz.Result, error)
}

type App struct {
	dispatch Dispatcher
	ctrl     *session.Controller
	render   *Renderer
	history  HistoryLister
}

// NewApp wires a terminal front end. history may be nil when the store
// keeps no results.
func NewApp(dispatch Dispatcher, ctrl *session.Controller, render *Renderer, history HistoryLister) *App {
	return &App{
		dispatch: dispatch,
		ctrl:     ctrl,
		render:   render,
		history:  history,
	}
}

// Run restores or starts a session and then reads commands until quit, EOF
// or ctx is done. The caller suspends the session afterwards.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	a.render.Printf("Answer with A-D. Commands: pause, resume, new, time, history, help, quit.\n")
	if err := a.dispatch.Do(ctx, func() { a.ctrl.Initialize(ctx) }); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := a.handle(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (a *App) handle(ctx context.Context, line string) (bool, error) {
	command := strings.ToLower(strings.TrimSpace(line))
	switch command {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help":
		a.render.Printf("Answer with A-D. Commands: pause, resume, new, time, history, help, quit.\n")
		return false, nil
	case "pause":
		a.render.Printf("Paused. Type 'resume' to continue.\n")
		return false, a.dispatch.Do(ctx, func() { a.ctrl.Suspend(ctx) })
	case "resume":
		suspended := false
		err := a.dispatch.Do(ctx, func() {
			suspended = a.ctrl.Suspended()
			a.ctrl.Resume(ctx)
		})
		if err == nil && !suspended {
			a.render.Printf("Not paused.\n")
		}
		return false, err
	case "new":
		a.render.Printf("Fetching new questions...\n")
		return false, a.dispatch.Do(ctx, func() { a.ctrl.FetchNewBatch(ctx) })
	case "time":
		var remaining time.Duration
		if err := a.dispatch.Do(ctx, func() { remaining = a.ctrl.Snapshot().RemainingTime }); err != nil {
			return false, err
		}
		a.render.Printf("Time left: %s\n", quiz.FormatRemaining(remaining))
		return false, nil
	case "history":
		a.printHistory(ctx)
		return false, nil
	}

	idx, ok := quiz.ParseOptionLetter(command)
	if !ok {
		a.render.Printf("Unknown command %q. Type 'help' for the list.\n", line)
		return false, nil
	}

	// Confirm reports its own errors to the renderer, including answers
	// sent while paused.
	return false, a.dispatch.Do(ctx, func() {
		a.ctrl.Select(idx)
		_ = a.ctrl.Confirm(ctx)
	})
}

func (a *App) printHistory(ctx context.Context) {
	if a.history == nil {
		a.render.Printf("History is not kept by this store.\n")
		return
	}

	results, err := a.history.ListResults(ctx, historyLimit)
	if err != nil {
		a.render.Printf("error: %v\n", err)
		return
	}
	if len(results) == 0 {
		a.render.Printf("No finished quizzes yet.\n")
		return
	}

	for _, result := range results {
		a.render.Printf("%s  %d/%d  %s\n", result.FinishedAt.Local().Format("2006-01-02 15:04"), result.Correct, result.Total, result.Reason)
	}
}
