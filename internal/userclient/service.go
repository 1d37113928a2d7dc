// Package userclient plays a quiz-service session from a terminal over HTTP.
package userclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trivia-quiz/internal/quiz"
)

const (
	defaultServer       = "http://127.0.0.1:8080"
	defaultHistoryLimit = 10
	defaultHTTPTimeout  = 5 * time.Second
	defaultPollInterval = 250 * time.Millisecond
	defaultFetchWait    = 20 * time.Second
)

type Config struct {
	ServerURL    string
	HistoryLimit int
	HTTPTimeout  time.Duration
	// PollInterval and FetchWait bound how long the client waits for the
	// service to finish loading a batch.
	PollInterval time.Duration
	FetchWait    time.Duration
}

type player struct {
	client    *HTTPClient
	out       io.Writer
	serverURL string
	cfg       Config
	last      Session
}

func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	serverURL := strings.TrimSpace(cfg.ServerURL)
	if serverURL == "" {
		serverURL = defaultServer
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = defaultFetchWait
	}

	p := &player{
		client:    NewHTTPClient(serverURL, &http.Client{Timeout: timeout}),
		out:       out,
		serverURL: serverURL,
		cfg:       cfg,
	}
	reader := bufio.NewReader(in)

	fmt.Fprintf(out, "quiz-remote\nserver=%s\n\n", serverURL)
	printHelp(out)

	if err := p.client.Health(ctx); err != nil {
		fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
	} else if err := p.refresh(ctx); err != nil {
		fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
	}

	for {
		fmt.Fprint(out, "\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		switch command {
		case "help":
			printHelp(out)
		case "exit", "quit":
			return nil
		case "status":
			err = p.refresh(ctx)
		case "new":
			fmt.Fprintln(out, "Fetching new questions...")
			err = p.apply(ctx, p.client.NewBatch)
		case "pause":
			if _, err = p.client.Suspend(ctx); err == nil {
				fmt.Fprintln(out, "Paused. Type 'resume' to continue.")
			}
		case "resume":
			err = p.apply(ctx, p.client.Resume)
		case "history":
			limit, parseErr := parsePositiveLimit(args, 1, cfg.HistoryLimit)
			if parseErr != nil {
				fmt.Fprintf(out, "invalid history limit: %v\n", parseErr)
				continue
			}
			err = p.history(ctx, limit)
		default:
			idx, ok := quiz.ParseOptionLetter(command)
			if !ok || len(args) != 1 {
				fmt.Fprintln(out, "unknown command. type 'help' for usage.")
				continue
			}
			err = p.answer(ctx, quiz.OptionLetter(idx))
		}

		if err != nil {
			fmt.Fprintf(out, "error: %v\n", describeClientError(err, serverURL))
		}
	}
}

func (p *player) refresh(ctx context.Context) error {
	return p.apply(ctx, p.client.Session)
}

// apply runs call, waits out a batch fetch the call may have started and
// prints the resulting session.
func (p *player) apply(ctx context.Context, call func(context.Context) (Session, error)) error {
	current, err := call(ctx)
	if err != nil {
		return err
	}
	current, err = p.waitForBatch(ctx, current)
	if err != nil {
		return err
	}
	p.show(current)
	return nil
}

func (p *player) answer(ctx context.Context, letter string) error {
	before := p.last
	current, err := p.client.Answer(ctx, letter)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == quiz.KindIndexOutOfRange.String() {
			// The countdown ran out on the server since the last prompt.
			fmt.Fprintln(p.out, "This quiz is already over.")
			return p.refresh(ctx)
		}
		if errors.As(err, &apiErr) && apiErr.Kind == quiz.KindSuspended.String() {
			fmt.Fprintln(p.out, "Quiz paused. Type 'resume' to continue.")
			return nil
		}
		return err
	}

	correct := current.Correct
	if current.Question == nil && current.Result != nil {
		correct = current.Result.Correct
	}
	if correct > before.Correct {
		fmt.Fprintln(p.out, "Correct!")
	} else {
		fmt.Fprintln(p.out, "Wrong.")
	}
	p.show(current)
	return nil
}

func (p *player) history(ctx context.Context, limit int) error {
	results, err := p.client.History(ctx, limit)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotImplemented {
			fmt.Fprintln(p.out, "History is not kept by this service.")
			return nil
		}
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(p.out, "No finished quizzes yet.")
		return nil
	}

	fmt.Fprintln(p.out, "Recent quizzes:")
	for idx, result := range results {
		finished := "unknown"
		if result.FinishedAt != nil {
			finished = result.FinishedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(p.out, "%d. %d/%d %s finished=%s\n", idx+1, result.Correct, result.Total, result.Reason, finished)
	}
	return nil
}

func (p *player) waitForBatch(ctx context.Context, current Session) (Session, error) {
	if current.Phase != phaseFetching {
		return current, nil
	}

	deadline := time.NewTimer(p.cfg.FetchWait)
	defer deadline.Stop()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for current.Phase == phaseFetching {
		select {
		case <-ctx.Done():
			return Session{}, ctx.Err()
		case <-deadline.C:
			return Session{}, errors.New("timed out waiting for questions")
		case <-ticker.C:
		}

		var err error
		current, err = p.client.Session(ctx)
		if err != nil {
			return Session{}, err
		}
	}
	return current, nil
}

func (p *player) show(current Session) {
	p.last = current
	out := p.out

	switch {
	case current.Question != nil:
		question := current.Question
		fmt.Fprintf(out, "\nQuestion %d/%d (%d%%)  Time left: %s\n\n", question.Index+1, question.Total, question.Progress, current.Remaining)
		fmt.Fprintf(out, "%s\n\n", question.Text)
		for _, option := range question.Options {
			fmt.Fprintf(out, "%s. %s\n", option.Letter, option.Text)
		}
	case current.LastError != nil && current.LastError.Kind == quiz.KindSourceUnavailable.String():
		fmt.Fprintf(out, "Could not load questions: %s. Type 'new' to try again.\n", current.LastError.Error)
	case current.Result != nil:
		fmt.Fprintf(out, "\n%s\nType 'new' for another round.\n", current.Result.Message)
	case current.Phase == phaseTerminal:
		fmt.Fprintln(out, "This quiz is over. Type 'new' for another round.")
	default:
		fmt.Fprintln(out, "No quiz loaded. Type 'new' to start one.")
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  A-D            answer the current question")
	fmt.Fprintln(out, "  status")
	fmt.Fprintln(out, "  new")
	fmt.Fprintln(out, "  pause | resume")
	fmt.Fprintln(out, "  history [limit]")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  exit")
}

func parsePositiveLimit(args []string, index int, defaultValue int) (int, error) {
	if len(args) <= index {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(args[index])
	if err != nil || value <= 0 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return fmt.Errorf("quiz service unavailable at %s", serverURL)
	}
	return err
}
