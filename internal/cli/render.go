package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
)

// syncWriter serializes writes from the loop goroutine and the input
// goroutine.
type syncWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *syncWriter) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

// Renderer prints controller events to a terminal.
type Renderer struct {
	w *syncWriter

	mu       sync.Mutex
	optCount int
}

var (
	_ session.Renderer     = (*Renderer)(nil)
	_ session.TickObserver = (*Renderer)(nil)
)

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{w: &syncWriter{out: out}}
}

func (r *Renderer) QuestionPresented(p session.Presentation) {
	r.mu.Lock()
	r.optCount = len(p.Options)
	r.mu.Unlock()

	r.w.printf("\nQuestion %d/%d (%d%%)  Time left: %s\n\n", p.Index+1, p.Total, p.Progress(), quiz.FormatRemaining(p.Remaining))
	r.w.printf("%s\n\n", p.Text)
	for idx, option := range p.Options {
		r.w.printf("%s. %s\n", quiz.OptionLetter(idx), option)
	}
	r.w.printf("\n")
}

func (r *Renderer) QuizFinished(score quiz.Score) {
	r.mu.Lock()
	r.optCount = 0
	r.mu.Unlock()

	r.w.printf("\n%s\n", score.Message())
	r.w.printf("Type 'new' for another round or 'quit' to leave.\n")
}

func (r *Renderer) Error(err error) {
	switch quiz.KindOf(err) {
	case quiz.KindNoSelection:
		r.w.printf("\nInvalid input. Please enter a letter A-%c.\n", r.maxLetter())
	case quiz.KindSourceUnavailable:
		r.w.printf("\nCould not load questions: %v. Type 'new' to try again.\n", err)
	case quiz.KindIndexOutOfRange:
		r.w.printf("\nThis quiz is already over. Type 'new' to start another.\n")
	case quiz.KindSuspended:
		r.w.printf("\nQuiz paused. Type 'resume' to continue.\n")
	default:
		r.w.printf("\nerror: %v\n", err)
	}
}

// TimeLeft prints on whole minutes and through the last ten seconds so the
// prompt is not flooded once per second.
func (r *Renderer) TimeLeft(remaining time.Duration) {
	if remaining%time.Minute == 0 || remaining <= 10*time.Second {
		r.w.printf("Time left: %s\n", quiz.FormatRemaining(remaining))
	}
}

func (r *Renderer) Printf(format string, args ...any) {
	r.w.printf(format, args...)
}

func (r *Renderer) maxLetter() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := r.optCount
	if count < 1 {
		count = quiz.MaxOptions
	}
	return byte('A' + count - 1)
}
