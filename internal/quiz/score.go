package quiz

import (
	"fmt"
	"time"
)

type FinishReason string

const (
	FinishExhausted FinishReason = "exhausted"
	FinishTimeout   FinishReason = "timeout"
)

// Score is the final result of one session.
type Score struct {
	SessionID string
	Correct   int
	Total     int
	Reason    FinishReason
}

func (s Score) Message() string {
	if s.Reason == FinishTimeout {
		return fmt.Sprintf("Time's up! You got %d out of %d correct.", s.Correct, s.Total)
	}
	return fmt.Sprintf("Quiz Completed! You got %d out of %d correct.", s.Correct, s.Total)
}

// FormatRemaining renders a duration as m:ss, rounding down to the second.
func FormatRemaining(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	seconds := int64(remaining / time.Second)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Result is a finished session as kept in history.
type Result struct {
	Score
	FinishedAt time.Time
}
