package quiz

import (
	"fmt"
	"time"
)

// DefaultTotalTime is the countdown budget of one session.
const DefaultTotalTime = 10 * time.Minute

// State is the authoritative record of quiz progress. Only the session
// controller mutates it.
//
// Invariants:
//   - 0 <= CorrectAnswers <= QuestionsAnswered <= len(Questions)
//   - 0 <= RemainingTime <= total budget
//   - QuizCompleted means no further answers are accepted.
type State struct {
	SessionID         string
	Questions         []Question
	QuestionsAnswered int
	CorrectAnswers    int
	RemainingTime     time.Duration
	QuizCompleted     bool
}

func NewState(total time.Duration) State {
	return State{
		Questions:     []Question{},
		RemainingTime: total,
	}
}

func (s State) Validate(total time.Duration) error {
	if s.CorrectAnswers < 0 || s.QuestionsAnswered < 0 {
		return fmt.Errorf("%w: negative counters (answered=%d, correct=%d)", ErrPersistenceCorrupt, s.QuestionsAnswered, s.CorrectAnswers)
	}
	if s.CorrectAnswers > s.QuestionsAnswered {
		return fmt.Errorf("%w: correct=%d exceeds answered=%d", ErrPersistenceCorrupt, s.CorrectAnswers, s.QuestionsAnswered)
	}
	if s.QuestionsAnswered > len(s.Questions) {
		return fmt.Errorf("%w: answered=%d exceeds %d questions", ErrPersistenceCorrupt, s.QuestionsAnswered, len(s.Questions))
	}
	if s.RemainingTime < 0 || s.RemainingTime > total {
		return fmt.Errorf("%w: remaining time %s outside [0, %s]", ErrPersistenceCorrupt, s.RemainingTime, total)
	}
	for idx, question := range s.Questions {
		if len(question.Options) == 0 || len(question.Options) > MaxOptions {
			return fmt.Errorf("%w: question %d has %d options", ErrPersistenceCorrupt, idx, len(question.Options))
		}
		if question.CorrectOptionIndex < 0 || question.CorrectOptionIndex >= len(question.Options) {
			return fmt.Errorf("%w: question %d correct index %d out of range", ErrPersistenceCorrupt, idx, question.CorrectOptionIndex)
		}
	}
	return nil
}

// Current returns the question at position QuestionsAnswered.
func (s State) Current() (Question, bool) {
	if s.QuestionsAnswered < 0 || s.QuestionsAnswered >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.QuestionsAnswered], true
}

func (s State) Exhausted() bool {
	return s.QuestionsAnswered >= len(s.Questions)
}

func (s State) Clone() State {
	questions := make([]Question, len(s.Questions))
	for idx, question := range s.Questions {
		questions[idx] = question.Clone()
	}
	s.Questions = questions
	return s
}
