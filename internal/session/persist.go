package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/storage"
)

// Persisted layout. The first five keys are the long-standing format; a
// store written before schemaVersion existed reads as version 1.
const (
	KeyQuestions     = "currentQuestions"
	KeyCorrect       = "correctAnswers"
	KeyAnswered      = "questionsAnswered"
	KeyRemaining     = "remainingTime"
	KeyCompleted     = "quizCompleted"
	KeySchemaVersion = "schemaVersion"
	KeySessionID     = "sessionId"

	SchemaVersion = 1
)

// SaveState writes the whole state as one batch.
func SaveState(ctx context.Context, prefs *storage.Prefs, state quiz.State) error {
	editor := prefs.Edit().
		PutInt(KeySchemaVersion, SchemaVersion).
		PutInt(KeyCorrect, state.CorrectAnswers).
		PutInt(KeyAnswered, state.QuestionsAnswered).
		PutInt64(KeyRemaining, state.RemainingTime.Milliseconds()).
		PutBool(KeyCompleted, state.QuizCompleted)

	if len(state.Questions) == 0 {
		editor.Remove(KeyQuestions)
	} else {
		encoded, err := json.Marshal(state.Questions)
		if err != nil {
			return err
		}
		editor.PutString(KeyQuestions, string(encoded))
	}

	if state.SessionID == "" {
		editor.Remove(KeySessionID)
	} else {
		editor.PutString(KeySessionID, state.SessionID)
	}

	return editor.Commit(ctx)
}

// LoadState restores a state persisted by SaveState. Missing keys take
// their defaults. Anything unreadable or violating the state invariants
// returns defaults together with an ErrPersistenceCorrupt error; storage
// failures are returned unwrapped, also with defaults.
func LoadState(ctx context.Context, prefs *storage.Prefs, total time.Duration) (quiz.State, error) {
	state, err := loadState(ctx, prefs, total)
	if err != nil {
		if errors.Is(err, storage.ErrMalformedValue) {
			err = fmt.Errorf("%w: %v", quiz.ErrPersistenceCorrupt, err)
		}
		return quiz.NewState(total), err
	}
	if err := state.Validate(total); err != nil {
		return quiz.NewState(total), err
	}
	return state, nil
}

func loadState(ctx context.Context, prefs *storage.Prefs, total time.Duration) (quiz.State, error) {
	state := quiz.NewState(total)

	version, err := prefs.Int(ctx, KeySchemaVersion, SchemaVersion)
	if err != nil {
		return state, err
	}
	if version != SchemaVersion {
		return state, fmt.Errorf("%w: unknown schema version %d", quiz.ErrPersistenceCorrupt, version)
	}

	encoded, ok, err := prefs.String(ctx, KeyQuestions, "")
	if err != nil {
		return state, err
	}
	if ok {
		var questions []quiz.Question
		if err := json.Unmarshal([]byte(encoded), &questions); err != nil {
			return state, fmt.Errorf("%w: %v", quiz.ErrPersistenceCorrupt, err)
		}
		if questions != nil {
			state.Questions = questions
		}
	}

	if state.SessionID, _, err = prefs.String(ctx, KeySessionID, ""); err != nil {
		return state, err
	}
	if state.CorrectAnswers, err = prefs.Int(ctx, KeyCorrect, 0); err != nil {
		return state, err
	}
	if state.QuestionsAnswered, err = prefs.Int(ctx, KeyAnswered, 0); err != nil {
		return state, err
	}
	remainingMs, err := prefs.Int64(ctx, KeyRemaining, total.Milliseconds())
	if err != nil {
		return state, err
	}
	state.RemainingTime = time.Duration(remainingMs) * time.Millisecond
	if state.QuizCompleted, err = prefs.Bool(ctx, KeyCompleted, false); err != nil {
		return state, err
	}

	return state, nil
}
