package sqlite

import (
	"context"
	"time"

	"trivia-quiz/internal/quiz"
)

const defaultResultsLimit = 20

func (s *Store) RecordResult(ctx context.Context, result quiz.Result) error {
	if result.FinishedAt.IsZero() {
		result.FinishedAt = s.now()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO session_results (session_id, correct, total, reason, finished_at_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		result.SessionID,
		result.Correct,
		result.Total,
		string(result.Reason),
		result.FinishedAt.UnixNano(),
	)
	return err
}

// ListResults returns the most recent results first. A non-positive limit
// falls back to the default page size.
func (s *Store) ListResults(ctx context.Context, limit int) ([]quiz.Result, error) {
	if limit <= 0 {
		limit = defaultResultsLimit
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, correct, total, reason, finished_at_unix
		 FROM session_results
		 -- id breaks ties between results recorded in the same nanosecond.
		 ORDER BY finished_at_unix DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]quiz.Result, 0)
	for rows.Next() {
		var (
			result     quiz.Result
			reason     string
			finishedNs int64
		)
		if err := rows.Scan(&result.SessionID, &result.Correct, &result.Total, &reason, &finishedNs); err != nil {
			return nil, err
		}
		result.Reason = quiz.FinishReason(reason)
		result.FinishedAt = time.Unix(0, finishedNs).UTC()
		results = append(results, result)
	}

	return results, rows.Err()
}
