package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trivia-quiz/internal/storage"
)

const DefaultPath = "quiz.db"

// Store keeps session preferences and finished-session history in one
// SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.KV = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Apply writes the whole batch in one transaction so a crash never leaves a
// half-written snapshot behind.
func (s *Store) Apply(ctx context.Context, batch storage.Batch) error {
	if batch.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	updatedAt := s.now().UnixNano()
	for key, value := range batch.Puts {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO preferences (key, value, updated_at_unix) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at_unix = excluded.updated_at_unix`,
			key,
			value,
			updatedAt,
		)
		if err != nil {
			return err
		}
	}
	for _, key := range batch.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
			return err
		}
	}

	return tx.Commit()
}
