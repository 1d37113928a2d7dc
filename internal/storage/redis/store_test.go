package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"trivia-quiz/internal/storage"
)

// newTestStore needs a live server; set REDIS_ADDR to run these tests.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, Options{
		Addr: addr,
		Key:  fmt.Sprintf("trivia-quiz-test:%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.client.Del(context.Background(), store.key).Err()
		_ = store.Close()
	})
	return store
}

func TestNewStoreRequiresAddress(t *testing.T) {
	if _, err := NewStore(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestNewStoreWithClientDefaultsKey(t *testing.T) {
	store := NewStoreWithClient(nil, " ")
	if store.key != DefaultKey {
		t.Fatalf("key = %q, want %q", store.key, DefaultKey)
	}
}

func TestStoreApplyAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "correctAnswers"); err != nil || ok {
		t.Fatalf("Get on empty hash = (ok=%v, err=%v)", ok, err)
	}

	if err := store.Apply(ctx, storage.Batch{Puts: map[string]string{
		"correctAnswers":   "4",
		"currentQuestions": "[]",
	}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := store.Apply(ctx, storage.Batch{
		Puts:    map[string]string{"quizCompleted": "true"},
		Deletes: []string{"currentQuestions"},
	}); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if value, ok, err := store.Get(ctx, "correctAnswers"); err != nil || !ok || value != "4" {
		t.Fatalf("correctAnswers = (%q, %v, %v)", value, ok, err)
	}
	if value, ok, _ := store.Get(ctx, "quizCompleted"); !ok || value != "true" {
		t.Fatalf("quizCompleted = (%q, %v)", value, ok)
	}
	if _, ok, _ := store.Get(ctx, "currentQuestions"); ok {
		t.Fatalf("currentQuestions should be deleted")
	}
}
