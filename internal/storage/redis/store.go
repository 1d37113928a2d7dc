// Package redis stores session preferences in a single Redis hash.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis_v9 "github.com/redis/go-redis/v9"

	"trivia-quiz/internal/storage"
)

const DefaultKey = "trivia-quiz:prefs"

type Options struct {
	Addr     string
	Password string
	DB       int
	// Key is the hash holding every preference; defaults to DefaultKey.
	Key string
}

type Store struct {
	client *redis_v9.Client
	key    string
}

var _ storage.KV = (*Store)(nil)

// NewStore connects and pings so a bad address fails at startup rather
// than on the first save.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis_v9.NewClient(&redis_v9.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connect to redis: %w", err)
	}

	return NewStoreWithClient(client, opts.Key), nil
}

func NewStoreWithClient(client *redis_v9.Client, key string) *Store {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis_v9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error get %s from redis: %w", key, err)
	}
	return value, true, nil
}

// Apply sends the batch as one MULTI/EXEC transaction.
func (s *Store) Apply(ctx context.Context, batch storage.Batch) error {
	if batch.Empty() {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis_v9.Pipeliner) error {
		if len(batch.Puts) > 0 {
			values := make(map[string]any, len(batch.Puts))
			for key, value := range batch.Puts {
				values[key] = value
			}
			pipe.HSet(ctx, s.key, values)
		}
		if len(batch.Deletes) > 0 {
			pipe.HDel(ctx, s.key, batch.Deletes...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error apply batch to redis: %w", err)
	}
	return nil
}

