// Package app assembles the loop, store, question source and controller
// from a Config. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"trivia-quiz/internal/config"
	"trivia-quiz/internal/loop"
	"trivia-quiz/internal/opentdb"
	"trivia-quiz/internal/quiz"
	"trivia-quiz/internal/session"
	"trivia-quiz/internal/storage"
	"trivia-quiz/internal/storage/redis"
	"trivia-quiz/internal/storage/sqlite"
)

type HistoryLister interface {
	ListResults(ctx context.Context, limit int) ([]quiz.Result, error)
}

// Store is the persistence picked by the config. Recorder and History are
// nil when the backend keeps no results.
type Store struct {
	KV       storage.KV
	Recorder session.ResultRecorder
	History  HistoryLister
	Close    func() error
}

func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return &Store{
			KV:    storage.NewMemoryKV(),
			Close: func() error { return nil },
		}, nil
	case config.DriverSQLite:
		store, err := sqlite.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{
			KV:       store,
			Recorder: store,
			History:  store,
			Close:    store.Close,
		}, nil
	case config.DriverRedis:
		store, err := redis.NewStore(ctx, redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Key:      cfg.Storage.Redis.Key,
		})
		if err != nil {
			return nil, err
		}
		return &Store{
			KV:    store,
			Close: store.Close,
		}, nil
	default:
		return nil, errors.New("unknown storage driver " + cfg.Storage.Driver)
	}
}

type Runtime struct {
	Loop       *loop.Loop
	Controller *session.Controller
	Store      *Store
}

// New builds a runtime around renderer. The caller starts Loop.Run and
// must Close the runtime when done.
func New(ctx context.Context, cfg *config.Config, renderer session.Renderer, log logrus.FieldLogger) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	l := loop.New()
	httpClient := &http.Client{Timeout: cfg.Quiz.FetchTimeout}
	ctrl, err := session.NewController(session.Options{
		Executor: l,
		Source:   opentdb.NewClientWithURL(cfg.OpenTDB.URL, httpClient),
		Store:    store.KV,
		Renderer: renderer,
		Recorder: store.Recorder,
		Logger:   log,
		Policy: session.Policy{
			Params:       cfg.Params(),
			TotalTime:    cfg.Quiz.Duration,
			FetchTimeout: cfg.Quiz.FetchTimeout,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Runtime{
		Loop:       l,
		Controller: ctrl,
		Store:      store,
	}, nil
}

func (r *Runtime) Initialize(ctx context.Context) error {
	return r.Loop.Do(ctx, func() { r.Controller.Initialize(ctx) })
}

// Suspend persists the session; binaries call it on shutdown.
func (r *Runtime) Suspend(ctx context.Context) error {
	return r.Loop.Do(ctx, func() { r.Controller.Suspend(ctx) })
}

func (r *Runtime) Close() error {
	return r.Store.Close()
}
