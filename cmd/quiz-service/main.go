package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/config"
	"trivia-quiz/internal/httpapi"
	"trivia-quiz/internal/logging"
	"trivia-quiz/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("QUIZ_CONFIG"), "path to a YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides ADDR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading config failed")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		logrus.WithError(err).Fatal("configuring logger failed")
	}

	if err := serve(cfg, logger); err != nil {
		logger.WithError(err).Fatal("quiz-service stopped")
	}
}

func serve(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := httpapi.NewEvents()
	m := metrics.New()
	rt, err := app.New(ctx, cfg, m.Renderer(events), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = rt.Loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	if err := rt.Initialize(ctx); err != nil {
		return err
	}

	api := httpapi.NewAPI(rt.Loop, rt.Controller, events, rt.Store.History)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouterWithMetrics(api, logger, m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("quiz-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown did not complete")
	}
	if err := rt.Suspend(shutdownCtx); err != nil {
		logger.WithError(err).Error("saving session on shutdown failed")
	}
	return nil
}
