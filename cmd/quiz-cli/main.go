package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/cli"
	"trivia-quiz/internal/config"
	"trivia-quiz/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("QUIZ_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	render := cli.NewRenderer(os.Stdout)
	rt, err := app.New(ctx, cfg, render, logger)
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

	runErr := cli.NewApp(rt.Loop, rt.Controller, render, rt.Store.History).Run(ctx, os.Stdin)

	suspendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Suspend(suspendCtx); err != nil {
		logger.WithError(err).Error("saving session on exit failed")
	}
	return runErr
}
