package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feyalabs/quizbot/bot"
	coreconfig "github.com/feyalabs/quizbot/core/config"
	"github.com/feyalabs/quizbot/core/health"
	"github.com/feyalabs/quizbot/core/logger"
	coretelegram "github.com/feyalabs/quizbot/core/telegram"

	"log/slog"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("quizbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := bot.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	hs := health.New(cfg.Health.Listen)
	hs.Start(ctx)
	defer func() {
		if err := hs.Stop(context.Background()); err != nil {
			logger.Health.Warn("health shutdown error", slog.String("err", err.Error()))
		}
	}()

	runOpts := app.TelegramRunOptions()

	startedAt := time.Now()
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.App.Info("app ready",
			slog.String("event", "ready"),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.App.Info("shutting down...",
			slog.String("event", "shutdown"),
		)
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	return coretelegram.RunTelegram(ctx, runOpts)
}
