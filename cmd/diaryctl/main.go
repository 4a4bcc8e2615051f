package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/moodlog/emotion-diary/internal/app"
	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/journal"
)

func main() {
	if err := newRootCmd(openJournal).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openJournal(ctx context.Context) (*journal.Service, io.Closer, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	app.SetupLogging(cfg)
	if !cfg.Debug {
		// Keep stdout output readable; fallbacks and failures still show up.
		logrus.SetLevel(logrus.WarnLevel)
	}

	table, closer, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	provider, err := app.NewProvider(cfg)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return journal.NewService(cfg, diary.NewStore(table), provider), closer, nil
}
