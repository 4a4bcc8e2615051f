package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/moodlog/emotion-diary/internal/analysis"
	"github.com/moodlog/emotion-diary/internal/api"
	"github.com/moodlog/emotion-diary/internal/app"
	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/diary"
	"github.com/moodlog/emotion-diary/internal/journal"
	"github.com/moodlog/emotion-diary/internal/notifications"
	"github.com/moodlog/emotion-diary/internal/scheduler"
	"github.com/moodlog/emotion-diary/internal/session"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app.SetupLogging(cfg)
	logrus.Info("Starting emotion diary server")

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.BackendTimeout)
	table, closer, err := app.OpenBackend(startCtx, cfg)
	cancelStart()
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closer.Close()

	provider, err := app.NewProvider(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize language model: %v", err)
	}

	journalService := journal.NewService(cfg, diary.NewStore(table), provider)
	sessions := session.NewStore(cfg.SessionIdle)

	// Initialize notification and scheduler services
	notificationService := notifications.NewService(cfg)
	schedulerService := scheduler.NewService(cfg, journalService, notificationService, sessions)

	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	var reports api.ReportRunner
	if cfg.ReportSchedule != config.ScheduleOff {
		reports = schedulerService
	}
	handler := api.NewServer(journalService, sessions, reports, cfg.Location()).Handler()

	// Advice calls every persona in turn inside the request.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(len(analysis.DefaultPersonas))*cfg.LLMTimeout + cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
