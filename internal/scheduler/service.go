package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/moodlog/emotion-diary/internal/notifications"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const reportTimeout = 5 * time.Minute

// ReportBuilder produces the periodic report
type ReportBuilder interface {
	Report(ctx context.Context, period string) *models.Report
}

// SessionSweeper drops expired sessions
type SessionSweeper interface {
	Sweep() int
}

// Service handles scheduling of report and housekeeping tasks
type Service struct {
	config   *config.Config
	reports  ReportBuilder
	notifier notifications.NotificationInterface
	sessions SessionSweeper
	cron     *cron.Cron
}

// NewService creates a new scheduler service. sessions may be nil.
func NewService(cfg *config.Config, reports ReportBuilder, notifier notifications.NotificationInterface, sessions SessionSweeper) *Service {
	return &Service{
		config:   cfg,
		reports:  reports,
		notifier: notifier,
		sessions: sessions,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
	}
}

// CronExpression returns the report schedule, or "" when reports are off
func CronExpression(schedule string) (string, error) {
	switch schedule {
	case config.ScheduleDaily:
		// Run daily at 9 AM
		return "0 0 9 * * *", nil
	case config.ScheduleWeekly:
		// Run weekly on Monday at 9 AM
		return "0 0 9 * * MON", nil
	case config.ScheduleOff, "":
		return "", nil
	default:
		return "", fmt.Errorf("unknown report schedule %q", schedule)
	}
}

// Start begins the scheduled jobs
func (s *Service) Start() error {
	expr, err := CronExpression(s.config.ReportSchedule)
	if err != nil {
		return err
	}

	if expr != "" {
		if _, err := s.cron.AddFunc(expr, func() {
			logrus.Info("Starting scheduled emotion report")
			if err := s.RunReport(context.Background()); err != nil {
				logrus.Errorf("Scheduled report failed: %v", err)
			}
		}); err != nil {
			return err
		}
	}

	if s.sessions != nil {
		// Hourly session cleanup
		if _, err := s.cron.AddFunc("0 0 * * * *", func() {
			s.sessions.Sweep()
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s report schedule", s.config.ReportSchedule)
	return nil
}

// RunReport builds the report for the configured period and sends it
func (s *Service) RunReport(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	report := s.reports.Report(ctx, s.config.ReportSchedule)
	logrus.Infof("Built %s report over %d entries", report.Period, report.Stats.Aggregate.EntryCount)
	return s.notifier.SendReport(ctx, report)
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

// Entries returns the number of registered jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}
