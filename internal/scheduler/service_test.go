package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/moodlog/emotion-diary/internal/config"
	"github.com/moodlog/emotion-diary/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReports is a mock implementation of the report builder
type MockReports struct {
	mock.Mock
}

func (m *MockReports) Report(ctx context.Context, period string) *models.Report {
	args := m.Called(ctx, period)
	return args.Get(0).(*models.Report)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReport(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

type countingSweeper struct{ calls int }

func (c *countingSweeper) Sweep() int {
	c.calls++
	return 0
}

func TestCronExpression(t *testing.T) {
	tests := []struct {
		schedule string
		expected string
		wantErr  bool
	}{
		{schedule: "daily", expected: "0 0 9 * * *"},
		{schedule: "weekly", expected: "0 0 9 * * MON"},
		{schedule: "off", expected: ""},
		{schedule: "hourly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			expr, err := CronExpression(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expr)
		})
	}
}

func TestService_RunReport(t *testing.T) {
	cfg := config.Defaults()
	cfg.ReportSchedule = config.ScheduleDaily
	report := &models.Report{Period: "daily"}

	reports := &MockReports{}
	reports.On("Report", mock.Anything, "daily").Return(report)
	notifier := &MockNotificationService{}
	notifier.On("SendReport", mock.Anything, report).Return(nil)

	svc := NewService(cfg, reports, notifier, nil)
	require.NoError(t, svc.RunReport(context.Background()))

	reports.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_RunReportPropagatesSendFailure(t *testing.T) {
	cfg := config.Defaults()
	cfg.ReportSchedule = config.ScheduleWeekly

	reports := &MockReports{}
	reports.On("Report", mock.Anything, "weekly").Return(&models.Report{Period: "weekly"})
	notifier := &MockNotificationService{}
	notifier.On("SendReport", mock.Anything, mock.Anything).Return(errors.New("webhook down"))

	svc := NewService(cfg, reports, notifier, nil)
	assert.Error(t, svc.RunReport(context.Background()))
}

func TestService_StartRegistersJobs(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		sweeper  SessionSweeper
		expected int
	}{
		{name: "Reports off, no sessions", schedule: config.ScheduleOff, expected: 0},
		{name: "Reports off, sessions", schedule: config.ScheduleOff, sweeper: &countingSweeper{}, expected: 1},
		{name: "Daily with sessions", schedule: config.ScheduleDaily, sweeper: &countingSweeper{}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.ReportSchedule = tt.schedule

			svc := NewService(cfg, &MockReports{}, &MockNotificationService{}, tt.sweeper)
			require.NoError(t, svc.Start())
			defer svc.Stop()
			assert.Equal(t, tt.expected, svc.Entries())
		})
	}
}
