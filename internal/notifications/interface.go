package notifications

import (
	"context"

	"github.com/moodlog/emotion-diary/internal/models"
)

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReport(ctx context.Context, report *models.Report) error
}
