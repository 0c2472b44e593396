package retentionlog

import (
	"context"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
)

// Stats summarizes the retention log for the ops endpoint.
type Stats struct {
	TotalOperations    int64
	RecordsByOperation map[string]int64
	LastOperation      *time.Time
}

type Repository interface {
	Insert(ctx context.Context, entry *models.RetentionLogEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
}
