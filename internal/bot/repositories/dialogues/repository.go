package dialogues

import (
	"context"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
)

type Repository interface {
	Insert(ctx context.Context, msg *models.DialogueMessage) (int64, error)
	RecentByPseudonym(ctx context.Context, pseudonymID string, limit int) ([]*models.DialogueMessage, error)
	AllByPseudonym(ctx context.Context, pseudonymID string) ([]*models.DialogueMessage, error)
	DeleteOlderThan(ctx context.Context, pseudonymID string, cutoff time.Time) (int64, error)
	DeleteAllFor(ctx context.Context, pseudonymID string) (int64, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
