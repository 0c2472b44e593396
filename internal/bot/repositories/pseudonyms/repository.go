package pseudonyms

import (
	"context"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
)

type Repository interface {
	FindByRealUserID(ctx context.Context, realUserID int64) (*models.Pseudonym, error)
	FindByPseudonymID(ctx context.Context, pseudonymID string) (*models.Pseudonym, error)
	Create(ctx context.Context, realUserID int64, pseudonymID string) (*models.Pseudonym, error)
	Unlink(ctx context.Context, realUserID int64) (int64, error)
	UnlinkInactiveSince(ctx context.Context, threshold time.Time) (int64, error)
	Delete(ctx context.Context, pseudonymID string) error
}
