package keys

import (
	"context"

	"github.com/dkurilov/counselbot/internal/bot/models"
)

type Repository interface {
	Find(ctx context.Context, realUserID int64) (*models.EncryptionKey, error)
	Create(ctx context.Context, key *models.EncryptionKey) (*models.EncryptionKey, error)
	Replace(ctx context.Context, realUserID int64, keySalt []byte, keyHash string) error
	DeleteFor(ctx context.Context, realUserID int64) error
}
