package feedback

import (
	"context"

	"github.com/dkurilov/counselbot/internal/bot/models"
)

type Repository interface {
	Insert(ctx context.Context, fb *models.Feedback) error
	DeleteAllFor(ctx context.Context, userID int64) (int64, error)
}
