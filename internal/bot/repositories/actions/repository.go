package actions

import (
	"context"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
)

type Repository interface {
	Insert(ctx context.Context, userID int64, actionType, content string) error
	AllFor(ctx context.Context, userID int64) ([]*models.UserAction, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAllFor(ctx context.Context, userID int64) (int64, error)
}
