package services

import (
	"context"
	"database/sql"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
)

// FeedbackService records user-submitted feedback.
type FeedbackService struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func NewFeedbackService(db *sql.DB, rm repomanager.RepositoryManager) *FeedbackService {
	return &FeedbackService{db: db, rm: rm}
}

// Submit stores one feedback row. origin describes where in the
// conversation the feedback was given.
func (s *FeedbackService) Submit(ctx context.Context, userID int64, feedbackType, text, origin string) error {
	fb := &models.Feedback{
		UserID:       userID,
		FeedbackType: feedbackType,
		FeedbackText: text,
		Context:      origin,
	}
	return s.rm.Feedback(s.db).Insert(ctx, fb)
}
