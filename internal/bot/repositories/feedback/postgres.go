// Package feedback provides the PostgreSQL-backed repository for
// user-submitted feedback.
package feedback

import (
	"context"
	"fmt"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, fb *models.Feedback) error {
	query := `
		INSERT INTO feedback (user_id, feedback_type, feedback_text, context)
		VALUES ($1, $2, $3, $4)
		RETURNING id, feedback_date
	`
	err := r.db.QueryRowContext(ctx, query, fb.UserID, fb.FeedbackType, fb.FeedbackText, fb.Context).
		Scan(&fb.ID, &fb.FeedbackDate)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteAllFor removes a user's feedback rows during full erasure.
func (r *PostgresRepository) DeleteAllFor(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM feedback WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
