// Package actions provides the PostgreSQL-backed repository for the user
// action log. Rows are written per interaction and double as the activity
// signal for inactivity-based anonymization.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert records one action for a real user id.
func (r *PostgresRepository) Insert(ctx context.Context, userID int64, actionType, content string) error {
	query := `
		INSERT INTO user_actions (user_id, action_type, content)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, actionType, content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AllFor returns a user's actions in chronological order. Used by data
// export.
func (r *PostgresRepository) AllFor(ctx context.Context, userID int64) ([]*models.UserAction, error) {
	query := `
		SELECT id, user_id, action_type, content, created_at
		FROM user_actions
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	var result []*models.UserAction
	for rows.Next() {
		a := &models.UserAction{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.ActionType, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// DeleteOlderThan removes action records strictly older than cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM user_actions WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// DeleteAllFor removes every action record for a user during full erasure.
func (r *PostgresRepository) DeleteAllFor(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM user_actions WHERE user_id = $1`
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
