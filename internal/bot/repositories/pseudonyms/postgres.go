// Package pseudonyms provides the PostgreSQL-backed repository for the
// pseudonym registry.
package pseudonyms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/common"
	"github.com/dkurilov/counselbot/internal/dbx"
)

// PostgresRepository implements pseudonym storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByRealUserID returns the pseudonym currently linked to a real user id.
// Unlinked (anonymized) rows are never matched.
func (r *PostgresRepository) FindByRealUserID(ctx context.Context, realUserID int64) (*models.Pseudonym, error) {
	query := `
		SELECT id, real_user_id, pseudonym_id, created_at, updated_at FROM pseudonyms
		WHERE real_user_id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, realUserID))
}

// FindByPseudonymID returns a pseudonym row by its opaque identifier,
// linked or not.
func (r *PostgresRepository) FindByPseudonymID(ctx context.Context, pseudonymID string) (*models.Pseudonym, error) {
	query := `
		SELECT id, real_user_id, pseudonym_id, created_at, updated_at FROM pseudonyms
		WHERE pseudonym_id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, pseudonymID))
}

// Create inserts a new pseudonym row linking realUserID to pseudonymID.
func (r *PostgresRepository) Create(ctx context.Context, realUserID int64, pseudonymID string) (*models.Pseudonym, error) {
	query := `
		INSERT INTO pseudonyms (real_user_id, pseudonym_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	p := &models.Pseudonym{RealUserID: &realUserID, PseudonymID: pseudonymID}
	err := r.db.QueryRowContext(ctx, query, realUserID, pseudonymID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Unlink severs the real-id linkage for the given user, keeping the
// pseudonym row and all history under it. Returns the number of rows
// affected (0 when no linked pseudonym exists).
func (r *PostgresRepository) Unlink(ctx context.Context, realUserID int64) (int64, error) {
	query := `
		UPDATE pseudonyms SET real_user_id = NULL, updated_at = now()
		WHERE real_user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, realUserID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// UnlinkInactiveSince anonymizes every pseudonym whose user's most recent
// recorded action predates the threshold. Users with no actions at all are
// left untouched; they have nothing dating their activity.
func (r *PostgresRepository) UnlinkInactiveSince(ctx context.Context, threshold time.Time) (int64, error) {
	query := `
		UPDATE pseudonyms SET real_user_id = NULL, updated_at = now()
		WHERE real_user_id IS NOT NULL
		  AND real_user_id IN (
			SELECT user_id FROM user_actions
			GROUP BY user_id
			HAVING max(created_at) < $1
		  )
	`
	res, err := r.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// Delete removes a pseudonym row entirely. Used only by full data erasure.
func (r *PostgresRepository) Delete(ctx context.Context, pseudonymID string) error {
	query := `DELETE FROM pseudonyms WHERE pseudonym_id = $1`
	if _, err := r.db.ExecContext(ctx, query, pseudonymID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Pseudonym, error) {
	p := &models.Pseudonym{}
	var realUserID sql.NullInt64
	err := row.Scan(&p.ID, &realUserID, &p.PseudonymID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if realUserID.Valid {
		p.RealUserID = &realUserID.Int64
	}
	return p, nil
}
