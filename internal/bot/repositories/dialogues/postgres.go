// Package dialogues provides the PostgreSQL-backed repository for the
// split dialogue store (metadata rows referencing encrypted content rows).
package dialogues

import (
	"context"
	"database/sql"
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

// Insert persists one message as a content row plus a metadata row
// referencing it. The two inserts run on whatever DBTX the repository is
// bound to; callers that need atomicity bind the repository to a
// transaction.
func (r *PostgresRepository) Insert(ctx context.Context, msg *models.DialogueMessage) (int64, error) {
	contentQuery := `
		INSERT INTO dialogue_content (content, nonce, encrypted)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var contentID int64
	err := r.db.QueryRowContext(ctx, contentQuery, msg.Content, msg.Nonce, msg.Encrypted).
		Scan(&contentID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	metaQuery := `
		INSERT INTO dialogue_metadata (pseudonym_id, role, message_hash, content_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, ts
	`
	err = r.db.QueryRowContext(ctx, metaQuery, msg.PseudonymID, msg.Role, msg.MessageHash, contentID).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	msg.ContentID = contentID
	return msg.ID, nil
}

// RecentByPseudonym returns up to limit messages for a pseudonym, newest
// first. Callers reverse the slice when they need chronological order.
func (r *PostgresRepository) RecentByPseudonym(ctx context.Context, pseudonymID string, limit int) ([]*models.DialogueMessage, error) {
	query := `
		SELECT m.id, m.pseudonym_id, m.role, m.message_hash, m.ts,
		       m.content_id, c.content, c.nonce, c.encrypted
		FROM dialogue_metadata m
		JOIN dialogue_content c ON c.id = m.content_id
		WHERE m.pseudonym_id = $1
		ORDER BY m.ts DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pseudonymID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanMessages(rows)
}

// AllByPseudonym returns every message for a pseudonym in chronological
// order. Used by data export.
func (r *PostgresRepository) AllByPseudonym(ctx context.Context, pseudonymID string) ([]*models.DialogueMessage, error) {
	query := `
		SELECT m.id, m.pseudonym_id, m.role, m.message_hash, m.ts,
		       m.content_id, c.content, c.nonce, c.encrypted
		FROM dialogue_metadata m
		JOIN dialogue_content c ON c.id = m.content_id
		WHERE m.pseudonym_id = $1
		ORDER BY m.ts ASC
	`
	rows, err := r.db.QueryContext(ctx, query, pseudonymID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanMessages(rows)
}

// DeleteOlderThan removes one pseudonym's messages strictly older than
// cutoff. Deleting the content row cascades to the metadata row, so a
// single statement removes both halves; the count is the number of
// messages removed.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, pseudonymID string, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM dialogue_content
		WHERE id IN (
			SELECT content_id FROM dialogue_metadata
			WHERE pseudonym_id = $1 AND ts < $2
		)
	`
	return r.execCount(ctx, query, pseudonymID, cutoff)
}

// DeleteAllFor removes every message stored under a pseudonym.
func (r *PostgresRepository) DeleteAllFor(ctx context.Context, pseudonymID string) (int64, error) {
	query := `
		DELETE FROM dialogue_content
		WHERE id IN (
			SELECT content_id FROM dialogue_metadata
			WHERE pseudonym_id = $1
		)
	`
	return r.execCount(ctx, query, pseudonymID)
}

// ExpireOlderThan removes messages strictly older than cutoff across all
// pseudonyms.
func (r *PostgresRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM dialogue_content
		WHERE id IN (
			SELECT content_id FROM dialogue_metadata
			WHERE ts < $1
		)
	`
	return r.execCount(ctx, query, cutoff)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]*models.DialogueMessage, error) {
	defer rows.Close()
	var result []*models.DialogueMessage
	for rows.Next() {
		m := &models.DialogueMessage{}
		err := rows.Scan(&m.ID, &m.PseudonymID, &m.Role, &m.MessageHash, &m.Timestamp,
			&m.ContentID, &m.Content, &m.Nonce, &m.Encrypted)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
