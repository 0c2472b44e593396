// Package keys provides the PostgreSQL-backed repository for per-user
// encryption key material (salt + verification digest, never the key).
package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/common"
	"github.com/dkurilov/counselbot/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find returns the key record for a real user id, or ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, realUserID int64) (*models.EncryptionKey, error) {
	query := `
		SELECT id, real_user_id, key_hash, key_salt, created_at, updated_at
		FROM user_encryption_keys
		WHERE real_user_id = $1
	`
	k := &models.EncryptionKey{}
	err := r.db.QueryRowContext(ctx, query, realUserID).
		Scan(&k.ID, &k.RealUserID, &k.KeyHash, &k.KeySalt, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

// Create inserts a key record. One record per real user id; a duplicate
// insert surfaces the unique-constraint violation as a db error.
func (r *PostgresRepository) Create(ctx context.Context, key *models.EncryptionKey) (*models.EncryptionKey, error) {
	query := `
		INSERT INTO user_encryption_keys (real_user_id, key_hash, key_salt)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, key.RealUserID, key.KeyHash, key.KeySalt).
		Scan(&key.ID, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

// Replace atomically swaps the salt and verification digest for a user.
// This is the hook key rotation builds on.
func (r *PostgresRepository) Replace(ctx context.Context, realUserID int64, keySalt []byte, keyHash string) error {
	query := `
		UPDATE user_encryption_keys
		SET key_salt = $2, key_hash = $3, updated_at = now()
		WHERE real_user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, realUserID, keySalt, keyHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteFor removes the key record during full data erasure.
func (r *PostgresRepository) DeleteFor(ctx context.Context, realUserID int64) error {
	query := `DELETE FROM user_encryption_keys WHERE real_user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, realUserID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
