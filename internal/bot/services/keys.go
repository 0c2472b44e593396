package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash"
	"strconv"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
	"github.com/dkurilov/counselbot/internal/common"
	"github.com/dkurilov/counselbot/internal/cryptox"
	"github.com/dkurilov/counselbot/internal/dbx"
	"github.com/dkurilov/counselbot/internal/logging"
)

// KeyService derives per-user symmetric keys from the master secret and a
// per-user salt. Neither the master secret nor derived keys are ever
// persisted; only the salt and a key verification digest reach the
// database.
type KeyService struct {
	db         *sql.DB
	rm         repomanager.RepositoryManager
	master     []byte
	iterations int
	hashFn     func() hash.Hash
	logger     logging.Logger
}

func NewKeyService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) (*KeyService, error) {
	hashFn, err := cryptox.HashFunc(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	var master []byte
	if cfg.MasterKey != "" {
		master = []byte(cfg.MasterKey)
	}
	return &KeyService{
		db:         db,
		rm:         rm,
		master:     master,
		iterations: cfg.KeyDerivationIterations,
		hashFn:     hashFn,
		logger:     logger,
	}, nil
}

// KeyFor derives the symmetric key for the user behind a pseudonym.
//
// For a linked pseudonym the per-user salt is fetched, created on first use
// inside a transaction, and the derived key is checked against the stored
// verification digest. A mismatch means the master secret changed or the
// record is corrupt; the caller gets ErrKeyVerification rather than a key
// that silently fails to decrypt history.
//
// For an unlinked (anonymized) pseudonym no salt record exists anymore, so
// a one-off random salt is used. The resulting key encrypts new data that
// nobody can decrypt, which keeps anonymized content unreadable without
// special-casing every call site.
//
// With pseudonymization disabled the dialogue store is keyed by the decimal
// real user id and the registry holds no row for it; the id is parsed back
// and takes the normal salt path so round-trip decryption still works.
func (s *KeyService) KeyFor(ctx context.Context, pseudonymID string) ([]byte, error) {
	if len(s.master) == 0 {
		return nil, common.ErrEncryptionUnavailable
	}

	p, err := s.rm.Pseudonyms(s.db).FindByPseudonymID(ctx, pseudonymID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if realUserID, convErr := strconv.ParseInt(pseudonymID, 10, 64); convErr == nil {
				return s.keyForRealUser(ctx, realUserID)
			}
		}
		return nil, fmt.Errorf("pseudonym lookup: %w", err)
	}
	if p.RealUserID == nil {
		s.logger.Warn("key requested for anonymized pseudonym", "pseudonym_id", pseudonymID)
		return cryptox.DeriveKey(s.master, cryptox.NewSalt(), s.iterations, s.hashFn), nil
	}

	return s.keyForRealUser(ctx, *p.RealUserID)
}

func (s *KeyService) keyForRealUser(ctx context.Context, realUserID int64) ([]byte, error) {
	rec, err := s.ensureKeyRecord(ctx, realUserID)
	if err != nil {
		return nil, err
	}

	key := cryptox.DeriveKey(s.master, rec.KeySalt, s.iterations, s.hashFn)
	if cryptox.MakeVerifier(key) != rec.KeyHash {
		return nil, common.ErrKeyVerification
	}
	return key, nil
}

// ensureKeyRecord fetches the salt record for a real user, creating it
// transactionally on first use. The create races only with itself; the
// unique constraint on real_user_id makes the loser re-read the winner's
// row.
func (s *KeyService) ensureKeyRecord(ctx context.Context, realUserID int64) (*models.EncryptionKey, error) {
	rec, err := s.rm.Keys(s.db).Find(ctx, realUserID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("key record lookup: %w", err)
	}

	salt := cryptox.NewSalt()
	key := cryptox.DeriveKey(s.master, salt, s.iterations, s.hashFn)
	created := &models.EncryptionKey{
		RealUserID: realUserID,
		KeyHash:    cryptox.MakeVerifier(key),
		KeySalt:    salt,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.rm.Keys(tx).Create(ctx, created)
		return err
	})
	if err == nil {
		return created, nil
	}

	// Lost a create race: another writer inserted the row first.
	if rec, findErr := s.rm.Keys(s.db).Find(ctx, realUserID); findErr == nil {
		return rec, nil
	}
	return nil, fmt.Errorf("key record create: %w", err)
}

// RotateSalt replaces a user's salt and verification digest. Existing
// ciphertext becomes undecryptable under the new salt; this is the erase
// primitive for key material, not a re-encryption.
func (s *KeyService) RotateSalt(ctx context.Context, realUserID int64) error {
	if len(s.master) == 0 {
		return common.ErrEncryptionUnavailable
	}
	salt := cryptox.NewSalt()
	key := cryptox.DeriveKey(s.master, salt, s.iterations, s.hashFn)
	return s.rm.Keys(s.db).Replace(ctx, realUserID, salt, cryptox.MakeVerifier(key))
}
