// Package services contains the bot's business logic: pseudonym issuing,
// key derivation, message sealing, dialogue assembly, retention, data
// export, and the consultation orchestrator tying them together.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
	"github.com/dkurilov/counselbot/internal/common"
	"github.com/dkurilov/counselbot/internal/logging"
	"github.com/google/uuid"
)

// PseudonymService issues and resolves stable opaque identifiers for real
// user ids. With pseudonymization disabled it degrades to a pass-through
// mapping so the rest of the pipeline never sees the difference.
type PseudonymService struct {
	db      *sql.DB
	rm      repomanager.RepositoryManager
	enabled bool
	logger  logging.Logger
}

func NewPseudonymService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *PseudonymService {
	return &PseudonymService{db: db, rm: rm, enabled: cfg.EnablePseudonymization, logger: logger}
}

// EnsurePseudonym returns the pseudonym for a real user id, creating one on
// first contact. Storage failures propagate; a raw id never leaks into the
// dialogue store as a fallback.
func (s *PseudonymService) EnsurePseudonym(ctx context.Context, realUserID int64) (string, error) {
	if !s.enabled {
		return strconv.FormatInt(realUserID, 10), nil
	}

	repo := s.rm.Pseudonyms(s.db)
	p, err := repo.FindByRealUserID(ctx, realUserID)
	if err == nil {
		return p.PseudonymID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("pseudonym lookup: %w", err)
	}

	pseudonymID := uuid.NewString()
	if _, err := repo.Create(ctx, realUserID, pseudonymID); err != nil {
		// Lost a create race with a concurrent first message; the unique
		// index on real_user_id makes the loser re-read the winner's row.
		if p, findErr := repo.FindByRealUserID(ctx, realUserID); findErr == nil {
			return p.PseudonymID, nil
		}
		return "", fmt.Errorf("pseudonym create: %w", err)
	}
	s.logger.Info("pseudonym issued", "pseudonym_id", pseudonymID)
	return pseudonymID, nil
}

// Lookup returns the pseudonym for a user without creating one.
func (s *PseudonymService) Lookup(ctx context.Context, realUserID int64) (string, error) {
	if !s.enabled {
		return strconv.FormatInt(realUserID, 10), nil
	}
	p, err := s.rm.Pseudonyms(s.db).FindByRealUserID(ctx, realUserID)
	if err != nil {
		return "", err
	}
	return p.PseudonymID, nil
}

// Unlink severs the real-id linkage while keeping the pseudonym and its
// history. Returns the number of pseudonyms unlinked (0 or 1).
func (s *PseudonymService) Unlink(ctx context.Context, realUserID int64) (int64, error) {
	if !s.enabled {
		return 0, nil
	}
	return s.rm.Pseudonyms(s.db).Unlink(ctx, realUserID)
}
