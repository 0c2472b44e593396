package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
	"github.com/dkurilov/counselbot/internal/bot/repositories/retentionlog"
	"github.com/dkurilov/counselbot/internal/common"
	"github.com/dkurilov/counselbot/internal/dbx"
	"github.com/dkurilov/counselbot/internal/logging"
)

// systemActor marks audit entries not tied to any one pseudonym.
const systemActor = "system"

// RetentionService applies the data lifecycle: scheduled cleanup cycles,
// user-requested erasure, and user-requested anonymization. Every
// destructive operation leaves an audit record.
type RetentionService struct {
	db  *sql.DB
	rm  repomanager.RepositoryManager
	cfg *config.Config
	log logging.Logger

	now func() time.Time

	// deletedHook receives the records-removed count per cycle; nil disables.
	deletedHook func(int64)
}

func NewRetentionService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *RetentionService {
	return &RetentionService{db: db, rm: rm, cfg: cfg, log: logger, now: time.Now}
}

// SetDeletedHook installs a counter callback receiving the number of
// records removed per cleanup cycle.
func (s *RetentionService) SetDeletedHook(fn func(int64)) {
	s.deletedHook = fn
}

// RunCycle executes one cleanup pass: anonymize users inactive beyond the
// window, expire old messages, expire old action records, and expire the
// oldest audit entries. A failing step is logged and the cycle moves on to
// the next step; a partial pass self-heals on the next run. Exactly one
// cleanup audit record is written per cycle regardless of how many steps
// removed data.
func (s *RetentionService) RunCycle(ctx context.Context) error {
	now := s.now()
	inactiveCutoff := now.AddDate(0, 0, -s.cfg.InactiveUserAnonymizationDays)
	messageCutoff := now.AddDate(0, 0, -s.cfg.MessageRetentionDays)
	logCutoff := now.AddDate(0, 0, -s.cfg.LogRetentionDays)

	var stepErrs []error
	step := func(name string, fn func() (int64, error)) int64 {
		n, err := fn()
		if err != nil {
			s.log.Error("retention step failed", "step", name, "error", err)
			stepErrs = append(stepErrs, fmt.Errorf("%s: %w", name, err))
			return 0
		}
		return n
	}

	anonymized := step("anonymize inactive", func() (int64, error) {
		return s.rm.Pseudonyms(s.db).UnlinkInactiveSince(ctx, inactiveCutoff)
	})
	expiredMessages := step("expire messages", func() (int64, error) {
		return s.rm.Dialogues(s.db).ExpireOlderThan(ctx, messageCutoff)
	})
	expiredActions := step("expire actions", func() (int64, error) {
		return s.rm.Actions(s.db).DeleteOlderThan(ctx, logCutoff)
	})
	expiredAudit := step("expire audit log", func() (int64, error) {
		return s.rm.RetentionLog(s.db).DeleteOlderThan(ctx, logCutoff)
	})

	total := anonymized + expiredMessages + expiredActions + expiredAudit
	entry := &models.RetentionLogEntry{
		PseudonymID:     systemActor,
		OperationType:   models.OpCleanup,
		RecordsAffected: int(total),
		DateRangeEnd:    &messageCutoff,
		Reason: fmt.Sprintf("scheduled cleanup: %d anonymized, %d messages, %d actions, %d audit entries",
			anonymized, expiredMessages, expiredActions, expiredAudit),
	}
	if err := s.rm.RetentionLog(s.db).Insert(ctx, entry); err != nil {
		return fmt.Errorf("audit cleanup: %w", err)
	}

	if s.deletedHook != nil {
		s.deletedHook(total)
	}
	s.log.Info("retention cycle complete",
		"anonymized", anonymized,
		"messages_expired", expiredMessages,
		"actions_expired", expiredActions,
		"audit_expired", expiredAudit)
	return errors.Join(stepErrs...)
}

// EraseUserData removes everything stored for a user: dialogue, key
// material, action records, feedback, and the pseudonym row itself. The
// whole erase runs in one transaction, with a user_request audit record
// written as part of it.
func (s *RetentionService) EraseUserData(ctx context.Context, realUserID int64) error {
	pseudonymID, err := s.resolvePseudonym(ctx, realUserID)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		messages := int64(0)
		if pseudonymID != "" {
			if messages, err = s.rm.Dialogues(tx).DeleteAllFor(ctx, pseudonymID); err != nil {
				return fmt.Errorf("erase dialogue: %w", err)
			}
		}
		actions, err := s.rm.Actions(tx).DeleteAllFor(ctx, realUserID)
		if err != nil {
			return fmt.Errorf("erase actions: %w", err)
		}
		if _, err := s.rm.Feedback(tx).DeleteAllFor(ctx, realUserID); err != nil {
			return fmt.Errorf("erase feedback: %w", err)
		}
		if err := s.rm.Keys(tx).DeleteFor(ctx, realUserID); err != nil {
			return fmt.Errorf("erase key material: %w", err)
		}
		if pseudonymID != "" {
			if err := s.rm.Pseudonyms(tx).Delete(ctx, pseudonymID); err != nil {
				return fmt.Errorf("erase pseudonym: %w", err)
			}
		}

		entry := &models.RetentionLogEntry{
			PseudonymID:     systemActor,
			OperationType:   models.OpUserRequest,
			RecordsAffected: int(messages + actions),
			Reason:          "user requested full data erasure",
		}
		if err := s.rm.RetentionLog(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("audit erasure: %w", err)
		}
		s.log.Info("user data erased", "records", messages+actions)
		return nil
	})
}

// ClearDialogue removes a pseudonym's conversation history on the user's
// request, keeping the pseudonym and key material so future messages work
// unchanged. The deletion and its audit record commit together.
func (s *RetentionService) ClearDialogue(ctx context.Context, pseudonymID string) (int64, error) {
	var deleted int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if deleted, err = s.rm.Dialogues(tx).DeleteAllFor(ctx, pseudonymID); err != nil {
			return fmt.Errorf("clear dialogue: %w", err)
		}
		entry := &models.RetentionLogEntry{
			PseudonymID:     pseudonymID,
			OperationType:   models.OpUserRequest,
			RecordsAffected: int(deleted),
			Reason:          "user requested conversation reset",
		}
		if err := s.rm.RetentionLog(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("audit reset: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("conversation reset", "records", deleted)
	return deleted, nil
}

// AnonymizeUser severs the link between a user and their dialogue history.
// The pseudonym and its messages stay, but the key record is deleted, so
// the remaining ciphertext has no recoverable key.
func (s *RetentionService) AnonymizeUser(ctx context.Context, realUserID int64) error {
	pseudonymID, err := s.resolvePseudonym(ctx, realUserID)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		unlinked, err := s.rm.Pseudonyms(tx).Unlink(ctx, realUserID)
		if err != nil {
			return fmt.Errorf("unlink pseudonym: %w", err)
		}
		if err := s.rm.Keys(tx).DeleteFor(ctx, realUserID); err != nil {
			return fmt.Errorf("delete key material: %w", err)
		}

		audited := pseudonymID
		if audited == "" {
			audited = systemActor
		}
		entry := &models.RetentionLogEntry{
			PseudonymID:     audited,
			OperationType:   models.OpAnonymization,
			RecordsAffected: int(unlinked),
			Reason:          "user requested anonymization",
		}
		if err := s.rm.RetentionLog(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("audit anonymization: %w", err)
		}
		return nil
	})
}

// Stats exposes the retention log summary for the ops endpoint.
func (s *RetentionService) Stats(ctx context.Context) (*retentionlog.Stats, error) {
	return s.rm.RetentionLog(s.db).Stats(ctx)
}

// resolvePseudonym returns the pseudonym linked to a user, or "" when none
// exists. Only genuine storage errors propagate.
func (s *RetentionService) resolvePseudonym(ctx context.Context, realUserID int64) (string, error) {
	p, err := s.rm.Pseudonyms(s.db).FindByRealUserID(ctx, realUserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("pseudonym lookup: %w", err)
	}
	return p.PseudonymID, nil
}
