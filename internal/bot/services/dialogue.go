package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/llm"
	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
	"github.com/dkurilov/counselbot/internal/dbx"
	"github.com/dkurilov/counselbot/internal/logging"
)

// unreadablePlaceholder stands in for a message whose content cannot be
// recovered. The turn stays in the context window so the conversation shape
// survives a single bad row.
const unreadablePlaceholder = "[message unavailable]"

// messageOpener is the slice of CipherService the dialogue store needs.
type messageOpener interface {
	SealMessage(ctx context.Context, pseudonymID, role, text string) (*models.DialogueMessage, error)
	OpenMessage(ctx context.Context, msg *models.DialogueMessage) (string, error)
}

// DialogueService persists conversation turns and assembles the bounded
// context window handed to the model.
type DialogueService struct {
	db          *sql.DB
	rm          repomanager.RepositoryManager
	cipher      messageOpener
	maxMessages int
	maxTokens   int
	logger      logging.Logger

	// decryptionFailures is bumped per unreadable row; nil disables.
	decryptionFailures func()
}

func NewDialogueService(db *sql.DB, rm repomanager.RepositoryManager, cipher messageOpener, cfg *config.Config, logger logging.Logger) *DialogueService {
	return &DialogueService{
		db:          db,
		rm:          rm,
		cipher:      cipher,
		maxMessages: cfg.MaxContextMessages,
		maxTokens:   cfg.MaxContextTokens,
		logger:      logger,
	}
}

// SetDecryptionFailureHook installs a counter callback invoked per
// unreadable row.
func (s *DialogueService) SetDecryptionFailureHook(fn func()) {
	s.decryptionFailures = fn
}

// Append seals one turn and writes its content and metadata rows in a
// single transaction. Either both halves land or neither does.
func (s *DialogueService) Append(ctx context.Context, pseudonymID, role, text string) error {
	msg, err := s.cipher.SealMessage(ctx, pseudonymID, role, text)
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.rm.Dialogues(tx).Insert(ctx, msg)
		return err
	})
}

// ContextWindow returns the recent conversation in chronological order,
// decrypted and trimmed to the token budget. Rows that fail to decrypt are
// replaced with a placeholder instead of failing the whole window.
func (s *DialogueService) ContextWindow(ctx context.Context, pseudonymID string) ([]llm.Message, error) {
	stored, err := s.rm.Dialogues(s.db).RecentByPseudonym(ctx, pseudonymID, s.maxMessages)
	if err != nil {
		return nil, fmt.Errorf("dialogue fetch: %w", err)
	}

	// stored is newest first; build chronological order by walking backwards.
	window := make([]llm.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		text, err := s.cipher.OpenMessage(ctx, stored[i])
		if err != nil {
			s.logger.Warn("unreadable dialogue message",
				"pseudonym_id", pseudonymID, "message_id", stored[i].ID, "error", err)
			if s.decryptionFailures != nil {
				s.decryptionFailures()
			}
			text = unreadablePlaceholder
		}
		window = append(window, llm.Message{Role: stored[i].Role, Content: text})
	}

	return trimToBudget(window, s.maxTokens), nil
}

// trimToBudget drops whole messages from the oldest end until the estimated
// token total fits the budget. The newest message is always kept.
func trimToBudget(window []llm.Message, budget int) []llm.Message {
	total := 0
	for _, m := range window {
		total += estimateTokens(m.Content)
	}
	start := 0
	for total > budget && start < len(window)-1 {
		total -= estimateTokens(window[start].Content)
		start++
	}
	return window[start:]
}

// estimateTokens approximates the token count of a text as chars/4. The
// heuristic only has to be stable and monotone for trimming to behave.
func estimateTokens(text string) int {
	return len([]rune(text)) / 4
}

// DeleteOlderThan removes one pseudonym's messages strictly older than
// cutoff.
func (s *DialogueService) DeleteOlderThan(ctx context.Context, pseudonymID string, cutoff time.Time) (int64, error) {
	return s.rm.Dialogues(s.db).DeleteOlderThan(ctx, pseudonymID, cutoff)
}

// DeleteAllFor removes every message stored under a pseudonym.
func (s *DialogueService) DeleteAllFor(ctx context.Context, pseudonymID string) (int64, error) {
	return s.rm.Dialogues(s.db).DeleteAllFor(ctx, pseudonymID)
}
