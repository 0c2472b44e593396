package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/llm"
	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/logging"
)

// User-facing replies for failure categories. Provider error details never
// reach the chat.
const (
	replyRateLimited = "I am receiving too many requests right now. Please try again in a minute."
	replyUnavailable = "The service is temporarily unavailable. Please try again a bit later."
	replyEmpty       = "I could not come up with a response to that. Could you try rephrasing?"
)

// pseudonymEnsurer resolves a real user id to a pseudonym, creating one on
// first contact.
type pseudonymEnsurer interface {
	EnsurePseudonym(ctx context.Context, realUserID int64) (string, error)
}

// dialogueStore is the slice of DialogueService the orchestrator needs.
type dialogueStore interface {
	Append(ctx context.Context, pseudonymID, role, text string) error
	ContextWindow(ctx context.Context, pseudonymID string) ([]llm.Message, error)
}

// actionRecorder records user activity for audit and inactivity tracking.
type actionRecorder interface {
	Insert(ctx context.Context, userID int64, actionType, content string) error
}

// actionDetailMax caps the detail stored with an action record; the full
// message text belongs to the encrypted dialogue store, not the audit log.
const actionDetailMax = 100

// consultMetrics receives orchestrator measurements; a nil recorder
// disables them.
type consultMetrics interface {
	ObserveConsultation(d time.Duration)
	LLMErrorInc(category string)
}

// ConsultService orchestrates one consultation turn: input validation,
// pseudonym resolution, context assembly, the model call, and persistence
// of both turns. Turns for the same pseudonym are serialized so stored
// history never interleaves.
type ConsultService struct {
	pseudonyms pseudonymEnsurer
	dialogue   dialogueStore
	actions    actionRecorder
	completer  llm.Completer
	metrics    consultMetrics
	logger     logging.Logger

	systemPrompt    string
	maxInputChars   int
	maxOutputChars  int
	maxOutputTokens int
	llmTimeout      time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewConsultService(pseudonyms pseudonymEnsurer, dialogue dialogueStore, actions actionRecorder,
	completer llm.Completer, cfg *config.Config, logger logging.Logger) *ConsultService {
	return &ConsultService{
		pseudonyms:      pseudonyms,
		dialogue:        dialogue,
		actions:         actions,
		completer:       completer,
		logger:          logger,
		systemPrompt:    cfg.SystemPrompt,
		maxInputChars:   cfg.MaxInputChars,
		maxOutputChars:  cfg.MaxOutputChars,
		maxOutputTokens: cfg.MaxOutputTokens,
		llmTimeout:      cfg.LLMTimeout,
		locks:           make(map[string]*sync.Mutex),
	}
}

// SetMetrics installs a measurement recorder.
func (s *ConsultService) SetMetrics(m consultMetrics) {
	s.metrics = m
}

// HandleUserMessage runs one consultation turn and returns the text to send
// back to the user. The returned string is always sendable; failure
// categories map to fixed polite replies and only unrecoverable storage
// errors surface as an error.
//
// The user's turn is persisted before the model is called, so a provider
// failure never loses what the user said. The assistant turn is persisted
// only when the model call succeeds.
func (s *ConsultService) HandleUserMessage(ctx context.Context, realUserID int64, text string) (string, error) {
	if len([]rune(text)) > s.maxInputChars {
		return fmt.Sprintf("Your message is too long. Please keep it under %d characters.", s.maxInputChars), nil
	}

	pseudonymID, err := s.pseudonyms.EnsurePseudonym(ctx, realUserID)
	if err != nil {
		return "", fmt.Errorf("resolve pseudonym: %w", err)
	}

	lock := s.lockFor(pseudonymID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	if err := s.dialogue.Append(ctx, pseudonymID, models.RoleUser, text); err != nil {
		s.recordAction(ctx, realUserID, "error", "persist user turn")
		return "", fmt.Errorf("persist user turn: %w", err)
	}

	window, err := s.dialogue.ContextWindow(ctx, pseudonymID)
	if err != nil {
		s.recordAction(ctx, realUserID, "error", "assemble context")
		return "", fmt.Errorf("assemble context: %w", err)
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	reply, err := s.completer.Complete(llmCtx, s.systemPrompt, window, s.maxOutputTokens)
	if err != nil {
		return s.replyForLLMError(ctx, realUserID, err), nil
	}

	s.recordAction(ctx, realUserID, "consultation", truncateRunes(text, actionDetailMax))

	reply = truncateRunes(reply, s.maxOutputChars)
	if err := s.dialogue.Append(ctx, pseudonymID, models.RoleAssistant, reply); err != nil {
		// The user still gets the reply; only the stored history is short
		// one turn.
		s.logger.Error("persist assistant turn failed", "error", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveConsultation(time.Since(start))
	}
	return reply, nil
}

// replyForLLMError maps a model failure category to its user-facing reply
// and records an api_error action for the turn.
func (s *ConsultService) replyForLLMError(ctx context.Context, realUserID int64, err error) string {
	category := "server"
	reply := replyUnavailable
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		category, reply = "rate_limited", replyRateLimited
	case errors.Is(err, llm.ErrMalformedResponse):
		category, reply = "malformed", replyEmpty
	case errors.Is(err, context.DeadlineExceeded):
		category = "timeout"
	}
	s.logger.Warn("llm call failed", "category", category, "error", err)
	s.recordAction(ctx, realUserID, "api_error", category)
	if s.metrics != nil {
		s.metrics.LLMErrorInc(category)
	}
	return reply
}

// recordAction writes an audit row best effort; a failed audit row must
// not block the consultation.
func (s *ConsultService) recordAction(ctx context.Context, userID int64, actionType, detail string) {
	if err := s.actions.Insert(ctx, userID, actionType, detail); err != nil {
		s.logger.Warn("action record failed", "error", err)
	}
}

// lockFor returns the mutex serializing turns for one pseudonym. The map
// grows with the number of distinct users and is never shrunk; entries are
// a mutex each.
func (s *ConsultService) lockFor(pseudonymID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[pseudonymID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[pseudonymID] = l
	}
	return l
}

// truncateRunes cuts text to at most max runes.
func truncateRunes(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max])
}
