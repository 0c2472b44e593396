// Package telegram is the chat transport: a long-poll loop translating
// Telegram updates into consultation, privacy, and export operations.
package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/logging"
)

// sender is the slice of *tgbotapi.BotAPI the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// consulter runs one consultation turn.
type consulter interface {
	HandleUserMessage(ctx context.Context, realUserID int64, text string) (string, error)
}

// privacyManager serves the user-facing data lifecycle commands.
type privacyManager interface {
	EraseUserData(ctx context.Context, realUserID int64) error
	AnonymizeUser(ctx context.Context, realUserID int64) error
}

// historyCleaner clears a pseudonym's dialogue with an audit record (the
// /reset command).
type historyCleaner interface {
	ClearDialogue(ctx context.Context, pseudonymID string) (int64, error)
}

// pseudonymResolver maps a user to their pseudonym without creating one.
type pseudonymResolver interface {
	Lookup(ctx context.Context, realUserID int64) (string, error)
}

// exporter builds a download link for a user's stored data.
type exporter interface {
	Export(ctx context.Context, realUserID int64, pseudonymID string) (string, error)
}

// actionLogger records command activity.
type actionLogger interface {
	Insert(ctx context.Context, userID int64, actionType, content string) error
}

// feedbackTaker stores a user's feedback note.
type feedbackTaker interface {
	Submit(ctx context.Context, userID int64, feedbackType, text, origin string) error
}

// Bot wires the Telegram API to the services. Updates are handled
// concurrently; per-user ordering is enforced further down by the
// consultation service.
type Bot struct {
	api        *tgbotapi.BotAPI
	send       sender
	consult    consulter
	privacy    privacyManager
	history    historyCleaner
	pseudonyms pseudonymResolver
	export     exporter
	actions    actionLogger
	feedback   feedbackTaker
	cfg        *config.Config
	logger     logging.Logger
}

func NewBot(api *tgbotapi.BotAPI, consult consulter, privacy privacyManager, history historyCleaner,
	pseudonyms pseudonymResolver, export exporter, actions actionLogger, feedback feedbackTaker,
	cfg *config.Config, logger logging.Logger) *Bot {
	return &Bot{
		api:        api,
		send:       api,
		consult:    consult,
		privacy:    privacy,
		history:    history,
		pseudonyms: pseudonyms,
		export:     export,
		actions:    actions,
		feedback:   feedback,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run polls for updates until ctx is canceled and all in-flight handlers
// finish.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			wg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				b.routeUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) routeUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Per-update deadline keeps one stuck handler from pinning the bot.
	handlerCtx, cancel := context.WithTimeout(ctx, b.cfg.LLMTimeout+30*time.Second)
	defer cancel()

	switch {
	case upd.Message != nil:
		b.handleMessage(handlerCtx, upd.Message)
	case upd.CallbackQuery != nil:
		b.handleCallback(handlerCtx, upd.CallbackQuery)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.send.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("send failed", "error", err)
	}
}
