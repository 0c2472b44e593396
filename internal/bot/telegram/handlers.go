package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkurilov/counselbot/internal/common"
)

// Callback payloads for the /deletedata confirmation keyboard.
const (
	cbEraseConfirm     = "delete:erase"
	cbAnonymizeConfirm = "delete:anonymize"
	cbCancel           = "delete:cancel"
)

const helpText = `I am a consultation assistant. Just write me a message and I will answer.

Commands:
/reset - clear our conversation history
/deletedata - delete or anonymize everything stored about you
/export - get a download link with your stored data
/feedback <text> - tell the developers what works and what does not
/help - this message

Your messages are stored encrypted under a pseudonym and old data is deleted automatically.`

const startText = `Hello! I am here to listen and help you think things through.

Write me what is on your mind. Use /help to see what else I can do.`

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.logAction(ctx, userID, "command", "/"+msg.Command())
		switch msg.Command() {
		case "start":
			b.reply(chatID, startText)
		case "help":
			b.reply(chatID, helpText)
		case "reset":
			b.handleReset(ctx, userID, chatID)
		case "deletedata":
			b.handleDeleteData(chatID)
		case "export":
			b.handleExport(ctx, userID, chatID)
		case "feedback":
			b.handleFeedback(ctx, userID, chatID, msg.CommandArguments())
		default:
			b.reply(chatID, "I do not know that command. Try /help.")
		}
		return
	}

	if msg.Text == "" {
		b.reply(chatID, "I can only work with text messages for now.")
		return
	}

	reply, err := b.consult.HandleUserMessage(ctx, userID, msg.Text)
	if err != nil {
		b.logger.Error("consultation failed", "error", err)
		b.reply(chatID, "Something went wrong on my side. Please try again.")
		return
	}
	b.reply(chatID, reply)
}

func (b *Bot) handleReset(ctx context.Context, userID, chatID int64) {
	pseudonymID, err := b.pseudonyms.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			b.reply(chatID, "There is no conversation history to clear yet.")
			return
		}
		b.logger.Error("reset lookup failed", "error", err)
		b.reply(chatID, "Could not clear the history right now. Please try again.")
		return
	}
	if _, err := b.history.ClearDialogue(ctx, pseudonymID); err != nil {
		b.logger.Error("reset failed", "error", err)
		b.reply(chatID, "Could not clear the history right now. Please try again.")
		return
	}
	b.logAction(ctx, userID, "conversation_reset", "history cleared")
	b.reply(chatID, "Done. Our conversation history is cleared; we can start fresh.")
}

func (b *Bot) handleDeleteData(chatID int64) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Delete everything", cbEraseConfirm),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Anonymize (keep nothing linkable)", cbAnonymizeConfirm),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel),
		),
	)
	m := tgbotapi.NewMessage(chatID, `What should happen with your stored data?

"Delete everything" removes all of it permanently.
"Anonymize" keeps the dialogue but severs any link to you, making it unreadable.`)
	m.ReplyMarkup = kb
	if _, err := b.send.Send(m); err != nil {
		b.logger.Error("send failed", "error", err)
	}
}

func (b *Bot) handleExport(ctx context.Context, userID, chatID int64) {
	if !b.cfg.ExportEnabled() {
		b.reply(chatID, "Data export is not available on this bot.")
		return
	}
	pseudonymID, err := b.pseudonyms.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			b.reply(chatID, "There is no stored data to export yet.")
			return
		}
		b.logger.Error("export lookup failed", "error", err)
		b.reply(chatID, "Could not prepare the export right now. Please try again.")
		return
	}
	url, err := b.export.Export(ctx, userID, pseudonymID)
	if err != nil {
		b.logger.Error("export failed", "error", err)
		b.reply(chatID, "Could not prepare the export right now. Please try again.")
		return
	}
	b.logAction(ctx, userID, "data_export", "download link issued")
	b.reply(chatID, "Here is your data: "+url+"\nThe link is valid for 15 minutes.")
}

func (b *Bot) handleFeedback(ctx context.Context, userID, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		b.reply(chatID, "Write your feedback right after the command, like this:\n/feedback the answers are too long")
		return
	}
	if err := b.feedback.Submit(ctx, userID, "general", text, "telegram"); err != nil {
		b.logger.Error("feedback submit failed", "error", err)
		b.reply(chatID, "Could not save the feedback right now. Please try again.")
		return
	}
	b.reply(chatID, "Thank you, your feedback is saved.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID

	// acknowledge the tap so the client stops its spinner
	if _, err := b.send.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", "error", err)
	}

	// Message is nil for callbacks on messages older than 48 hours and for
	// inline-mode callbacks; there is no chat to act in.
	if cb.Message == nil {
		b.logger.Warn("callback without message", "data", cb.Data)
		return
	}
	chatID := cb.Message.Chat.ID

	switch cb.Data {
	case cbEraseConfirm:
		b.logAction(ctx, userID, "command", "deletedata:erase")
		if err := b.privacy.EraseUserData(ctx, userID); err != nil {
			b.logger.Error("erase failed", "error", err)
			b.reply(chatID, "Could not delete the data right now. Please try again.")
			return
		}
		b.reply(chatID, "All of your data has been deleted.")
	case cbAnonymizeConfirm:
		b.logAction(ctx, userID, "command", "deletedata:anonymize")
		if err := b.privacy.AnonymizeUser(ctx, userID); err != nil {
			b.logger.Error("anonymize failed", "error", err)
			b.reply(chatID, "Could not anonymize the data right now. Please try again.")
			return
		}
		b.reply(chatID, "Your data has been anonymized; nothing links it to you anymore.")
	case cbCancel:
		b.reply(chatID, "Nothing was changed.")
	default:
		b.logger.Warn("unknown callback", "data", cb.Data)
	}
}

// logAction records activity best effort.
func (b *Bot) logAction(ctx context.Context, userID int64, actionType, content string) {
	if err := b.actions.Insert(ctx, userID, actionType, content); err != nil {
		b.logger.Warn("action record failed", "error", err)
	}
}
