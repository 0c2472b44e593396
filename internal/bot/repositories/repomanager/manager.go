package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurilov/counselbot/internal/bot/repositories/actions"
	"github.com/dkurilov/counselbot/internal/bot/repositories/dialogues"
	"github.com/dkurilov/counselbot/internal/bot/repositories/feedback"
	"github.com/dkurilov/counselbot/internal/bot/repositories/keys"
	"github.com/dkurilov/counselbot/internal/bot/repositories/pseudonyms"
	"github.com/dkurilov/counselbot/internal/bot/repositories/retentionlog"
	"github.com/dkurilov/counselbot/internal/dbx"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Pseudonyms(db dbx.DBTX) pseudonyms.Repository
	Keys(db dbx.DBTX) keys.Repository
	Dialogues(db dbx.DBTX) dialogues.Repository
	Actions(db dbx.DBTX) actions.Repository
	Feedback(db dbx.DBTX) feedback.Repository
	RetentionLog(db dbx.DBTX) retentionlog.Repository
}
