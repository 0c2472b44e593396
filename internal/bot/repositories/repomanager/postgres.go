// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurilov/counselbot/internal/bot/migrations"
	"github.com/dkurilov/counselbot/internal/bot/repositories/actions"
	"github.com/dkurilov/counselbot/internal/bot/repositories/dialogues"
	"github.com/dkurilov/counselbot/internal/bot/repositories/feedback"
	"github.com/dkurilov/counselbot/internal/bot/repositories/keys"
	"github.com/dkurilov/counselbot/internal/bot/repositories/pseudonyms"
	"github.com/dkurilov/counselbot/internal/bot/repositories/retentionlog"
	"github.com/dkurilov/counselbot/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Pseudonyms returns a pseudonyms.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Pseudonyms(db dbx.DBTX) pseudonyms.Repository {
	return pseudonyms.NewPostgresRepository(db)
}

// Keys returns a keys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Keys(db dbx.DBTX) keys.Repository {
	return keys.NewPostgresRepository(db)
}

// Dialogues returns a dialogues.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Dialogues(db dbx.DBTX) dialogues.Repository {
	return dialogues.NewPostgresRepository(db)
}

// Actions returns an actions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Actions(db dbx.DBTX) actions.Repository {
	return actions.NewPostgresRepository(db)
}

// Feedback returns a feedback.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Feedback(db dbx.DBTX) feedback.Repository {
	return feedback.NewPostgresRepository(db)
}

// RetentionLog returns a retentionlog.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RetentionLog(db dbx.DBTX) retentionlog.Repository {
	return retentionlog.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
