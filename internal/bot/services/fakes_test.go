package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkurilov/counselbot/internal/bot/models"
	actionsrepo "github.com/dkurilov/counselbot/internal/bot/repositories/actions"
	dialoguesrepo "github.com/dkurilov/counselbot/internal/bot/repositories/dialogues"
	feedbackrepo "github.com/dkurilov/counselbot/internal/bot/repositories/feedback"
	keysrepo "github.com/dkurilov/counselbot/internal/bot/repositories/keys"
	pseudonymsrepo "github.com/dkurilov/counselbot/internal/bot/repositories/pseudonyms"
	retentionlogrepo "github.com/dkurilov/counselbot/internal/bot/repositories/retentionlog"
	"github.com/dkurilov/counselbot/internal/dbx"
	"github.com/dkurilov/counselbot/internal/logging"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any)      {}
func (nopLogger) Info(msg string, args ...any)       {}
func (nopLogger) Warn(msg string, args ...any)       {}
func (nopLogger) Error(msg string, args ...any)      {}
func (l nopLogger) With(args ...any) logging.Logger  { return l }

// --- fake repositories ---

type fakePseudonymsRepo struct {
	byReal        *models.Pseudonym
	byRealErr     error
	byRealErrOnce error
	byPseu        *models.Pseudonym
	byPseuErr     error

	created     []string
	createErr   error
	unlinked    []int64
	unlinkN     int64
	unlinkErr   error
	inactiveN   int64
	inactiveErr error
	deleted     []string
	deleteErr   error
}

func (f *fakePseudonymsRepo) FindByRealUserID(ctx context.Context, realUserID int64) (*models.Pseudonym, error) {
	if f.byRealErrOnce != nil {
		err := f.byRealErrOnce
		f.byRealErrOnce = nil
		return nil, err
	}
	if f.byRealErr != nil {
		return nil, f.byRealErr
	}
	return f.byReal, nil
}
func (f *fakePseudonymsRepo) FindByPseudonymID(ctx context.Context, pseudonymID string) (*models.Pseudonym, error) {
	if f.byPseuErr != nil {
		return nil, f.byPseuErr
	}
	return f.byPseu, nil
}
func (f *fakePseudonymsRepo) Create(ctx context.Context, realUserID int64, pseudonymID string) (*models.Pseudonym, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, pseudonymID)
	return &models.Pseudonym{RealUserID: &realUserID, PseudonymID: pseudonymID}, nil
}
func (f *fakePseudonymsRepo) Unlink(ctx context.Context, realUserID int64) (int64, error) {
	if f.unlinkErr != nil {
		return 0, f.unlinkErr
	}
	f.unlinked = append(f.unlinked, realUserID)
	return f.unlinkN, nil
}
func (f *fakePseudonymsRepo) UnlinkInactiveSince(ctx context.Context, threshold time.Time) (int64, error) {
	return f.inactiveN, f.inactiveErr
}
func (f *fakePseudonymsRepo) Delete(ctx context.Context, pseudonymID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, pseudonymID)
	return nil
}

type fakeKeysRepo struct {
	findOut *models.EncryptionKey
	findErr error

	created    []*models.EncryptionKey
	createErr  error
	replaceErr error
	deletedFor []int64
	deleteErr  error
}

func (f *fakeKeysRepo) Find(ctx context.Context, realUserID int64) (*models.EncryptionKey, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}
func (f *fakeKeysRepo) Create(ctx context.Context, key *models.EncryptionKey) (*models.EncryptionKey, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, key)
	return key, nil
}
func (f *fakeKeysRepo) Replace(ctx context.Context, realUserID int64, keySalt []byte, keyHash string) error {
	return f.replaceErr
}
func (f *fakeKeysRepo) DeleteFor(ctx context.Context, realUserID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedFor = append(f.deletedFor, realUserID)
	return nil
}

type fakeDialoguesRepo struct {
	inserted  []*models.DialogueMessage
	insertErr error

	recent    []*models.DialogueMessage
	recentErr error
	all       []*models.DialogueMessage
	allErr    error

	deletedOlder   int64
	deletedAll     int64
	deletedAllFor  []string
	expired        int64
	expireErr      error
	deleteOlderErr error
	deleteAllErr   error
}

func (f *fakeDialoguesRepo) Insert(ctx context.Context, msg *models.DialogueMessage) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, msg)
	return int64(len(f.inserted)), nil
}
func (f *fakeDialoguesRepo) RecentByPseudonym(ctx context.Context, pseudonymID string, limit int) ([]*models.DialogueMessage, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.recent, nil
}
func (f *fakeDialoguesRepo) AllByPseudonym(ctx context.Context, pseudonymID string) ([]*models.DialogueMessage, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.all, nil
}
func (f *fakeDialoguesRepo) DeleteOlderThan(ctx context.Context, pseudonymID string, cutoff time.Time) (int64, error) {
	return f.deletedOlder, f.deleteOlderErr
}
func (f *fakeDialoguesRepo) DeleteAllFor(ctx context.Context, pseudonymID string) (int64, error) {
	if f.deleteAllErr != nil {
		return 0, f.deleteAllErr
	}
	f.deletedAllFor = append(f.deletedAllFor, pseudonymID)
	return f.deletedAll, nil
}
func (f *fakeDialoguesRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.expired, f.expireErr
}

type fakeActionsRepo struct {
	inserted  []string
	insertErr error

	all    []*models.UserAction
	allErr error

	deletedOlder    int64
	deletedOlderFor []time.Time
	deleteOlderErr  error
	deletedFor      []int64
	deletedForN     int64
	deleteAllErr    error
}

func (f *fakeActionsRepo) Insert(ctx context.Context, userID int64, actionType, content string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, actionType+":"+content)
	return nil
}
func (f *fakeActionsRepo) AllFor(ctx context.Context, userID int64) ([]*models.UserAction, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.all, nil
}
func (f *fakeActionsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteOlderErr != nil {
		return 0, f.deleteOlderErr
	}
	f.deletedOlderFor = append(f.deletedOlderFor, cutoff)
	return f.deletedOlder, nil
}
func (f *fakeActionsRepo) DeleteAllFor(ctx context.Context, userID int64) (int64, error) {
	if f.deleteAllErr != nil {
		return 0, f.deleteAllErr
	}
	f.deletedFor = append(f.deletedFor, userID)
	return f.deletedForN, nil
}

type fakeFeedbackRepo struct {
	inserted  []*models.Feedback
	insertErr error
	deletedN  int64
	deleteErr error
}

func (f *fakeFeedbackRepo) Insert(ctx context.Context, fb *models.Feedback) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, fb)
	return nil
}
func (f *fakeFeedbackRepo) DeleteAllFor(ctx context.Context, userID int64) (int64, error) {
	return f.deletedN, f.deleteErr
}

type fakeRetentionLogRepo struct {
	entries   []*models.RetentionLogEntry
	insertErr error

	deletedN  int64
	deleteErr error

	stats    *retentionlogrepo.Stats
	statsErr error
}

func (f *fakeRetentionLogRepo) Insert(ctx context.Context, entry *models.RetentionLogEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeRetentionLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.deletedN, f.deleteErr
}
func (f *fakeRetentionLogRepo) Stats(ctx context.Context) (*retentionlogrepo.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

// --- fake repository manager ---

type fakeRepoManager struct {
	p  *fakePseudonymsRepo
	k  *fakeKeysRepo
	d  *fakeDialoguesRepo
	a  *fakeActionsRepo
	fb *fakeFeedbackRepo
	rl *fakeRetentionLogRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		p:  &fakePseudonymsRepo{},
		k:  &fakeKeysRepo{},
		d:  &fakeDialoguesRepo{},
		a:  &fakeActionsRepo{},
		fb: &fakeFeedbackRepo{},
		rl: &fakeRetentionLogRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Pseudonyms(db dbx.DBTX) pseudonymsrepo.Repository {
	return m.p
}
func (m *fakeRepoManager) Keys(db dbx.DBTX) keysrepo.Repository           { return m.k }
func (m *fakeRepoManager) Dialogues(db dbx.DBTX) dialoguesrepo.Repository { return m.d }
func (m *fakeRepoManager) Actions(db dbx.DBTX) actionsrepo.Repository     { return m.a }
func (m *fakeRepoManager) Feedback(db dbx.DBTX) feedbackrepo.Repository   { return m.fb }
func (m *fakeRepoManager) RetentionLog(db dbx.DBTX) retentionlogrepo.Repository {
	return m.rl
}
