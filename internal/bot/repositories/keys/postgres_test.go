package keys

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	salt := []byte("0123456789abcdef")
	rows := sqlmock.NewRows([]string{"id", "real_user_id", "key_hash", "key_salt", "created_at", "updated_at"}).
		AddRow(int64(1), int64(42), "deadbeef", salt, now, now)
	mock.ExpectQuery(`(?s)SELECT.*FROM user_encryption_keys\s+WHERE real_user_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	k, err := repo.Find(context.Background(), 42)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if k.KeyHash != "deadbeef" || string(k.KeySalt) != string(salt) {
		t.Fatalf("unexpected key record: %+v", k)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM user_encryption_keys`).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), 7)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now)
	mock.ExpectQuery(`INSERT INTO user_encryption_keys \(real_user_id, key_hash, key_salt\)`).
		WithArgs(int64(42), "hash", []byte("salt")).
		WillReturnRows(rows)

	k := &models.EncryptionKey{RealUserID: 42, KeyHash: "hash", KeySalt: []byte("salt")}
	got, err := repo.Create(context.Background(), k)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 5 {
		t.Fatalf("expected id 5, got %d", got.ID)
	}
}

func TestReplace_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE user_encryption_keys\s+SET key_salt = \$2, key_hash = \$3`).
		WithArgs(int64(42), []byte("newsalt"), "newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Replace(context.Background(), 42, []byte("newsalt"), "newhash"); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
}

func TestReplace_NoRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE user_encryption_keys`).
		WithArgs(int64(42), []byte("s"), "h").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Replace(context.Background(), 42, []byte("s"), "h")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestDeleteFor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM user_encryption_keys WHERE real_user_id = \$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteFor(context.Background(), 42); err != nil {
		t.Fatalf("DeleteFor error: %v", err)
	}
}
