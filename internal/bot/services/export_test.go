package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/models"
)

func exportConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.S3Bucket = "exports"
	cfg.S3AccessKey = "access"
	cfg.S3SecretKey = "secret"
	return cfg
}

// stubS3 swaps the AWS seams for the duration of one test and captures the
// uploaded payload.
func stubS3(t *testing.T, putErr, presignErr error) *[]byte {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPresignNew := newS3PresignClient
	origPut := putObject
	origPresign := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		newS3PresignClient = origPresignNew
		putObject = origPut
		presignGetObject = origPresign
	})

	var uploaded []byte
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		if putErr != nil {
			return nil, putErr
		}
		body, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		uploaded = body
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if presignErr != nil {
			return nil, presignErr
		}
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + *in.Key}, nil
	}
	return &uploaded
}

func TestExport_Success(t *testing.T) {
	uploaded := stubS3(t, nil, nil)

	rm := newFakeRepoManager()
	rm.d.all = []*models.DialogueMessage{
		{ID: 1, Role: models.RoleUser, Content: []byte("my question"), Timestamp: time.Now().Add(-time.Hour)},
		{ID: 2, Role: models.RoleAssistant, Content: []byte("my answer"), Timestamp: time.Now()},
	}
	rm.a.all = []*models.UserAction{
		{ActionType: "command", Content: "/start", CreatedAt: time.Now().Add(-2 * time.Hour)},
	}

	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := NewExportService(db, rm, &fakeCipher{}, exportConfig(), nopLogger{})

	url, err := s.Export(context.Background(), 42, "pseu-1")
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if !strings.HasPrefix(url, "https://s3.local/exports/") || !strings.HasSuffix(url, ".json") {
		t.Fatalf("unexpected url: %q", url)
	}

	var doc exportDocument
	if err := json.Unmarshal(*uploaded, &doc); err != nil {
		t.Fatalf("uploaded payload is not json: %v", err)
	}
	if len(doc.Messages) != 2 || doc.Messages[0].Text != "my question" {
		t.Fatalf("unexpected messages: %+v", doc.Messages)
	}
	if len(doc.Actions) != 1 || doc.Actions[0].Content != "/start" {
		t.Fatalf("unexpected actions: %+v", doc.Actions)
	}
}

func TestExport_UnreadableMessageGetsPlaceholder(t *testing.T) {
	uploaded := stubS3(t, nil, nil)

	rm := newFakeRepoManager()
	rm.d.all = []*models.DialogueMessage{
		{ID: 1, Role: models.RoleUser, Content: []byte("broken")},
	}
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := NewExportService(db, rm, &fakeCipher{failOpen: map[int64]bool{1: true}}, exportConfig(), nopLogger{})

	if _, err := s.Export(context.Background(), 42, "pseu-1"); err != nil {
		t.Fatalf("Export error: %v", err)
	}
	var doc exportDocument
	if err := json.Unmarshal(*uploaded, &doc); err != nil {
		t.Fatalf("uploaded payload is not json: %v", err)
	}
	if doc.Messages[0].Text != unreadablePlaceholder {
		t.Fatalf("expected placeholder, got %q", doc.Messages[0].Text)
	}
}

func TestExport_UploadError(t *testing.T) {
	stubS3(t, errors.New("upload failed"), nil)

	rm := newFakeRepoManager()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := NewExportService(db, rm, &fakeCipher{}, exportConfig(), nopLogger{})

	if _, err := s.Export(context.Background(), 42, "pseu-1"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestExport_PresignError(t *testing.T) {
	stubS3(t, nil, errors.New("presign failed"))

	rm := newFakeRepoManager()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := NewExportService(db, rm, &fakeCipher{}, exportConfig(), nopLogger{})

	if _, err := s.Export(context.Background(), 42, "pseu-1"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestExportStorageKey_Unique(t *testing.T) {
	if exportStorageKey() == exportStorageKey() {
		t.Fatal("storage keys must be unique")
	}
}
