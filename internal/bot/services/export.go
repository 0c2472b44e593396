package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dkurilov/counselbot/internal/bot/config"
	"github.com/dkurilov/counselbot/internal/bot/repositories/repomanager"
	"github.com/dkurilov/counselbot/internal/logging"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// exportedMessage is one decrypted dialogue turn in the export document.
type exportedMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// exportedAction is one activity record in the export document.
type exportedAction struct {
	ActionType string    `json:"action_type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// exportDocument is the JSON payload a user receives on /export.
type exportDocument struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Messages    []exportedMessage `json:"messages"`
	Actions     []exportedAction  `json:"actions"`
}

// ExportService assembles a user's stored data into a JSON document,
// uploads it to S3-compatible storage, and returns a short-lived download
// link.
type ExportService struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	cipher messageOpener
	cfg    *config.Config
	logger logging.Logger
}

func NewExportService(db *sql.DB, rm repomanager.RepositoryManager, cipher messageOpener, cfg *config.Config, logger logging.Logger) *ExportService {
	return &ExportService{db: db, rm: rm, cipher: cipher, cfg: cfg, logger: logger}
}

// exportStorageKey places each export under a dated prefix with a random
// name, so links are unguessable.
func exportStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("exports/%d/%d/%d/%v.json", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) s3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.S3AccessKey,
			s.cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}
	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.S3BaseEndpoint)
		}
	}), nil
}

// Export builds the export document for a user, uploads it, and returns a
// presigned download URL valid for 15 minutes. Messages that cannot be
// decrypted appear with a placeholder rather than aborting the export.
func (s *ExportService) Export(ctx context.Context, realUserID int64, pseudonymID string) (string, error) {
	doc := exportDocument{GeneratedAt: time.Now().UTC()}

	stored, err := s.rm.Dialogues(s.db).AllByPseudonym(ctx, pseudonymID)
	if err != nil {
		return "", fmt.Errorf("export dialogue: %w", err)
	}
	for _, m := range stored {
		text, err := s.cipher.OpenMessage(ctx, m)
		if err != nil {
			s.logger.Warn("unreadable message in export", "message_id", m.ID, "error", err)
			text = unreadablePlaceholder
		}
		doc.Messages = append(doc.Messages, exportedMessage{Role: m.Role, Text: text, Timestamp: m.Timestamp})
	}

	acts, err := s.rm.Actions(s.db).AllFor(ctx, realUserID)
	if err != nil {
		return "", fmt.Errorf("export actions: %w", err)
	}
	for _, a := range acts {
		doc.Actions = append(doc.Actions, exportedAction{ActionType: a.ActionType, Content: a.Content, CreatedAt: a.CreatedAt})
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export encode: %w", err)
	}

	client, err := s.s3Client()
	if err != nil {
		return "", fmt.Errorf("export storage: %w", err)
	}

	bucket := s.cfg.S3Bucket
	key := exportStorageKey()
	contentType := "application/json"
	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(payload),
		ContentType: &contentType,
	}); err != nil {
		return "", fmt.Errorf("export upload: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("export presign: %w", err)
	}
	return req.URL, nil
}
