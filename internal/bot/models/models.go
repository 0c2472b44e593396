// Package models defines the persisted entities of the dialogue pipeline.
package models

import "time"

// Conversation roles. The store does not enforce alternation; ordering is
// always by timestamp.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Retention log operation types.
const (
	OpCleanup       = "cleanup"
	OpUserRequest   = "user_request"
	OpExpiration    = "expiration"
	OpAnonymization = "anonymization"
)

// Pseudonym maps a real user identifier to a stable opaque identifier.
// RealUserID is nil after anonymization; the pseudonym itself is immutable
// once issued and survives unlinking.
type Pseudonym struct {
	ID          int64
	RealUserID  *int64
	PseudonymID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EncryptionKey stores the salt and a verification digest for a user's
// derived key. The symmetric key itself is never persisted.
type EncryptionKey struct {
	ID         int64
	RealUserID int64
	KeyHash    string
	KeySalt    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DialogueMessage is one stored message: metadata joined with its 1:1
// content row. Content holds ciphertext when Encrypted is true, otherwise
// raw plaintext bytes.
type DialogueMessage struct {
	ID          int64
	PseudonymID string
	Role        string
	MessageHash string
	Timestamp   time.Time

	ContentID int64
	Content   []byte
	Nonce     []byte
	Encrypted bool
}

// RetentionLogEntry is one append-only audit record of a data lifecycle
// operation.
type RetentionLogEntry struct {
	ID              int64
	PseudonymID     string
	OperationType   string
	RecordsAffected int
	DateRangeStart  *time.Time
	DateRangeEnd    *time.Time
	OperationDate   time.Time
	Reason          string
}

// UserAction is a lightweight activity record used both for audit and for
// the inactivity calculation during anonymization.
type UserAction struct {
	ID         int64
	UserID     int64
	ActionType string
	Content    string
	CreatedAt  time.Time
}

// Feedback is a user-submitted feedback row; deleted during full erasure.
type Feedback struct {
	ID           int64
	UserID       int64
	FeedbackType string
	FeedbackText string
	Context      string
	FeedbackDate time.Time
}
