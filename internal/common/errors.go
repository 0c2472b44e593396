// Package common defines shared constants and sentinel errors used across
// the bot's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Crypto pipeline errors.
	ErrEncryptionUnavailable = errors.New("encryption unavailable")
	ErrDecryptionFailed      = errors.New("decryption failed")
	ErrKeyVerification       = errors.New("key verification failed")

	// Orchestrator-level errors.
	ErrMessageTooLong = errors.New("message too long")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
)
