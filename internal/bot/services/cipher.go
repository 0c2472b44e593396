package services

import (
	"context"
	"fmt"

	"github.com/dkurilov/counselbot/internal/bot/models"
	"github.com/dkurilov/counselbot/internal/common"
	"github.com/dkurilov/counselbot/internal/cryptox"
)

// keyProvider is the slice of KeyService the cipher needs.
type keyProvider interface {
	KeyFor(ctx context.Context, pseudonymID string) ([]byte, error)
}

// CipherService turns message text into storage rows and back. When
// encryption is disabled rows carry plaintext with Encrypted=false; the
// digest is computed over plaintext either way.
type CipherService struct {
	keys    keyProvider
	encrypt bool
}

func NewCipherService(keys keyProvider, encrypt bool) *CipherService {
	return &CipherService{keys: keys, encrypt: encrypt}
}

// SealMessage builds a DialogueMessage for one turn of conversation.
func (s *CipherService) SealMessage(ctx context.Context, pseudonymID, role, text string) (*models.DialogueMessage, error) {
	plaintext := []byte(text)
	msg := &models.DialogueMessage{
		PseudonymID: pseudonymID,
		Role:        role,
		MessageHash: cryptox.MessageDigest(plaintext),
	}

	if !s.encrypt {
		msg.Content = plaintext
		msg.Encrypted = false
		return msg, nil
	}

	key, err := s.keys.KeyFor(ctx, pseudonymID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ciphertext, nonce, err := cryptox.Seal(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	msg.Content = ciphertext
	msg.Nonce = nonce
	msg.Encrypted = true
	return msg, nil
}

// OpenMessage recovers the text of a stored message. Rows written in
// plaintext mode pass through untouched regardless of the current mode.
// Any failure to recover an encrypted row reports ErrDecryptionFailed so
// callers can isolate the one message instead of failing the dialogue.
func (s *CipherService) OpenMessage(ctx context.Context, msg *models.DialogueMessage) (string, error) {
	if !msg.Encrypted {
		return string(msg.Content), nil
	}

	key, err := s.keys.KeyFor(ctx, msg.PseudonymID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.Open(msg.Content, msg.Nonce, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
