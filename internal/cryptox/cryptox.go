// Package cryptox implements the crypto primitives of the dialogue pipeline:
// PBKDF2 key derivation from a master secret, AES-256-GCM message sealing,
// and integrity digests computed over plaintext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the derived symmetric key length in bytes (AES-256).
const KeySize = 32

// SaltSize is the per-user salt length in bytes.
const SaltSize = 16

// MinIterations is the lowest acceptable PBKDF2 iteration count; weaker
// configurations are rejected at startup.
const MinIterations = 10000

// HashFunc returns the hash constructor for a configured algorithm name.
// Supported values are "SHA256" (default) and "SHA512".
func HashFunc(name string) (func() hash.Hash, error) {
	switch name {
	case "", "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", name)
	}
}

// DeriveKey runs PBKDF2-HMAC over the master secret and salt and returns a
// KeySize-byte symmetric key. Deterministic: the same inputs always produce
// the same key, which is what makes later decryption possible without ever
// persisting the key itself.
func DeriveKey(masterSecret, salt []byte, iterations int, h func() hash.Hash) []byte {
	return pbkdf2.Key(masterSecret, salt, iterations, KeySize, h)
}

// MakeVerifier returns a digest of the derived key that is safe to persist.
// Comparing it against a freshly derived key detects master-secret rotation
// or salt corruption without storing the key.
func MakeVerifier(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// MessageDigest returns the hex SHA-256 digest of the plaintext. Stored with
// message metadata, it allows tamper detection without decrypting content.
func MessageDigest(plaintext []byte) string {
	sum := sha256.Sum256(plaintext)
	return hex.EncodeToString(sum[:])
}

// Seal encrypts plaintext with AES-256-GCM under key. A fresh random nonce
// is generated per call and returned separately from the ciphertext.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = randomBytes(aesgcm.NonceSize())
	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open decrypts an AES-256-GCM ciphertext produced by Seal. It fails when
// the key is wrong or the ciphertext/nonce have been tampered with.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}
