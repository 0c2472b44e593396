package cryptox

import "crypto/rand"

// NewSalt returns a fresh random per-user salt.
func NewSalt() []byte {
	return randomBytes(SaltSize)
}

func randomBytes(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
