package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "vocacrm credential store v1"

var errSealedRecordTooShort = errors.New("sealed record too short")

// sealer encrypts the stored record with XChaCha20-Poly1305. The key is
// derived from a user supplied secret with HKDF-SHA256. Record layout is
// nonce || ciphertext.
type sealer struct {
	key []byte
}

func newSealer(secret string) *sealer {
	key := make([]byte, chacha20poly1305.KeySize)
	// HKDF-SHA256 can produce up to 255*32 bytes; reading 32 cannot fail.
	_, _ = io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo)), key)
	return &sealer{key: key}
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(sealInfo)), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errSealedRecordTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, []byte(sealInfo))
}
