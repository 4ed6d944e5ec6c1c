package secretstore

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Envelope performs symmetric encryption of payloads before they leave the
// process for the backend store, so the backend never observes cleartext.
type Envelope struct {
	aead cipher.AEAD
}

// NewEnvelope builds an Envelope from a 32-byte key.
func NewEnvelope(key []byte) (*Envelope, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("secretstore: invalid envelope key: %w", err)
	}
	return &Envelope{aead: aead}, nil
}

// Seal encrypts plaintext, prefixing the nonce onto the returned ciphertext.
func (e *Envelope) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secretstore: generating nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a ciphertext produced by Seal.
func (e *Envelope) Open(ciphertext []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, fmt.Errorf("secretstore: ciphertext too short")
	}
	nonce, body := ciphertext[:n], ciphertext[n:]
	plaintext, err := e.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("secretstore: decrypting payload: %w", err)
	}
	return plaintext, nil
}
