// Package vault seals session and credential blobs with AES-256-GCM.
// Each account owns its own key; a blob sealed under one key is garbage
// under any other.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Key is a base64-encoded 256-bit AES key. It is stored next to the
// account row and treated as an opaque handle everywhere else.
type Key string

const nonceSize = 12

// ErrIntegrity is returned by Open when a blob fails authentication,
// which covers tampering, truncation and wrong-key decryption alike.
// Callers must treat it as "no usable blob", never as a crash.
var ErrIntegrity = fmt.Errorf("vault: blob failed authentication")

func GenerateKey() (Key, error) {
	raw := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, raw)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return Key(base64.StdEncoding.EncodeToString(raw)), nil
}

func newAead(key Key) (cipher.AEAD, error) {
	raw, err := base64.StdEncoding.DecodeString(string(key))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// Seal encrypts plaintext under key with a fresh random nonce. The nonce
// is prepended to the ciphertext so Open is self-describing.
func Seal(plaintext []byte, key Key) (string, error) {
	aead, err := newAead(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	_, err = io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal. Any failure past key decoding
// wraps ErrIntegrity: corrupted plaintext is never returned.
func Open(blob string, key Key) ([]byte, error) {
	aead, err := newAead(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}

	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("%w: blob too short", ErrIntegrity)
	}

	plaintext, err := aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return plaintext, nil
}
