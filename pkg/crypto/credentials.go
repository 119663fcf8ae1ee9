// Package crypto seals stored connection strings.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when ciphertext is malformed, was sealed
	// under another key, or was sealed for a different connection id.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// CredentialEncryptor provides AES-256-GCM sealing of connection strings.
// Each ciphertext is bound to its connection id via GCM additional data,
// so a stored secret cannot be swapped onto another row.
type CredentialEncryptor struct {
	gcm         cipher.AEAD
	fingerprint string
}

// NewCredentialEncryptor creates an encryptor from CONNECTION_CREDENTIALS_KEY.
// A base64 value that decodes to exactly 32 bytes is used as the key directly;
// anything else is treated as a passphrase and hashed with SHA-256.
func NewCredentialEncryptor(keyInput string) (*CredentialEncryptor, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	key, err := base64.StdEncoding.DecodeString(keyInput)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(keyInput))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	fp := sha256.Sum256(append([]byte("ekaya-gateway:fingerprint:"), key...))

	return &CredentialEncryptor{
		gcm:         gcm,
		fingerprint: hex.EncodeToString(fp[:8]),
	}, nil
}

// Fingerprint identifies the key without revealing it. The store records it
// alongside each row so a changed key is reported instead of failing silently.
func (e *CredentialEncryptor) Fingerprint() string {
	return e.fingerprint
}

// Seal encrypts plaintext for connectionID and returns base64(nonce || ciphertext || tag).
func (e *CredentialEncryptor) Seal(connectionID, plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(connectionID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. It fails when connectionID differs from the one used to seal.
func (e *CredentialEncryptor) Open(connectionID, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize+e.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], []byte(connectionID))
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}

	return string(plaintext), nil
}
