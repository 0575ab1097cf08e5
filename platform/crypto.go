package platform

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// KeySealer encrypts provider API keys before they reach the settings table.
// AES-256-GCM; the ciphertext column stores base64(nonce||sealed).
type KeySealer struct {
	key []byte
}

var ErrBadEncryptionKey = errors.New("SETTINGS_ENC_KEY must be 64 hex characters (32 bytes)")

func NewKeySealer(hexKey string) (*KeySealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrBadEncryptionKey
	}
	return &KeySealer{key: key}, nil
}

// NewKeySealerFromEnv reads SETTINGS_ENC_KEY.
func NewKeySealerFromEnv() (*KeySealer, error) {
	return NewKeySealer(os.Getenv("SETTINGS_ENC_KEY"))
}

func (s *KeySealer) Seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *KeySealer) Open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}

// MaskKey returns the representation safe to echo back to clients: at most
// the last four characters, never the key itself.
func MaskKey(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	if len(plaintext) <= 8 {
		return "****"
	}
	return "****" + plaintext[len(plaintext)-4:]
}
