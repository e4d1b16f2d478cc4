package cfg

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"tradingengine/internal/common"
)

// decryptSecrets replaces any `enc:`-prefixed field with its AES-GCM
// decrypted plaintext, keyed by MasterKey. Fields without the prefix
// pass through unchanged, so plaintext credentials still work in
// development.
func decryptSecrets(s *Settings) error {
	fields := []*string{&s.APIKey, &s.APISecret, &s.Passphrase, &s.TelegramToken}
	for _, f := range fields {
		if !strings.HasPrefix(*f, common.DefaultSecretPrefix) {
			continue
		}
		plain, err := decryptValue(s.MasterKey, strings.TrimPrefix(*f, common.DefaultSecretPrefix))
		if err != nil {
			return err
		}
		*f = plain
	}
	return nil
}

// decryptValue decrypts a base64-encoded AES-GCM ciphertext (nonce
// prepended) using a SHA-256-derived key from masterKey.
func decryptValue(masterKey, encoded string) (string, error) {
	if masterKey == "" {
		return "", fmt.Errorf("MASTER_KEY is required to decrypt secret values")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid base64 secret: %w", err)
	}

	key := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("building gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	return string(plain), nil
}
