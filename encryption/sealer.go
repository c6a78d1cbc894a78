package encryption

import (
	"encoding/base64"
	"fmt"
)

// Sealer protects short secrets, such as the SMTP password, with a key derived from a
// passphrase. A sealed value is base64(salt || nonce || ciphertext).
type Sealer struct {
	encryptor Encryptor
	secret    []byte
}

func NewSealer(encryptor Encryptor, secret string) *Sealer {
	return &Sealer{
		encryptor: encryptor,
		secret:    []byte(secret),
	}
}

// Seal encrypts plaintext under a fresh salt.
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt, err := s.encryptor.GenerateSalt()
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := s.encryptor.DeriveKeyFromSecret(s.secret, salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	ciphertext, err := s.encryptor.Encrypt([]byte(plaintext), key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}

	return base64.StdEncoding.EncodeToString(append(salt, ciphertext...)), nil
}

// Open reverses Seal. It fails when the value was sealed under a different secret.
func (s *Sealer) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(data) <= saltLength {
		return "", ErrCiphertextShort
	}

	salt, ciphertext := data[:saltLength], data[saltLength:]

	key, err := s.encryptor.DeriveKeyFromSecret(s.secret, salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	plaintext, err := s.encryptor.Decrypt(ciphertext, key)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt sealed value: %w", err)
	}
	return string(plaintext), nil
}
