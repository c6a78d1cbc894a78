package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterationCount = 10000
	keyLength      = 32 // AES-256
	saltLength     = 16
)

var (
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrEmptySalt        = errors.New("salt cannot be empty")
)

// Encryptor is the primitive a Sealer builds on.
type Encryptor interface {
	Encrypt(data []byte, key []byte) ([]byte, error)
	Decrypt(data []byte, key []byte) ([]byte, error)
	GenerateSalt() ([]byte, error)
	DeriveKeyFromSecret(secret []byte, salt []byte) ([]byte, error)
}

// AESEncryptor seals data with AES-256-GCM and derives keys with PBKDF2-SHA256.
type AESEncryptor struct {
	random io.Reader
}

func NewAESEncryptor() *AESEncryptor {
	return &AESEncryptor{random: rand.Reader}
}

func (e *AESEncryptor) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != keyLength {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt returns nonce || ciphertext.
func (e *AESEncryptor) Encrypt(data []byte, key []byte) ([]byte, error) {
	gcm, err := e.aead(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(data)+gcm.Overhead())
	if _, err := io.ReadFull(e.random, out); err != nil {
		return nil, err
	}
	return gcm.Seal(out, out, data, nil), nil
}

func (e *AESEncryptor) Decrypt(data []byte, key []byte) ([]byte, error) {
	gcm, err := e.aead(key)
	if err != nil {
		return nil, err
	}

	n := gcm.NonceSize()
	if len(data) < n+gcm.Overhead() {
		return nil, ErrCiphertextShort
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

func (e *AESEncryptor) GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(e.random, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (e *AESEncryptor) DeriveKeyFromSecret(secret []byte, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, ErrEmptySalt
	}
	return pbkdf2.Key(secret, salt, iterationCount, keyLength, sha256.New), nil
}
