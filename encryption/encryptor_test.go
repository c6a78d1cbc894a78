package encryption

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

func testKey(t *testing.T, secret string) []byte {
	t.Helper()
	key, err := NewAESEncryptor().DeriveKeyFromSecret([]byte(secret), []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("DeriveKeyFromSecret() failed: %v", err)
	}
	return key
}

func TestEncryptDecrypt(t *testing.T) {
	encryptor := NewAESEncryptor()

	key := testKey(t, "camera")

	testData := []byte("smtp-password")

	encrypted, err := encryptor.Encrypt(testData, key)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if bytes.Contains(encrypted, testData) {
		t.Error("ciphertext contains the plaintext")
	}

	decrypted, err := encryptor.Decrypt(encrypted, key)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if !bytes.Equal(decrypted, testData) {
		t.Errorf("Decrypted data doesn't match input. Expected %q, got %q", testData, decrypted)
	}

	otherKey := testKey(t, "other")
	if _, err := encryptor.Decrypt(encrypted, otherKey); err == nil {
		t.Error("Decrypt() with the wrong key should fail")
	}
}

func TestEncrypt_InvalidKeyLength(t *testing.T) {
	encryptor := NewAESEncryptor()

	if _, err := encryptor.Encrypt([]byte("data"), []byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("Expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestDecrypt_ShortCiphertext(t *testing.T) {
	encryptor := NewAESEncryptor()
	key := testKey(t, "camera")

	if _, err := encryptor.Decrypt([]byte{1, 2, 3}, key); !errors.Is(err, ErrCiphertextShort) {
		t.Errorf("Expected ErrCiphertextShort, got %v", err)
	}
}

func TestDeriveKeyFromSecret(t *testing.T) {
	encryptor := NewAESEncryptor()
	secret := []byte("passphrase")
	salt := []byte("0123456789abcdef")

	key, err := encryptor.DeriveKeyFromSecret(secret, salt)
	if err != nil {
		t.Fatalf("DeriveKeyFromSecret() failed: %v", err)
	}

	expected := pbkdf2.Key(secret, salt, iterationCount, keyLength, sha256.New)
	if !bytes.Equal(key, expected) {
		t.Error("derived key doesn't match PBKDF2 output")
	}

	if _, err := encryptor.DeriveKeyFromSecret(secret, nil); !errors.Is(err, ErrEmptySalt) {
		t.Errorf("Expected ErrEmptySalt, got %v", err)
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	sealer := NewSealer(NewAESEncryptor(), "alarm-secret")

	sealed, err := sealer.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if sealed == "hunter2" {
		t.Fatal("Seal() returned the plaintext")
	}

	again, err := sealer.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if sealed == again {
		t.Error("two seals of the same value should differ")
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if opened != "hunter2" {
		t.Errorf("Expected %q, got %q", "hunter2", opened)
	}
}

func TestSealer_WrongSecret(t *testing.T) {
	sealed, err := NewSealer(NewAESEncryptor(), "right").Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}

	if _, err := NewSealer(NewAESEncryptor(), "wrong").Open(sealed); err == nil {
		t.Error("Open() with the wrong secret should fail")
	}
	if _, err := NewSealer(NewAESEncryptor(), "right").Open("not base64!"); err == nil {
		t.Error("Open() of garbage should fail")
	}
}
