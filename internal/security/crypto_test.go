package security

import (
	"errors"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	cipher, errNew := NewCipher("unit-test-secret")
	if errNew != nil {
		t.Fatalf("new cipher: %v", errNew)
	}

	plaintext := "sk-test-1234567890"
	encrypted, errEncrypt := cipher.Encrypt(plaintext)
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	if encrypted == plaintext {
		t.Fatalf("ciphertext equals plaintext")
	}

	decrypted, errDecrypt := cipher.Decrypt(encrypted)
	if errDecrypt != nil {
		t.Fatalf("decrypt: %v", errDecrypt)
	}
	if decrypted != plaintext {
		t.Fatalf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestCipherNonDeterministic(t *testing.T) {
	cipher, errNew := NewCipher("unit-test-secret")
	if errNew != nil {
		t.Fatalf("new cipher: %v", errNew)
	}

	first, errFirst := cipher.Encrypt("same input")
	if errFirst != nil {
		t.Fatalf("encrypt first: %v", errFirst)
	}
	second, errSecond := cipher.Encrypt("same input")
	if errSecond != nil {
		t.Fatalf("encrypt second: %v", errSecond)
	}
	if first == second {
		t.Fatalf("expected distinct ciphertexts for repeated encryption")
	}
}

func TestCipherWrongSecret(t *testing.T) {
	cipherA, _ := NewCipher("secret-a")
	cipherB, _ := NewCipher("secret-b")

	encrypted, errEncrypt := cipherA.Encrypt("payload")
	if errEncrypt != nil {
		t.Fatalf("encrypt: %v", errEncrypt)
	}
	if _, errDecrypt := cipherB.Decrypt(encrypted); errDecrypt == nil {
		t.Fatalf("expected decryption with wrong secret to fail")
	}
}

func TestCipherMalformedCiphertext(t *testing.T) {
	cipher, errNew := NewCipher("unit-test-secret")
	if errNew != nil {
		t.Fatalf("new cipher: %v", errNew)
	}
	if _, errDecrypt := cipher.Decrypt("not base64!!"); errDecrypt == nil {
		t.Fatalf("expected malformed ciphertext to fail")
	}
	if _, errDecrypt := cipher.Decrypt("dG9vc2hvcnQ="); !errors.Is(errDecrypt, ErrMalformedCiphertext) {
		t.Fatalf("expected ErrMalformedCiphertext, got %v", errDecrypt)
	}
}

func TestNewCipherEmptySecret(t *testing.T) {
	if _, errNew := NewCipher("  "); !errors.Is(errNew, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", errNew)
	}
}
