package security

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"binance-api-key",
		`{"api_key":"abc","api_secret":"def"}`,
		strings.Repeat("x", 4096),
	}

	for _, plaintext := range cases {
		encoded, err := EncryptString(plaintext)
		if err != nil {
			t.Fatalf("unexpected error encrypting %q: %v", plaintext, err)
		}

		if encoded == plaintext && plaintext != "" {
			t.Fatalf("ciphertext should not equal plaintext")
		}

		decoded, err := DecryptString(encoded)
		if err != nil {
			t.Fatalf("unexpected error decrypting: %v", err)
		}

		if decoded != plaintext {
			t.Fatalf("round trip mismatch: got %q, want %q", decoded, plaintext)
		}
	}
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	first, err := EncryptString("same-input")
	if err != nil {
		t.Fatalf("unexpected error encrypting: %v", err)
	}

	second, err := EncryptString("same-input")
	if err != nil {
		t.Fatalf("unexpected error encrypting: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct ciphertexts for repeated plaintext")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	if _, err := DecryptString("not-base64!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}

	if _, err := DecryptString("c2hvcnQ="); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for short ciphertext, got %v", err)
	}
}

func TestDecryptRejectsTampered(t *testing.T) {
	encoded, err := EncryptString("sensitive")
	if err != nil {
		t.Fatalf("unexpected error encrypting: %v", err)
	}

	tampered := []byte(encoded)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}

	if _, err := DecryptString(string(tampered)); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for tampered ciphertext, got %v", err)
	}
}
