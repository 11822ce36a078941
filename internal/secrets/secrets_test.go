package secrets

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestParseKey_Raw32Bytes(t *testing.T) {
	raw := strings.Repeat("k", 32)
	key, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(key) != raw {
		t.Errorf("unexpected key %q", key)
	}
}

func TestParseKey_Base64(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("s", 32)))
	key, err := ParseKey(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(key))
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, raw := range []string{"", "short", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := ParseKey(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	encoded, err := Encrypt(key, "gsk_live_secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encoded == "gsk_live_secret" {
		t.Fatal("ciphertext equals plaintext")
	}
	plain, err := Decrypt(key, encoded)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "gsk_live_secret" {
		t.Errorf("unexpected plaintext %q", plain)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	other := []byte(strings.Repeat("x", 32))
	encoded, err := Encrypt(key, "value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(other, encoded); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	if _, err := Decrypt(key, "not base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Decrypt(key, base64.StdEncoding.EncodeToString([]byte("ab"))); err == nil {
		t.Fatal("expected short ciphertext error")
	}
}
