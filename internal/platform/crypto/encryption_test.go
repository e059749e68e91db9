package crypto

import (
	"bytes"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptRoundTrip(t *testing.T) {
	svc, err := New(testKey)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	plain := []byte(`{"grossAmount":5600}`)
	sealed, err := svc.Encrypt(plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(sealed, plain) {
		t.Fatal("expected ciphertext to differ from plaintext")
	}
	opened, err := svc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("expected %s, got %s", plain, opened)
	}
}

func TestUnconfiguredPassesThrough(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if svc.Configured() {
		t.Fatal("expected unconfigured service")
	}
	out, err := svc.Encrypt([]byte("plain"))
	if err != nil || string(out) != "plain" {
		t.Fatalf("expected passthrough, got %q %v", out, err)
	}
}

func TestDerivedKeysAreSeparate(t *testing.T) {
	root, err := New(testKey)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	details, err := root.Derive("payroll-entry-details")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	other, err := root.Derive("something-else")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	sealed, err := details.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := other.Decrypt(sealed); err == nil {
		t.Fatal("expected a different purpose key to fail")
	}
	if _, err := root.Decrypt(sealed); err == nil {
		t.Fatal("expected the root key to fail")
	}
}

func TestRejectsShortKey(t *testing.T) {
	if _, err := New("too-short"); err == nil {
		t.Fatal("expected short key error")
	}
}
