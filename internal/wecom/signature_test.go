package wecom

import (
	"errors"
	"testing"
)

func TestSignatureIsOrderIndependent(t *testing.T) {
	// The four inputs are sorted before hashing, so swapping them around
	// must produce the same digest.
	a := Signature("token", "1409659589", "263014780", "payload")
	b := Signature("payload", "1409659589", "263014780", "token")
	if a != b {
		t.Errorf("expected identical signatures, got %q and %q", a, b)
	}

	c := Signature("token", "1409659589", "263014780", "other-payload")
	if a == c {
		t.Error("different payloads must not share a signature")
	}
}

func TestSignatureIsHexSHA1(t *testing.T) {
	sig := Signature("t", "1", "2", "p")
	if len(sig) != 40 {
		t.Errorf("expected 40 hex chars, got %d (%q)", len(sig), sig)
	}
	for _, r := range sig {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Errorf("unexpected character %q in signature", r)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	token := "QDG6eK"
	timestamp := "1409659589"
	nonce := "263014780"
	payload := "encrypted-blob"

	sig := Signature(token, timestamp, nonce, payload)
	if err := VerifySignature(token, sig, timestamp, nonce, payload); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// Any mutated input must fail.
	cases := []struct {
		name                              string
		token, sig, timestamp, nonce, pay string
	}{
		{"wrong token", "other", sig, timestamp, nonce, payload},
		{"wrong signature", token, "deadbeef", timestamp, nonce, payload},
		{"wrong timestamp", token, sig, "1409659590", nonce, payload},
		{"wrong nonce", token, sig, timestamp, "263014781", payload},
		{"wrong payload", token, sig, timestamp, nonce, "tampered"},
	}
	for _, tc := range cases {
		err := VerifySignature(tc.token, tc.sig, tc.timestamp, tc.nonce, tc.pay)
		if !errors.Is(err, ErrSignatureMismatch) {
			t.Errorf("%s: expected ErrSignatureMismatch, got %v", tc.name, err)
		}
	}
}
