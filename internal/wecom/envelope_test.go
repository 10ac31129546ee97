package wecom

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// 43 chars of 'A' decode (with the implied '=') to 32 zero bytes.
const testAESKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func newTestCodec(t *testing.T, receiverID string) *Codec {
	t.Helper()
	codec, err := NewCodec(testAESKey, receiverID)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	return codec
}

func TestNewCodecRejectsBadKey(t *testing.T) {
	if _, err := NewCodec("tooshort", "corp1"); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := NewCodec(strings.Repeat("!", 43), "corp1"); err == nil {
		t.Error("expected error for non-base64 key")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	codec := newTestCodec(t, "corp1")

	// Various message sizes including empty, sub-block and multi-block.
	for _, msg := range []string{"", "x", "<xml>hello</xml>", strings.Repeat("long message ", 100)} {
		enc, err := codec.Encrypt([]byte(msg))
		if err != nil {
			t.Fatalf("Encrypt(%d bytes) error: %v", len(msg), err)
		}
		dec, err := codec.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt(%d bytes) error: %v", len(msg), err)
		}
		if string(dec) != msg {
			t.Errorf("round trip mismatch: got %q, want %q", dec, msg)
		}
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	a, _ := codec.Encrypt([]byte("same message"))
	b, _ := codec.Encrypt([]byte("same message"))
	if a == b {
		t.Error("two encryptions of the same message must differ")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	codec := newTestCodec(t, "corp1")
	enc, err := codec.Encrypt([]byte("<xml>hello</xml>"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := codec.Decrypt(tampered); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt for tampered ciphertext, got %v", err)
	}
}

func TestDecryptRejectsWrongReceiver(t *testing.T) {
	sender := newTestCodec(t, "other-corp")
	receiver := newTestCodec(t, "corp1")

	enc, err := sender.Encrypt([]byte("<xml>hello</xml>"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if _, err := receiver.Decrypt(enc); !errors.Is(err, ErrDecrypt) {
		t.Errorf("expected ErrDecrypt for receiver mismatch, got %v", err)
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	codec := newTestCodec(t, "corp1")

	cases := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"empty", ""},
		{"not block aligned", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"garbage blocks", base64.StdEncoding.EncodeToString(make([]byte, 32))},
	}
	for _, tc := range cases {
		if _, err := codec.Decrypt(tc.input); !errors.Is(err, ErrDecrypt) {
			t.Errorf("%s: expected ErrDecrypt, got %v", tc.name, err)
		}
	}
}
