// Package wecom implements the WeCom callback protocol: signature
// verification, envelope encryption, message parsing and the send API client.
package wecom

import "errors"

var (
	// ErrSignatureMismatch is returned when a callback signature does not
	// match the computed digest. Callers must reject the request without
	// attempting decryption.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrDecrypt is returned (wrapped) for any envelope decryption failure:
	// malformed base64, bad padding, inconsistent length field, or a
	// receiver ID that does not match the configured corp ID.
	ErrDecrypt = errors.New("envelope decryption failed")
)
