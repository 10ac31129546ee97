package wecom

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
)

// Codec encrypts and decrypts WeCom message envelopes.
//
// The wire format inside the AES-CBC ciphertext is:
//
//	random(16) | msg_len(4, big-endian) | msg | receiver_id
//
// The 32-byte AES key is derived from the 43-char base64 EncodingAESKey,
// and its first block doubles as the IV per the platform convention.
type Codec struct {
	key        []byte
	receiverID string
}

// NewCodec builds a Codec from the EncodingAESKey and the corp ID that
// inbound envelopes must be addressed to.
func NewCodec(encodingAESKey, receiverID string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, fmt.Errorf("decode aes key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("aes key must be 32 bytes, got %d", len(key))
	}
	return &Codec{key: key, receiverID: receiverID}, nil
}

// Decrypt base64-decodes and decrypts an envelope, returning the plaintext
// message. The trailing receiver ID is checked against the configured corp
// ID; a mismatch means the ciphertext was encrypted for another tenant (or
// with another key) and is rejected.
func (c *Codec) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", ErrDecrypt, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a block multiple", ErrDecrypt, len(raw))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.key[:aes.BlockSize]).CryptBlocks(plain, raw)

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	// random(16) | msg_len(4) | msg | receiver_id
	if len(plain) < 20 {
		return nil, fmt.Errorf("%w: plaintext too short", ErrDecrypt)
	}
	msgLen := binary.BigEndian.Uint32(plain[16:20])
	if uint32(len(plain)-20) < msgLen {
		return nil, fmt.Errorf("%w: length field exceeds buffer", ErrDecrypt)
	}
	msg := plain[20 : 20+msgLen]
	receiver := string(plain[20+msgLen:])
	if receiver != c.receiverID {
		return nil, fmt.Errorf("%w: receiver id mismatch", ErrDecrypt)
	}
	return msg, nil
}

// Encrypt builds the envelope around plaintext and returns the
// base64-encoded ciphertext. Each call uses a fresh random prefix.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	buf := make([]byte, 0, 20+len(plaintext)+len(c.receiverID))
	buf = append(buf, nonce...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(plaintext)))
	buf = append(buf, plaintext...)
	buf = append(buf, c.receiverID...)
	buf = pkcs7Pad(buf, aes.BlockSize)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, c.key[:aes.BlockSize]).CryptBlocks(out, buf)

	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding byte")
		}
	}
	return data[:len(data)-n], nil
}
