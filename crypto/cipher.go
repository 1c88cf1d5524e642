// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// MaxPlaintextSize is the ciphertext ceiling the scheme assumes: plaintexts
// above this size are rejected before sealing rather than silently
// truncated or split.
const MaxPlaintextSize = 64 * 1024

// Encrypt seals plaintext under convKey and returns a base64-encoded
// payload of the form nonce || ciphertext.
func Encrypt(plaintext []byte, convKey []byte) (string, error) {
	if len(plaintext) > MaxPlaintextSize {
		return "", ErrPlaintextTooLarge
	}

	aead, err := chacha20poly1305.New(convKey)
	if err != nil {
		return "", fmt.Errorf("%w: bad conversation key: %v", ErrFormat, err)
	}

	nonce, err := randomBytes(chacha20poly1305.NonceSize)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt: it base64-decodes payload, splits the leading
// nonce, and opens the AEAD. A wrong key or corrupted ciphertext yields
// ErrDecrypt.
func Decrypt(payload string, convKey []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64: %v", ErrFormat, err)
	}

	aead, err := chacha20poly1305.New(convKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad conversation key: %v", ErrFormat, err)
	}

	if len(raw) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrFormat)
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
