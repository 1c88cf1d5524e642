// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto implements the layered-encryption primitives the relay
// proxy needs: secp256k1 key handling, ECDH conversation-key derivation,
// symmetric encryption, and event hashing/signing.
package crypto

import "errors"

var (
	// ErrDecrypt is returned when an AEAD open fails (wrong key or
	// corrupted/tampered ciphertext).
	ErrDecrypt = errors.New("crypto: decryption failed")

	// ErrVerify is returned when a Schnorr signature does not verify
	// against the claimed event id and public key.
	ErrVerify = errors.New("crypto: signature verification failed")

	// ErrFormat is returned for malformed keys, ciphertexts, or signatures
	// that fail basic shape checks before any cryptographic operation runs.
	ErrFormat = errors.New("crypto: malformed input")

	// ErrPlaintextTooLarge is returned when a plaintext exceeds the
	// scheme's ciphertext ceiling.
	ErrPlaintextTooLarge = errors.New("crypto: plaintext exceeds maximum size")
)
