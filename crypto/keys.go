// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PubKeySize is the length in bytes of an x-only secp256k1 public key, as
// used by event pubkeys and tag hints throughout the wire protocol.
const PubKeySize = 32

// KeyPair is a long-lived or ephemeral secp256k1 identity. Public keys are
// carried x-only (32 bytes), matching the convention used for event
// pubkeys and BIP-340 Schnorr signatures.
type KeyPair struct {
	secret *secp256k1.PrivateKey
	public [PubKeySize]byte
}

// GenerateKeyPair returns a new keypair backed by a cryptographically
// random secret. Used both for the proxy's long-lived identity and for the
// wrap layer's fresh ephemeral key on every outgoing event.
func GenerateKeyPair() (*KeyPair, error) {
	secret, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return newKeyPair(secret), nil
}

// ParseSecretHex builds a KeyPair from a hex-encoded 32-byte secret scalar.
func ParseSecretHex(secretHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: secret must be 32 hex-encoded bytes", ErrFormat)
	}
	secret := secp256k1.PrivKeyFromBytes(raw)
	return newKeyPair(secret), nil
}

func newKeyPair(secret *secp256k1.PrivateKey) *KeyPair {
	kp := &KeyPair{secret: secret}
	compressed := secret.PubKey().SerializeCompressed()
	copy(kp.public[:], compressed[1:])
	return kp
}

// Public returns the x-only public key bytes.
func (kp *KeyPair) Public() [PubKeySize]byte { return kp.public }

// PublicHex returns the x-only public key as lowercase hex.
func (kp *KeyPair) PublicHex() string { return hex.EncodeToString(kp.public[:]) }

// SecretHex returns the raw secret scalar as lowercase hex. Callers should
// treat the result as sensitive and avoid logging it.
func (kp *KeyPair) SecretHex() string { return hex.EncodeToString(kp.secret.Serialize()) }

// PublicHex hex-encodes a bare x-only public key, for callers that only
// have the key bytes and not a KeyPair (e.g. a gift-wrap recipient tag).
func PublicHex(pub [PubKeySize]byte) string { return hex.EncodeToString(pub[:]) }

// ParsePublicHex decodes an x-only public key from hex.
func ParsePublicHex(pubHex string) ([PubKeySize]byte, error) {
	var out [PubKeySize]byte
	raw, err := hex.DecodeString(pubHex)
	if err != nil || len(raw) != PubKeySize {
		return out, fmt.Errorf("%w: public key must be 32 hex-encoded bytes", ErrFormat)
	}
	copy(out[:], raw)
	return out, nil
}

// liftX recovers a full (even-y) secp256k1 point from an x-only coordinate,
// the BIP-340 convention used for event pubkeys.
func liftX(xOnly [PubKeySize]byte) (*secp256k1.PublicKey, error) {
	compressed := make([]byte, 1+PubKeySize)
	compressed[0] = 0x02 // even-y, per BIP-340
	copy(compressed[1:], xOnly[:])
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key: %v", ErrFormat, err)
	}
	return pub, nil
}

// randomBytes reads n cryptographically random bytes.
func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("crypto: read random bytes: %w", err)
	}
	return buf, nil
}
