// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// SigSize is the length in bytes of a BIP-340 Schnorr signature.
const SigSize = 64

// canonicalForm is the fixed [0, pubkey, created_at, kind, tags, content]
// array serialized for hashing. The leading 0 is a reserved version field.
type canonicalForm [6]any

// EventID computes the canonical event id: the SHA-256 digest of the
// compact JSON encoding of [0, pubkey, created_at, kind, tags, content].
func EventID(kind int, pubkeyHex string, createdAt int64, tags [][]string, content string) ([32]byte, error) {
	if tags == nil {
		tags = [][]string{}
	}
	form := canonicalForm{0, pubkeyHex, createdAt, kind, tags, content}
	encoded, err := json.Marshal(form)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: canonical encode: %v", ErrFormat, err)
	}
	return sha256.Sum256(encoded), nil
}

// Sign produces a BIP-340 Schnorr signature over id using kp's secret.
func Sign(kp *KeyPair, id [32]byte) ([SigSize]byte, error) {
	var out [SigSize]byte
	sig, err := schnorr.Sign(kp.secret, id[:])
	if err != nil {
		return out, fmt.Errorf("crypto: sign: %w", err)
	}
	copy(out[:], sig.Serialize())
	return out, nil
}

// Verify checks a BIP-340 Schnorr signature over id against the x-only
// public key pubkey. Returns ErrVerify when the signature does not parse or
// does not verify; a pubkey that is not a valid x coordinate yields
// ErrFormat.
func Verify(pubkey [PubKeySize]byte, id [32]byte, sig [SigSize]byte) error {
	pub, err := liftX(pubkey)
	if err != nil {
		return err
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return ErrVerify
	}
	if !parsed.Verify(id[:], pub) {
		return ErrVerify
	}
	return nil
}

// SigHex and IDHex are small helpers for the event codec, which stores ids
// and signatures as hex on the wire.

func SigHex(sig [SigSize]byte) string { return hex.EncodeToString(sig[:]) }

func IDHex(id [32]byte) string { return hex.EncodeToString(id[:]) }

// ParseSigHex decodes a hex-encoded 64-byte signature.
func ParseSigHex(sigHex string) ([SigSize]byte, error) {
	var out [SigSize]byte
	raw, err := hex.DecodeString(sigHex)
	if err != nil || len(raw) != SigSize {
		return out, fmt.Errorf("%w: signature must be 64 hex-encoded bytes", ErrFormat)
	}
	copy(out[:], raw)
	return out, nil
}

// ParseIDHex decodes a hex-encoded 32-byte event id.
func ParseIDHex(idHex string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(idHex)
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("%w: event id must be 32 hex-encoded bytes", ErrFormat)
	}
	copy(out[:], raw)
	return out, nil
}
