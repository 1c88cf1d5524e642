// SPDX-License-Identifier: LGPL-3.0-or-later

// Package nprofile encodes the proxy's identity hint: a bech32 entity
// bundling the long-lived public key with a handful of known-good relay
// URLs, in the NIP-19 TLV convention.
package nprofile

import (
	"fmt"
	"net/url"

	"github.com/btcsuite/btcutil/bech32"

	"github.com/nostrwrap/relayproxy/crypto"
)

const (
	hrp          = "nprofile"
	tlvPubkey    = 0
	tlvRelay     = 1
	maxTLVLength = 255
)

// Encode builds the bech32 nprofile string for pubkey and relays. Only the
// first len(relays) entries are included as-is; callers are expected to
// have already filtered to "safe" relays and truncated to the configured
// maximum.
func Encode(pubkey [crypto.PubKeySize]byte, relays []string) (string, error) {
	var data []byte
	data = appendTLV(data, tlvPubkey, pubkey[:])
	for _, relay := range relays {
		if len(relay) > maxTLVLength {
			return "", fmt.Errorf("nprofile: relay url too long: %s", relay)
		}
		data = appendTLV(data, tlvRelay, []byte(relay))
	}

	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("nprofile: convert bits: %w", err)
	}
	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", fmt.Errorf("nprofile: encode: %w", err)
	}
	return encoded, nil
}

func appendTLV(data []byte, typ byte, value []byte) []byte {
	data = append(data, typ, byte(len(value)))
	return append(data, value...)
}

// Decode parses a bech32 nprofile string back into its pubkey and relay
// hints, mainly useful for tests and diagnostics.
func Decode(nprofile string) (pubkey [crypto.PubKeySize]byte, relays []string, err error) {
	gotHRP, data, err := bech32.Decode(nprofile)
	if err != nil {
		return pubkey, nil, fmt.Errorf("nprofile: decode: %w", err)
	}
	if gotHRP != hrp {
		return pubkey, nil, fmt.Errorf("nprofile: unexpected hrp %q", gotHRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return pubkey, nil, fmt.Errorf("nprofile: convert bits: %w", err)
	}

	for i := 0; i+2 <= len(raw); {
		typ := raw[i]
		length := int(raw[i+1])
		i += 2
		if i+length > len(raw) {
			return pubkey, nil, fmt.Errorf("nprofile: truncated TLV")
		}
		value := raw[i : i+length]
		i += length
		switch typ {
		case tlvPubkey:
			if length != crypto.PubKeySize {
				return pubkey, nil, fmt.Errorf("nprofile: malformed pubkey TLV")
			}
			copy(pubkey[:], value)
		case tlvRelay:
			relays = append(relays, string(value))
		}
	}
	return pubkey, relays, nil
}

// IsSafeRelay reports whether relayURL is safe to advertise in a hint tag:
// it must parse, and carry no userinfo and no query string.
func IsSafeRelay(relayURL string) bool {
	u, err := url.Parse(relayURL)
	if err != nil {
		return false
	}
	return u.User == nil && u.RawQuery == ""
}
