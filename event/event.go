// SPDX-License-Identifier: LGPL-3.0-or-later

// Package event implements the wire event codec: the three nested event
// shapes (gift-wrap, seal, inner request/response) that carry an HTTP
// request or response across the relay network, plus canonical
// serialization, id computation, and signature verification.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/nostrwrap/relayproxy/crypto"
)

// Kind values used on the wire.
const (
	KindGiftWrap     = 21059
	KindSeal         = 13
	KindHTTPRequest  = 80
	KindHTTPResponse = 81
)

// Event is the wire entity exchanged with relays: an id-addressed,
// optionally signed envelope around arbitrary (usually encrypted) content.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig,omitempty"`
}

// New builds an Event with its canonical id computed, but unsigned.
func New(kind int, pubkeyHex string, createdAt int64, tags [][]string, content string) (*Event, error) {
	if tags == nil {
		tags = [][]string{}
	}
	id, err := crypto.EventID(kind, pubkeyHex, createdAt, tags, content)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        crypto.IDHex(id),
		PubKey:    pubkeyHex,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}, nil
}

// Sign computes the canonical id from e's fields, sets it, and signs it
// with kp. Verify checks the signature against e.PubKey, so kp must be the
// keypair for e.PubKey: on the wrap layer that is the fresh ephemeral key
// (not the "p"-tagged recipient), on the seal the sender's long-lived key.
func (e *Event) Sign(kp *crypto.KeyPair) error {
	id, err := crypto.EventID(e.Kind, e.PubKey, e.CreatedAt, e.Tags, e.Content)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(kp, id)
	if err != nil {
		return err
	}
	e.ID = crypto.IDHex(id)
	e.Sig = crypto.SigHex(sig)
	return nil
}

// Verify recomputes e's canonical id and checks it against both the stored
// id and the stored signature. It fails closed: a missing signature,
// mismatched id, or bad signature all return a non-nil error.
func (e *Event) Verify() error {
	id, err := crypto.EventID(e.Kind, e.PubKey, e.CreatedAt, e.Tags, e.Content)
	if err != nil {
		return err
	}
	if crypto.IDHex(id) != e.ID {
		return fmt.Errorf("%w: event id does not match canonical content", crypto.ErrFormat)
	}
	pubkey, err := crypto.ParsePublicHex(e.PubKey)
	if err != nil {
		return err
	}
	sig, err := crypto.ParseSigHex(e.Sig)
	if err != nil {
		return err
	}
	return crypto.Verify(pubkey, id, sig)
}

// Parse decodes a wire Event from JSON, rejecting anything whose shape
// doesn't match (missing fields surface as Go's zero values, which later
// pipeline checks reject explicitly rather than this decoder).
func Parse(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrFormat, err)
	}
	return &e, nil
}

// Marshal encodes e back to its wire JSON form.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// TagValues returns the first value (after the tag name) for tags whose
// name matches key, e.g. TagValues(tags, "p") for "#p" filters.
func TagValues(tags [][]string, key string) []string {
	var out []string
	for _, t := range tags {
		if len(t) >= 2 && t[0] == key {
			out = append(out, t[1])
		}
	}
	return out
}
