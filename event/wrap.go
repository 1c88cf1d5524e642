// SPDX-License-Identifier: LGPL-3.0-or-later

package event

import (
	"encoding/json"
	"fmt"

	"github.com/nostrwrap/relayproxy/crypto"
)

// BuildInner constructs the innermost event (kind 80 or 81) carrying the
// encoded request or response message as its content. Inner events are
// never signed: their authenticity comes transitively from the seal that
// wraps them. senderPubkeyHex is set to the same identity that will go on
// to sign the seal, so a recipient can check inner.pubkey == seal.pubkey
// as a binding between the two layers even though the inner event itself
// carries no signature of its own.
func BuildInner(kind int, senderPubkeyHex string, createdAt int64, content string) (*Event, error) {
	return New(kind, senderPubkeyHex, createdAt, nil, content)
}

// EncodeRequestMessage serializes a RequestMessage for use as inner event
// content.
func EncodeRequestMessage(msg *RequestMessage) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: encode request message: %v", crypto.ErrFormat, err)
	}
	return string(raw), nil
}

// EncodeResponseMessage serializes a ResponseMessage for use as inner event
// content.
func EncodeResponseMessage(msg *ResponseMessage) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: encode response message: %v", crypto.ErrFormat, err)
	}
	return string(raw), nil
}

// DecodeRequestMessage parses an inner HttpRequest event's content.
func DecodeRequestMessage(inner *Event) (*RequestMessage, error) {
	if inner.Kind != KindHTTPRequest {
		return nil, fmt.Errorf("%w: inner event is not an HttpRequest", crypto.ErrFormat)
	}
	var msg RequestMessage
	if err := json.Unmarshal([]byte(inner.Content), &msg); err != nil {
		return nil, fmt.Errorf("%w: decode request message: %v", crypto.ErrFormat, err)
	}
	return &msg, nil
}

// DecodeResponseMessage parses an inner HttpResponse event's content.
func DecodeResponseMessage(inner *Event) (*ResponseMessage, error) {
	if inner.Kind != KindHTTPResponse {
		return nil, fmt.Errorf("%w: inner event is not an HttpResponse", crypto.ErrFormat)
	}
	var msg ResponseMessage
	if err := json.Unmarshal([]byte(inner.Content), &msg); err != nil {
		return nil, fmt.Errorf("%w: decode response message: %v", crypto.ErrFormat, err)
	}
	return &msg, nil
}

// BuildSeal encrypts inner under the conversation key shared between sender
// and recipient, and signs the resulting kind-13 event with sender's
// long-lived key. This is the layer that actually authenticates the inner
// content: only someone holding sender's secret could have produced it.
func BuildSeal(sender *crypto.KeyPair, recipient [crypto.PubKeySize]byte, createdAt int64, inner *Event) (*Event, error) {
	innerJSON, err := inner.Marshal()
	if err != nil {
		return nil, err
	}
	convKey, err := crypto.ConversationKey(sender, recipient)
	if err != nil {
		return nil, err
	}
	encrypted, err := crypto.Encrypt(innerJSON, convKey)
	if err != nil {
		return nil, err
	}
	seal, err := New(KindSeal, sender.PublicHex(), createdAt, nil, encrypted)
	if err != nil {
		return nil, err
	}
	if err := seal.Sign(sender); err != nil {
		return nil, err
	}
	return seal, nil
}

// BuildGiftWrap encrypts seal under a fresh ephemeral keypair's conversation
// key with the recipient, tags the result with the recipient's pubkey, and
// signs it with the ephemeral key. The ephemeral key is discarded after
// signing: it exists only so relays and onlookers cannot link the wrap back
// to sender's long-lived identity.
func BuildGiftWrap(recipient [crypto.PubKeySize]byte, createdAt int64, seal *Event) (*Event, error) {
	ephemeral, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	sealJSON, err := seal.Marshal()
	if err != nil {
		return nil, err
	}
	convKey, err := crypto.ConversationKey(ephemeral, recipient)
	if err != nil {
		return nil, err
	}
	encrypted, err := crypto.Encrypt(sealJSON, convKey)
	if err != nil {
		return nil, err
	}
	tags := [][]string{{"p", crypto.PublicHex(recipient)}}
	wrap, err := New(KindGiftWrap, ephemeral.PublicHex(), createdAt, tags, encrypted)
	if err != nil {
		return nil, err
	}
	if err := wrap.Sign(ephemeral); err != nil {
		return nil, err
	}
	return wrap, nil
}

// BuildGiftWrapWithRelayHints is BuildGiftWrap plus relay hint tags: the
// first safe relay goes in the "p" tag alongside the recipient, and any
// remaining safe relays go in a trailing "relays" tag. Used by the
// publisher so requesters learn which relays the proxy is actually
// reachable on.
func BuildGiftWrapWithRelayHints(recipient [crypto.PubKeySize]byte, createdAt int64, seal *Event, safeRelays []string) (*Event, error) {
	ephemeral, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	sealJSON, err := seal.Marshal()
	if err != nil {
		return nil, err
	}
	convKey, err := crypto.ConversationKey(ephemeral, recipient)
	if err != nil {
		return nil, err
	}
	encrypted, err := crypto.Encrypt(sealJSON, convKey)
	if err != nil {
		return nil, err
	}

	pTag := []string{"p", crypto.PublicHex(recipient)}
	if len(safeRelays) > 0 {
		pTag = append(pTag, safeRelays[0])
	}
	tags := [][]string{pTag}
	if len(safeRelays) > 1 {
		tags = append(tags, append([]string{"relays"}, safeRelays[1:]...))
	}

	wrap, err := New(KindGiftWrap, ephemeral.PublicHex(), createdAt, tags, encrypted)
	if err != nil {
		return nil, err
	}
	if err := wrap.Sign(ephemeral); err != nil {
		return nil, err
	}
	return wrap, nil
}

// OpenGiftWrap verifies and decrypts a gift-wrap event, returning the seal
// event it contains. The wrap's signature is checked against its own
// (ephemeral) pubkey before anything is decrypted.
func OpenGiftWrap(wrap *Event, recipient *crypto.KeyPair) (*Event, error) {
	if wrap.Kind != KindGiftWrap {
		return nil, fmt.Errorf("%w: expected gift-wrap event", crypto.ErrFormat)
	}
	if err := wrap.Verify(); err != nil {
		return nil, err
	}
	senderEphemeral, err := crypto.ParsePublicHex(wrap.PubKey)
	if err != nil {
		return nil, err
	}
	convKey, err := crypto.ConversationKey(recipient, senderEphemeral)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.Decrypt(wrap.Content, convKey)
	if err != nil {
		return nil, err
	}
	return Parse(plaintext)
}

// OpenSeal verifies and decrypts a seal event, returning the inner event it
// contains.
func OpenSeal(seal *Event, recipient *crypto.KeyPair) (*Event, error) {
	if seal.Kind != KindSeal {
		return nil, fmt.Errorf("%w: expected seal event", crypto.ErrFormat)
	}
	if err := seal.Verify(); err != nil {
		return nil, err
	}
	senderPub, err := crypto.ParsePublicHex(seal.PubKey)
	if err != nil {
		return nil, err
	}
	convKey, err := crypto.ConversationKey(recipient, senderPub)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.Decrypt(seal.Content, convKey)
	if err != nil {
		return nil, err
	}
	return Parse(plaintext)
}
