// SPDX-License-Identifier: LGPL-3.0-or-later

// Package publisher builds the layered wrap/seal/inner events for an
// outgoing response and publishes them to every configured relay with
// per-relay failure isolation.
package publisher

import (
	"context"
	"math/rand"
	"time"

	"github.com/nostrwrap/relayproxy/crypto"
	"github.com/nostrwrap/relayproxy/event"
	"github.com/nostrwrap/relayproxy/internal/logger"
	"github.com/nostrwrap/relayproxy/nprofile"
	"github.com/nostrwrap/relayproxy/relaypool"
)

// maxSealSkew bounds how far into the past a seal's created_at is
// randomized, defeating timing correlation between the wrap and the seal
// it contains.
const maxSealSkew = 48 * time.Hour

// Publisher owns the proxy's long-lived identity and the relay pool it
// publishes through.
type Publisher struct {
	identity *crypto.KeyPair
	pool     relaypool.RelayPool
	log      logger.Logger
}

// New builds a Publisher for identity, publishing through pool.
func New(identity *crypto.KeyPair, pool relaypool.RelayPool, log logger.Logger) *Publisher {
	return &Publisher{identity: identity, pool: pool, log: log}
}

// PublishResponse wraps each chunk in parts as an inner HttpResponse event,
// seals it to requester, gift-wraps it under a fresh ephemeral key, and
// publishes the wrap to every configured relay. A per-relay publish
// failure is logged and does not block the other relays or the remaining
// chunks.
func (p *Publisher) PublishResponse(ctx context.Context, requester [crypto.PubKeySize]byte, parts []*event.ResponseMessage) error {
	safeRelays := p.safeRelayURLs()

	for _, part := range parts {
		wrap, err := p.buildWrap(requester, part, safeRelays)
		if err != nil {
			return err
		}
		p.publishAndLog(ctx, wrap)
	}
	return nil
}

func (p *Publisher) buildWrap(requester [crypto.PubKeySize]byte, part *event.ResponseMessage, safeRelays []string) (*event.Event, error) {
	content, err := event.EncodeResponseMessage(part)
	if err != nil {
		return nil, err
	}

	inner, err := event.BuildInner(event.KindHTTPResponse, p.identity.PublicHex(), time.Now().Unix(), content)
	if err != nil {
		return nil, err
	}

	sealCreatedAt := time.Now().Add(-randomDuration(maxSealSkew)).Unix()
	seal, err := event.BuildSeal(p.identity, requester, sealCreatedAt, inner)
	if err != nil {
		return nil, err
	}

	wrap, err := event.BuildGiftWrapWithRelayHints(requester, time.Now().Unix(), seal, safeRelays)
	if err != nil {
		return nil, err
	}
	return wrap, nil
}

func (p *Publisher) publishAndLog(ctx context.Context, wrap *event.Event) {
	results := p.pool.Publish(ctx, wrap)
	for relayURL, err := range results {
		if err != nil && p.log != nil {
			p.log.Warn("publish to relay failed",
				logger.String("relay", relayURL),
				logger.String("wrapId", wrap.ID),
				logger.Error(err),
			)
		}
	}
}

// safeRelayURLs returns every currently connected relay whose URL form is
// safe to advertise (see nprofile.IsSafeRelay): no userinfo, no query
// string.
func (p *Publisher) safeRelayURLs() []string {
	connected := p.pool.SafeRelays(maxAdvertisedRelays)
	safe := make([]string, 0, len(connected))
	for _, url := range connected {
		if nprofile.IsSafeRelay(url) {
			safe = append(safe, url)
		}
	}
	return safe
}

// maxAdvertisedRelays bounds how many connected relays Publisher asks the
// pool for before filtering to safe ones; the pipeline's configured
// nprofileMaxRelays is the real cap applied to the nprofile hint itself.
const maxAdvertisedRelays = 64

func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
