// SPDX-License-Identifier: LGPL-3.0-or-later

// Package pipeline is the relay proxy's orchestrator: it subscribes to
// gift-wrapped requests addressed to the proxy's identity, and for every
// delivered event drives the full decrypt, validate, dedup, reassemble,
// route-gate, dispatch, transform, and publish sequence.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nostrwrap/relayproxy/chunker"
	"github.com/nostrwrap/relayproxy/crypto"
	"github.com/nostrwrap/relayproxy/dedup"
	"github.com/nostrwrap/relayproxy/event"
	"github.com/nostrwrap/relayproxy/httpclient"
	"github.com/nostrwrap/relayproxy/internal/logger"
	"github.com/nostrwrap/relayproxy/internal/metrics"
	"github.com/nostrwrap/relayproxy/publisher"
	"github.com/nostrwrap/relayproxy/reassemble"
	"github.com/nostrwrap/relayproxy/relaypool"
	"github.com/nostrwrap/relayproxy/routegate"
	"github.com/nostrwrap/relayproxy/transform"
)

// resubscribeInterval is how often the subscription filter is rebuilt with
// an advanced "since" cursor, bounding how far back a reconnecting relay
// would otherwise replay.
const resubscribeInterval = time.Hour

// subscriptionLookback is how far before "now" the very first subscription
// reaches back, so events published just before startup are not missed.
const subscriptionLookback = 48 * time.Hour

// warmupInitialDelay and warmupExtraDelay are the two explicit sleeps the
// orchestrator waits through on startup before deciding whether any relay
// is reachable.
const (
	warmupInitialDelay = 1 * time.Second
	warmupExtraDelay   = 5 * time.Second
)

// shutdownGrace is how long shutdown waits for in-flight handlers to
// finish, after closing the relay pool, before giving up.
const shutdownGrace = 10 * time.Second

// Pipeline owns every stage of the request lifecycle: the relay pool it
// reads gift-wrapped events from and publishes responses through, the
// dedup and reassembly state shared across concurrent handlers, and the
// route gate, origin client, and transformer that decide what a
// reassembled request actually does.
type Pipeline struct {
	identity    *crypto.KeyPair
	pool        relaypool.RelayPool
	gate        *routegate.Gate
	client      *httpclient.Client
	transformer transform.Func
	pub         *publisher.Publisher
	log         logger.Logger

	dedup      *dedup.Tracker
	reassembly *reassemble.Buffer

	wg sync.WaitGroup
}

// New builds a Pipeline. transformer may be nil, in which case origin
// responses are published untouched.
func New(identity *crypto.KeyPair, pool relaypool.RelayPool, gate *routegate.Gate, client *httpclient.Client, transformer transform.Func, log logger.Logger) *Pipeline {
	return &Pipeline{
		identity:    identity,
		pool:        pool,
		gate:        gate,
		client:      client,
		transformer: transformer,
		pub:         publisher.New(identity, pool, log),
		log:         log,
		dedup:       dedup.New(),
		reassembly:  reassemble.New(),
	}
}

// Run connects the relay pool, waits through the connection warm-up,
// subscribes, and then drives the event loop until ctx is canceled. It
// returns a RelayConnectFail-coded error if no relay is reachable after
// warm-up; that is treated as a fatal init error by the caller.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.pool.Connect(ctx); err != nil {
		p.log.Warn("initial relay dial failed", logger.Error(err))
	}

	if err := p.warmUp(ctx); err != nil {
		return err
	}

	if err := p.subscribe(time.Now().Add(-subscriptionLookback)); err != nil {
		return err
	}

	ticker := time.NewTicker(resubscribeInterval)
	defer ticker.Stop()

	events := p.pool.Events()
	for {
		select {
		case <-ctx.Done():
			return p.shutdown()
		case <-ticker.C:
			// A small overlap guards against events delivered in the gap
			// between the old subscription's last event and this REQ
			// reaching the relay; the wrap-id dedup map absorbs the
			// resulting duplicates.
			if err := p.subscribe(time.Now().Add(-time.Minute)); err != nil {
				p.log.Warn("resubscribe failed", logger.Error(err))
			}
		case ev, ok := <-events:
			if !ok {
				return p.shutdown()
			}
			metrics.RelaysConnected.Set(float64(len(p.pool.SafeRelays(1 << 20))))
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.handle(ctx, ev)
			}()
		}
	}
}

// warmUp waits warmupInitialDelay, and if no relay is yet connected waits
// warmupExtraDelay more, matching the two-stage sleep the cooperative
// reference model performs before giving up on the network entirely.
func (p *Pipeline) warmUp(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(warmupInitialDelay):
	}
	if len(p.pool.SafeRelays(1)) > 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(warmupExtraDelay):
	}
	if len(p.pool.SafeRelays(1)) == 0 {
		return logger.NewDropReason(logger.ReasonRelayConnectFail, "no relay connected after warm-up", nil)
	}
	return nil
}

func (p *Pipeline) subscribe(since time.Time) error {
	return p.pool.Subscribe(relaypool.Filter{
		Kinds: []int{event.KindGiftWrap},
		PTags: []string{p.identity.PublicHex()},
		Since: since.Unix(),
	})
}

// shutdown closes the relay pool and waits for in-flight handlers, giving
// up after shutdownGrace so a stuck handler never wedges the process.
func (p *Pipeline) shutdown() error {
	p.pool.Close()
	p.reassembly.Close()
	p.dedup.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(shutdownGrace):
		p.log.Error("shutdown grace period elapsed with handlers still in flight")
		return errors.New("pipeline: shutdown timed out")
	}
}

// handle runs the full decrypt/validate/dedup/reassemble/dispatch sequence
// for a single delivered wrap event. Every rejection path logs a
// structured DropReason and returns without publishing anything; only a
// route-gate denial or an origin dispatch failure produces a response.
func (p *Pipeline) handle(ctx context.Context, wrap *event.Event) {
	metrics.EventsReceived.Inc()

	if p.dedup.SeenWrap(wrap.ID) {
		return
	}

	if wrap.Kind != event.KindGiftWrap {
		p.drop(logger.ReasonMalformedEvent, "event is not a gift-wrap", wrap.ID, nil)
		return
	}

	seal, err := event.OpenGiftWrap(wrap, p.identity)
	if err != nil {
		p.drop(classifyOpenError(err), "failed to open gift-wrap", wrap.ID, err)
		return
	}

	inner, err := event.OpenSeal(seal, p.identity)
	if err != nil {
		p.drop(classifyOpenError(err), "failed to open seal", wrap.ID, err)
		return
	}

	if inner.Kind != event.KindHTTPRequest {
		p.drop(logger.ReasonMalformedEvent, "inner event is not an HttpRequest", wrap.ID, nil)
		return
	}
	if inner.PubKey != seal.PubKey {
		p.drop(logger.ReasonIdentityMismatch, "inner pubkey does not match seal pubkey", wrap.ID, nil)
		return
	}
	if !p.dedup.InWindow(time.Unix(inner.CreatedAt, 0)) {
		p.drop(logger.ReasonOutOfWindow, "inner event outside the accepted time window", wrap.ID, nil)
		return
	}
	if p.dedup.SeenRequest(inner.ID) {
		p.drop(logger.ReasonReplay, "inner request id already handled", wrap.ID, nil)
		return
	}

	msg, err := event.DecodeRequestMessage(inner)
	if err != nil {
		p.drop(logger.ReasonMalformedEvent, "failed to decode request message", wrap.ID, err)
		return
	}
	if err := event.ValidateRequestMessage(msg); err != nil {
		p.drop(logger.ReasonMalformedEvent, "request message failed validation", wrap.ID, err)
		return
	}

	complete, body, meta, err := p.reassembly.Offer(msg)
	if err != nil {
		p.drop(logger.ReasonMalformedEvent, "reassembly failed", wrap.ID, err)
		return
	}
	metrics.ReassemblyPending.Set(float64(p.reassembly.Pending()))
	if !complete {
		return
	}

	requester, err := crypto.ParsePublicHex(seal.PubKey)
	if err != nil {
		p.drop(logger.ReasonMalformedEvent, "seal pubkey is not a valid key", wrap.ID, err)
		return
	}

	p.dispatch(ctx, requester, meta, body)
}

// dispatch runs the route-gate, origin-dispatch, transform, chunk, and
// publish steps for a fully reassembled request. Unlike the earlier
// rejection steps, every path here ends in a published response: a denied
// route synthesizes a 403 instead of calling the origin.
func (p *Pipeline) dispatch(ctx context.Context, requester [crypto.PubKeySize]byte, meta *event.RequestMessage, body []byte) {
	var resp *httpclient.Response
	if !p.gate.Allowed(meta.URL) {
		p.log.Warn("route denied",
			logger.String("path", meta.URL),
			logger.String("requestId", meta.ID),
		)
		resp = &httpclient.Response{Status: 403, Headers: map[string]string{}, Body: []byte("Forbidden route")}
	} else {
		start := time.Now()
		resp = p.client.Do(ctx, &httpclient.Request{
			Method:  meta.Method,
			URL:     meta.URL,
			Headers: meta.Headers,
			Body:    body,
		})
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}

	reqInfo := transform.RequestInfo{Method: meta.Method, URL: meta.URL, Headers: meta.Headers}
	out, _, fault := transform.Apply(p.transformer, reqInfo, resp)
	if fault != nil {
		reason := logger.NewDropReason(logger.ReasonTransformerFault, "transformer fault, keeping original response", fault)
		p.log.Error(reason.Message, logger.String("requestId", meta.ID), logger.Error(reason))
	}

	parts := chunkResponse(meta.ID, out)
	if err := p.pub.PublishResponse(ctx, requester, parts); err != nil {
		p.log.Error("failed to publish response",
			logger.String("requestId", meta.ID),
			logger.Error(err),
		)
		metrics.PublishOutcomes.WithLabelValues("failure").Inc()
		return
	}
	metrics.PublishOutcomes.WithLabelValues("success").Inc()
	metrics.RequestsCompleted.Inc()
}

// drop logs a structured DropReason and records the event-dropped metric.
// None of these paths produce a response: a silent drop per the pipeline's
// error table.
func (p *Pipeline) drop(code, message, wrapID string, cause error) {
	reason := logger.NewDropReason(code, message, cause)
	p.log.Warn(message, logger.String("wrapId", wrapID), logger.Error(reason))
	metrics.EventsDropped.WithLabelValues(code).Inc()
}

// chunkResponse splits resp into the publisher's wire chunks, sharing id
// across every part.
func chunkResponse(id string, resp *httpclient.Response) []*event.ResponseMessage {
	return chunker.Chunk(id, resp.Status, resp.Headers, resp.Body)
}

// classifyOpenError maps a crypto/event failure from OpenGiftWrap or
// OpenSeal to the drop-reason code that best describes it: a signature
// failure is VerifyFail, an AEAD failure is DecryptFail, and anything else
// (bad kind, malformed key, unparseable plaintext) is MalformedEvent.
func classifyOpenError(err error) string {
	switch {
	case errors.Is(err, crypto.ErrVerify):
		return logger.ReasonVerifyFail
	case errors.Is(err, crypto.ErrDecrypt):
		return logger.ReasonDecryptFail
	default:
		return logger.ReasonMalformedEvent
	}
}
