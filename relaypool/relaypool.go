// SPDX-License-Identifier: LGPL-3.0-or-later

// Package relaypool maintains WebSocket connections to a set of relays,
// subscribes to events matching a filter, republishes outgoing events to
// every relay with per-relay failure isolation, and reports which relays
// are currently healthy enough to advertise in an identity hint.
package relaypool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nostrwrap/relayproxy/event"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Filter is a relay subscription filter: events matching any listed kind
// and any listed "p" tag value are delivered.
type Filter struct {
	Kinds []int    `json:"kinds,omitempty"`
	PTags []string `json:"#p,omitempty"`
	Since int64    `json:"since,omitempty"`
}

// RelayPool is the interface the pipeline depends on, so tests can swap in
// an in-memory fake instead of dialing real relays.
type RelayPool interface {
	Connect(ctx context.Context) error
	Subscribe(filter Filter) error
	Events() <-chan *event.Event
	Publish(ctx context.Context, ev *event.Event) map[string]error
	SafeRelays(max int) []string
	Close()
}

// WSPool is the gorilla/websocket-backed RelayPool implementation.
type WSPool struct {
	urls []string

	mu      sync.RWMutex
	conns   map[string]*websocket.Conn
	healthy map[string]bool

	events chan *event.Event
	subID  string
}

// New builds a WSPool targeting the given relay URLs. It does not dial
// until Connect is called.
func New(urls []string) *WSPool {
	return &WSPool{
		urls:    urls,
		conns:   make(map[string]*websocket.Conn),
		healthy: make(map[string]bool),
		events:  make(chan *event.Event, 256),
		subID:   "relayproxy",
	}
}

// Connect dials every configured relay concurrently. A relay that fails to
// dial is simply left unhealthy; Connect only returns an error if every
// relay failed, since the pipeline treats zero connected relays as a fatal
// init error and partial connectivity as degraded-but-running.
func (p *WSPool) Connect(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, url := range p.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			p.dial(ctx, url)
		}(url)
	}
	wg.Wait()

	if len(p.ConnectedRelays()) == 0 {
		return fmt.Errorf("relaypool: no relay connected")
	}
	return nil
}

func (p *WSPool) dial(ctx context.Context, url string) {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		p.mu.Lock()
		p.healthy[url] = false
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.conns[url] = conn
	p.healthy[url] = true
	p.mu.Unlock()

	go p.readLoop(url, conn)
	go p.pingLoop(url, conn)
}

func (p *WSPool) readLoop(url string, conn *websocket.Conn) {
	defer p.markUnhealthy(url)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, ok := decodeRelayEvent(raw)
		if !ok {
			continue
		}
		select {
		case p.events <- ev:
		default:
		}
	}
}

func (p *WSPool) pingLoop(url string, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.RLock()
		_, ok := p.conns[url]
		p.mu.RUnlock()
		if !ok {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			p.markUnhealthy(url)
			return
		}
	}
}

func (p *WSPool) markUnhealthy(url string) {
	p.mu.Lock()
	delete(p.conns, url)
	p.healthy[url] = false
	p.mu.Unlock()
}

// decodeRelayEvent accepts the relay's ["EVENT", subID, <event>] frame and
// extracts the event payload.
func decodeRelayEvent(raw []byte) (*event.Event, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 3 {
		return nil, false
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil || label != "EVENT" {
		return nil, false
	}
	ev, err := event.Parse(frame[2])
	if err != nil {
		return nil, false
	}
	return ev, true
}

// Subscribe sends a REQ frame with filter to every connected relay.
func (p *WSPool) Subscribe(filter Filter) error {
	frame, err := json.Marshal([]any{"REQ", p.subID, filter})
	if err != nil {
		return fmt.Errorf("relaypool: encode filter: %w", err)
	}
	for _, url := range p.ConnectedRelays() {
		p.mu.RLock()
		conn := p.conns[url]
		p.mu.RUnlock()
		if conn == nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	return nil
}

// Events returns the channel of events received from any relay.
func (p *WSPool) Events() <-chan *event.Event { return p.events }

// Publish sends ev as an EVENT frame to every connected relay concurrently.
// Each relay's outcome is isolated: one relay's failure never affects
// another's publish, and the full per-relay error map is returned so the
// caller can log individually.
func (p *WSPool) Publish(ctx context.Context, ev *event.Event) map[string]error {
	frame, err := json.Marshal([]any{"EVENT", ev})
	if err != nil {
		errs := make(map[string]error)
		for _, url := range p.ConnectedRelays() {
			errs[url] = err
		}
		return errs
	}

	var mu sync.Mutex
	results := make(map[string]error)
	g, _ := errgroup.WithContext(ctx)
	for _, url := range p.ConnectedRelays() {
		url := url
		g.Go(func() error {
			p.mu.RLock()
			conn := p.conns[url]
			p.mu.RUnlock()
			if conn == nil {
				mu.Lock()
				results[url] = fmt.Errorf("relaypool: %s not connected", url)
				mu.Unlock()
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.TextMessage, frame)
			mu.Lock()
			results[url] = err
			mu.Unlock()
			return nil // isolate: a write failure on one relay never cancels the others
		})
	}
	_ = g.Wait()
	return results
}

// ConnectedRelays returns the URLs currently marked healthy.
func (p *WSPool) ConnectedRelays() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for url, ok := range p.healthy {
		if ok {
			out = append(out, url)
		}
	}
	return out
}

// SafeRelays returns up to max connected relay URLs, for the nprofile
// identity hint.
func (p *WSPool) SafeRelays(max int) []string {
	connected := p.ConnectedRelays()
	if len(connected) > max {
		connected = connected[:max]
	}
	return connected
}

// Close tears down every connection.
func (p *WSPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, conn := range p.conns {
		conn.Close()
		delete(p.conns, url)
		p.healthy[url] = false
	}
}
