// SPDX-License-Identifier: LGPL-3.0-or-later

// Package reassemble buffers the parts of a multi-part request until every
// declared part has arrived, or 60 seconds pass without completion,
// whichever happens first.
package reassemble

import (
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nostrwrap/relayproxy/crypto"
	"github.com/nostrwrap/relayproxy/event"
)

// Expiry is the fixed lifetime of a partial entry: an id with outstanding
// parts older than this is dropped silently.
const Expiry = 60 * time.Second

type entry struct {
	parts     map[int]*event.RequestMessage
	total     int
	createdAt time.Time
}

// Buffer holds in-flight partial requests, keyed by request id. Safe for
// concurrent use: the pipeline processes events from many relay read loops
// at once.
type Buffer struct {
	mu      sync.Mutex
	pending map[string]*entry
	tick    *time.Ticker
	stop    chan struct{}
}

// New starts a buffer along with its background expiry sweep.
func New() *Buffer {
	b := &Buffer{
		pending: make(map[string]*entry),
		tick:    time.NewTicker(time.Second),
		stop:    make(chan struct{}),
	}
	go b.gcLoop()
	return b
}

// Close stops the background sweep.
func (b *Buffer) Close() {
	close(b.stop)
	b.tick.Stop()
}

// Offer adds a part to the buffer for its request id. When the part
// completes the set (distinct part indexes observed equals the declared
// part count), it returns the reassembled body and the part-0 metadata. A
// duplicate part index is accepted and simply overwrites the prior copy,
// which keeps retransmits idempotent without needing a separate check. The
// declared part count is taken from whichever part arrived first for this
// id; a later part claiming a different count is still accepted, it just
// doesn't change what "complete" means for this id.
func (b *Buffer) Offer(msg *event.RequestMessage) (complete bool, body []byte, meta *event.RequestMessage, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.pending[msg.ID]
	if !ok {
		e = &entry{parts: make(map[int]*event.RequestMessage), total: msg.Parts, createdAt: time.Now()}
		b.pending[msg.ID] = e
	}
	e.parts[msg.PartIndex] = msg

	if len(e.parts) < e.total {
		return false, nil, nil, nil
	}
	if _, hasFirst := e.parts[0]; !hasFirst {
		return false, nil, nil, nil
	}

	indexes := make([]int, 0, len(e.parts))
	for idx := range e.parts {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var assembled []byte
	for _, idx := range indexes {
		chunk, decErr := base64.StdEncoding.DecodeString(e.parts[idx].BodyBase64)
		if decErr != nil {
			delete(b.pending, msg.ID)
			return false, nil, nil, fmt.Errorf("%w: part %d body is not valid base64", crypto.ErrFormat, idx)
		}
		assembled = append(assembled, chunk...)
	}

	meta = e.parts[0]
	delete(b.pending, msg.ID)
	return true, assembled, meta, nil
}

// Pending reports how many request ids currently have outstanding parts.
// Exposed for metrics.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Buffer) gcLoop() {
	for {
		select {
		case <-b.tick.C:
			b.sweep(time.Now())
		case <-b.stop:
			return
		}
	}
}

func (b *Buffer) sweep(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.pending {
		if now.Sub(e.createdAt) >= Expiry {
			delete(b.pending, id)
		}
	}
}
