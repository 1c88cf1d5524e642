// SPDX-License-Identifier: LGPL-3.0-or-later

// Package chunker splits a response body into fixed-size base64 chunks and
// assembles the sequence of outgoing ResponseMessage values, with status
// and headers attached only to the first chunk.
package chunker

import (
	"encoding/base64"

	"github.com/nostrwrap/relayproxy/event"
)

// PartBodyMax is the maximum number of raw (pre-base64) body bytes per
// outgoing chunk.
const PartBodyMax = 16384

// Chunk splits body into a sequence of ResponseMessage parts sharing id,
// status, and headers (the latter two only meaningful on part 0). A body of
// length zero still yields exactly one (empty) part, matching the "every
// response has at least one chunk" invariant.
func Chunk(id string, status int, headers map[string]string, body []byte) []*event.ResponseMessage {
	total := (len(body) + PartBodyMax - 1) / PartBodyMax
	if total == 0 {
		total = 1
	}

	parts := make([]*event.ResponseMessage, 0, total)
	for i := 0; i < total; i++ {
		start := i * PartBodyMax
		end := start + PartBodyMax
		if end > len(body) {
			end = len(body)
		}
		msg := &event.ResponseMessage{
			ID:         id,
			PartIndex:  i,
			Parts:      total,
			BodyBase64: base64.StdEncoding.EncodeToString(body[start:end]),
		}
		if i == 0 {
			msg.Status = status
			msg.Headers = headers
		}
		parts = append(parts, msg)
	}
	return parts
}
