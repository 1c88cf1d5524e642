// SPDX-License-Identifier: LGPL-3.0-or-later

package event

import (
	"fmt"
	"strings"

	"github.com/nostrwrap/relayproxy/crypto"
)

const maxIDLength = 100

// RequestMessage is the inner content of an HttpRequest (kind 80) event,
// decoded from the decrypted seal content. A request may be split across
// multiple parts; only part 0 carries url, method, and headers.
type RequestMessage struct {
	ID         string            `json:"id"`
	PartIndex  int               `json:"partIndex"`
	Parts      int               `json:"parts"`
	BodyBase64 string            `json:"bodyBase64"`
	URL        string            `json:"url,omitempty"`
	Method     string            `json:"method,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// ResponseMessage is the inner content of an HttpResponse (kind 81) event.
// Only part 0 carries status and headers.
type ResponseMessage struct {
	ID         string            `json:"id"`
	PartIndex  int               `json:"partIndex"`
	Parts      int               `json:"parts"`
	BodyBase64 string            `json:"bodyBase64"`
	Status     int               `json:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// ValidateRequestMessage checks the structural invariants a request message
// must satisfy before it is accepted into the reassembly buffer: a bounded
// non-empty id, a sane part index and count, and — for part 0 only — a
// well-formed url and method. Non-zero parts must not be rejected for
// omitting url/method/headers; those fields are only meaningful on part 0
// and are ignored elsewhere.
func ValidateRequestMessage(msg *RequestMessage) error {
	if msg.ID == "" || len(msg.ID) > maxIDLength {
		return fmt.Errorf("%w: request id must be 1-%d characters", crypto.ErrFormat, maxIDLength)
	}
	if msg.PartIndex < 0 {
		return fmt.Errorf("%w: partIndex must be non-negative", crypto.ErrFormat)
	}
	if msg.Parts <= 0 || msg.PartIndex >= msg.Parts {
		return fmt.Errorf("%w: parts must be positive and partIndex must be within range", crypto.ErrFormat)
	}
	if msg.PartIndex == 0 {
		if !strings.HasPrefix(msg.URL, "/") {
			return fmt.Errorf("%w: url must be a path starting with /", crypto.ErrFormat)
		}
		if msg.Method == "" {
			return fmt.Errorf("%w: method is required on part 0", crypto.ErrFormat)
		}
	}
	return nil
}

// ValidateResponseMessage mirrors ValidateRequestMessage for the response
// side: used by clients that reassemble the proxy's chunked response.
func ValidateResponseMessage(msg *ResponseMessage) error {
	if msg.ID == "" || len(msg.ID) > maxIDLength {
		return fmt.Errorf("%w: response id must be 1-%d characters", crypto.ErrFormat, maxIDLength)
	}
	if msg.PartIndex < 0 {
		return fmt.Errorf("%w: partIndex must be non-negative", crypto.ErrFormat)
	}
	if msg.Parts <= 0 || msg.PartIndex >= msg.Parts {
		return fmt.Errorf("%w: parts must be positive and partIndex must be within range", crypto.ErrFormat)
	}
	if msg.PartIndex == 0 && msg.Status == 0 {
		return fmt.Errorf("%w: status is required on part 0", crypto.ErrFormat)
	}
	return nil
}
