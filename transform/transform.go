// SPDX-License-Identifier: LGPL-3.0-or-later

// Package transform implements the optional response transformer plug-in:
// a trusted, in-process function that may replace a response's status,
// headers, and body before it is chunked and published.
package transform

import (
	"fmt"

	"github.com/nostrwrap/relayproxy/httpclient"
)

// RequestInfo is the subset of the inbound request a transformer may
// inspect to decide how to rewrite the response.
type RequestInfo struct {
	Method  string
	URL     string
	Headers map[string]string
}

// Func is the transformer contract: given the request and the origin's
// response, return a replacement response, or nil to keep the original. A
// panic or a returned error is treated as a transformer fault: the pipeline
// logs it and falls back to the original response untouched.
type Func func(req RequestInfo, resp *httpclient.Response) (*httpclient.Response, error)

// Apply runs fn over req/resp, recovering from panics and validating the
// shape of a non-nil replacement. The original response is always usable as
// a fallback: out is resp whenever transformed is false. fault is non-nil
// only when fn itself misbehaved (panic, returned error, or malformed
// replacement shape) so the caller can log it; fn legitimately choosing not
// to transform (nil fn, or a nil replacement with a nil error) is not a
// fault and reports fault == nil.
func Apply(fn Func, req RequestInfo, resp *httpclient.Response) (out *httpclient.Response, transformed bool, fault error) {
	if fn == nil {
		return resp, false, nil
	}

	out = resp
	defer func() {
		if r := recover(); r != nil {
			out = resp
			transformed = false
			fault = fmt.Errorf("transform: panic: %v", r)
		}
	}()

	replacement, err := fn(req, resp)
	if err != nil {
		return resp, false, fmt.Errorf("transform: fn returned error: %w", err)
	}
	if replacement == nil {
		return resp, false, nil
	}
	if err := validate(replacement); err != nil {
		return resp, false, err
	}
	return replacement, true, nil
}

func validate(r *httpclient.Response) error {
	if r.Headers == nil {
		return errShape
	}
	return nil
}

var errShape = shapeError("transform: replacement response has invalid shape")

type shapeError string

func (e shapeError) Error() string { return string(e) }
