// SPDX-License-Identifier: LGPL-3.0-or-later

// Package httpclient dispatches reassembled requests to the origin server,
// collapsing multi-valued headers and translating every transport failure
// into the synthetic 500 response the pipeline publishes back to the
// requester.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request is the dispatch unit: a reassembled inner request. Its URL is a
// path resolved against the Client's configured destination prefix.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the outcome of a dispatch: either the origin's real answer or
// a synthetic one standing in for a transport failure.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Client issues origin requests with a bounded timeout and pooled
// connections. The zero value is not usable; construct with New.
type Client struct {
	destination string
	timeout    time.Duration
	http       *http.Client
}

// New builds a Client targeting destination (an origin URL prefix) with the
// given per-request timeout. The underlying transport tunes dial, idle, and
// TLS-handshake timeouts and enables HTTP/2 so the proxy reuses connections
// across many short-lived requests instead of paying a new handshake each
// time.
func New(destination string, timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Client{
		destination: strings.TrimSuffix(destination, "/"),
		timeout:     timeout,
		http:        &http.Client{Transport: transport},
	}
}

// Do performs req against destination+req.URL. Any transport error, timeout,
// or protocol error yields a synthetic 500 rather than an error return: the
// pipeline always has a response to publish.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.destination+req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return failResponse()
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return failResponse()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failResponse()
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: collapseHeaders(resp.Header),
		Body:    body,
	}
}

func failResponse() *Response {
	return &Response{Status: 500, Headers: map[string]string{}, Body: []byte("Request failed")}
}

// collapseHeaders reduces a possibly multi-valued header set to its first
// value per key, matching the single-string header shape the wire protocol
// carries.
func collapseHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if len(vv) > 0 {
			out[k] = vv[0]
		}
	}
	return out
}
