// SPDX-License-Identifier: LGPL-3.0-or-later

package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nostrwrap/relayproxy/httpclient"
)

func TestApplyNilFuncKeepsOriginal(t *testing.T) {
	resp := &httpclient.Response{Status: 200, Headers: map[string]string{}, Body: []byte("x")}
	out, transformed, fault := Apply(nil, RequestInfo{}, resp)
	assert.Same(t, resp, out)
	assert.False(t, transformed)
	assert.NoError(t, fault)
}

func TestApplyReplacesResponse(t *testing.T) {
	resp := &httpclient.Response{Status: 200, Headers: map[string]string{}, Body: []byte("x")}
	fn := func(req RequestInfo, r *httpclient.Response) (*httpclient.Response, error) {
		return &httpclient.Response{Status: 299, Headers: map[string]string{"x-y": "z"}, Body: []byte("BYE")}, nil
	}
	out, transformed, fault := Apply(fn, RequestInfo{}, resp)
	assert.True(t, transformed)
	assert.NoError(t, fault)
	assert.Equal(t, 299, out.Status)
	assert.Equal(t, "z", out.Headers["x-y"])
	assert.Equal(t, "BYE", string(out.Body))
}

func TestApplyNilReturnKeepsOriginalWithoutFault(t *testing.T) {
	resp := &httpclient.Response{Status: 200, Headers: map[string]string{}, Body: []byte("x")}
	fn := func(req RequestInfo, r *httpclient.Response) (*httpclient.Response, error) { return nil, nil }
	out, transformed, fault := Apply(fn, RequestInfo{}, resp)
	assert.Same(t, resp, out)
	assert.False(t, transformed)
	assert.NoError(t, fault, "choosing not to transform is not a fault")
}

func TestApplyErrorFallsBackToOriginalAndReportsFault(t *testing.T) {
	resp := &httpclient.Response{Status: 200, Headers: map[string]string{}, Body: []byte("x")}
	fn := func(req RequestInfo, r *httpclient.Response) (*httpclient.Response, error) {
		return nil, errors.New("boom")
	}
	out, transformed, fault := Apply(fn, RequestInfo{}, resp)
	assert.Same(t, resp, out)
	assert.False(t, transformed)
	assert.Error(t, fault)
}

func TestApplyPanicFallsBackToOriginalAndReportsFault(t *testing.T) {
	resp := &httpclient.Response{Status: 200, Headers: map[string]string{}, Body: []byte("x")}
	fn := func(req RequestInfo, r *httpclient.Response) (*httpclient.Response, error) {
		panic("transformer exploded")
	}
	out, transformed, fault := Apply(fn, RequestInfo{}, resp)
	assert.Same(t, resp, out)
	assert.False(t, transformed)
	assert.Error(t, fault)
}

func TestApplyRejectsNilHeadersAndReportsFault(t *testing.T) {
	resp := &httpclient.Response{Status: 200, Headers: map[string]string{}, Body: []byte("x")}
	fn := func(req RequestInfo, r *httpclient.Response) (*httpclient.Response, error) {
		return &httpclient.Response{Status: 200, Body: []byte("y")}, nil
	}
	out, transformed, fault := Apply(fn, RequestInfo{}, resp)
	assert.Same(t, resp, out)
	assert.False(t, transformed)
	assert.Error(t, fault)
}
