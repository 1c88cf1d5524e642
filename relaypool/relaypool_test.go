// SPDX-License-Identifier: LGPL-3.0-or-later

package relaypool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrwrap/relayproxy/crypto"
	"github.com/nostrwrap/relayproxy/event"
)

var upgrader = websocket.Upgrader{}

// testRelay is a minimal relay: it echoes back one EVENT frame whenever it
// receives a REQ, and ignores every other frame.
func newTestRelay(t *testing.T, ev *event.Event) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame []json.RawMessage
			if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
				continue
			}
			var label string
			_ = json.Unmarshal(frame[0], &label)
			if label == "REQ" && ev != nil {
				out, _ := json.Marshal([]any{"EVENT", "relayproxy", ev})
				_ = conn.WriteMessage(websocket.TextMessage, out)
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sampleEvent(t *testing.T) *event.Event {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	ev, err := event.New(event.KindGiftWrap, kp.PublicHex(), 1700000000, nil, "content")
	require.NoError(t, err)
	require.NoError(t, ev.Sign(kp))
	return ev
}

func TestConnectAndSubscribeReceivesEvent(t *testing.T) {
	ev := sampleEvent(t)
	srv := newTestRelay(t, ev)
	defer srv.Close()

	pool := New([]string{wsURL(srv)})
	require.NoError(t, pool.Connect(context.Background()))
	defer pool.Close()

	require.NoError(t, pool.Subscribe(Filter{Kinds: []int{event.KindGiftWrap}}))

	select {
	case got := <-pool.Events():
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestConnectFailsWhenNoRelayReachable(t *testing.T) {
	pool := New([]string{"ws://127.0.0.1:1"})
	err := pool.Connect(context.Background())
	assert.Error(t, err)
}

func TestSafeRelaysCapsAtMax(t *testing.T) {
	srv1 := newTestRelay(t, nil)
	defer srv1.Close()
	srv2 := newTestRelay(t, nil)
	defer srv2.Close()

	pool := New([]string{wsURL(srv1), wsURL(srv2)})
	require.NoError(t, pool.Connect(context.Background()))
	defer pool.Close()

	assert.Len(t, pool.SafeRelays(1), 1)
	assert.Len(t, pool.SafeRelays(10), 2)
}

func TestPublishReturnsPerRelayResult(t *testing.T) {
	srv := newTestRelay(t, nil)
	defer srv.Close()

	pool := New([]string{wsURL(srv)})
	require.NoError(t, pool.Connect(context.Background()))
	defer pool.Close()

	ev := sampleEvent(t)
	results := pool.Publish(context.Background(), ev)
	require.Len(t, results, 1)
	for _, err := range results {
		assert.NoError(t, err)
	}
}

func TestDecodeRelayEventRejectsMalformedFrame(t *testing.T) {
	_, ok := decodeRelayEvent([]byte("not json"))
	assert.False(t, ok)

	_, ok = decodeRelayEvent([]byte(`["NOTICE", "hello"]`))
	assert.False(t, ok)
}
