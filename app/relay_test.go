package app

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore/memory"
)

func newTestRelay(t *testing.T, conf *Config) *Relay {
	t.Helper()
	if conf == nil {
		conf = &Config{}
	}
	if conf.Name == "" {
		conf.Name = "test relay"
	}
	if conf.MaxLimit == 0 {
		conf.MaxLimit = 500
	}
	if conf.MaxSubscriptions == 0 {
		conf.MaxSubscriptions = 20
	}
	store := &memory.Store{MaxLimit: conf.MaxLimit}
	require.NoError(t, store.Init())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRelay(ctx, cancel, conf, store)
}

// recorderConn captures everything written to it.
type recorderConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recorderConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *recorderConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *recorderConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *recorderConn) Close() error                              { return nil }

func (c *recorderConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// decoded returns each captured frame as a raw JSON array.
func (c *recorderConn) decoded(t *testing.T) [][]json.RawMessage {
	t.Helper()
	var out [][]json.RawMessage
	for _, frame := range c.sent() {
		var arr []json.RawMessage
		require.NoError(t, json.Unmarshal(frame, &arr))
		out = append(out, arr)
	}
	return out
}

func (c *recorderConn) labels(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, arr := range c.decoded(t) {
		var label string
		require.NoError(t, json.Unmarshal(arr[0], &label))
		out = append(out, label)
	}
	return out
}

func testSocket(conn *recorderConn) *WebSocket {
	return NewWebSocket(conn, &http.Request{RemoteAddr: "127.0.0.1:12345"})
}

func signedEvent(t *testing.T, sk string, kind int, content string,
	tags nostr.Tags, createdAt nostr.Timestamp) *nostr.Event {
	t.Helper()
	ev := &nostr.Event{
		Kind:      kind,
		Content:   content,
		Tags:      tags,
		CreatedAt: createdAt,
	}
	require.NoError(t, ev.Sign(sk))
	return ev
}

func storedIDs(t *testing.T, rl *Relay, f nostr.Filter) []string {
	t.Helper()
	events, err := rl.collect(context.Background(), f)
	require.NoError(t, err)
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}
