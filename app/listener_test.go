package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFrames(t *testing.T, conn *recorderConn, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(conn.sent()) >= n
	}, time.Second, 5*time.Millisecond)
}

func TestRegistrySetAndRemove(t *testing.T) {
	rl := newTestRelay(t, nil)
	ws := testSocket(&recorderConn{})

	canceled := false
	rl.listeners.Set(ws, "sub1", nostr.Filters{{}}, func() { canceled = true })

	var seen []string
	rl.listeners.Range(func(_ *WebSocket, l *Listener) bool {
		seen = append(seen, l.id)
		return true
	})
	assert.Equal(t, []string{"sub1"}, seen)

	assert.True(t, rl.listeners.RemoveID(ws, "sub1"))
	assert.True(t, canceled)
	assert.False(t, rl.listeners.RemoveID(ws, "sub1"), "second remove is a no-op")
}

func TestRegistryReplaceSameID(t *testing.T) {
	rl := newTestRelay(t, nil)
	ws := testSocket(&recorderConn{})

	firstCanceled := false
	rl.listeners.Set(ws, "sub1", nostr.Filters{{Kinds: []int{1}}}, func() { firstCanceled = true })
	rl.listeners.Set(ws, "sub1", nostr.Filters{{Kinds: []int{7}}}, func() {})

	assert.True(t, firstCanceled, "replaced subscription is canceled")

	count := 0
	rl.listeners.Range(func(_ *WebSocket, l *Listener) bool {
		count++
		assert.Equal(t, []int{7}, l.filters[0].Kinds)
		return true
	})
	assert.Equal(t, 1, count)
}

func TestRegistrySetOnClosedConnUndoesItself(t *testing.T) {
	rl := newTestRelay(t, nil)
	ws := testSocket(&recorderConn{})
	require.NoError(t, ws.Close())

	canceled := false
	rl.listeners.Set(ws, "late", nostr.Filters{{}}, func() { canceled = true })

	count := 0
	rl.listeners.Range(func(_ *WebSocket, _ *Listener) bool {
		count++
		return true
	})
	assert.Zero(t, count, "registration racing teardown leaves nothing behind")
	assert.True(t, canceled)
}

func TestRegistryRemoveConn(t *testing.T) {
	rl := newTestRelay(t, nil)
	ws := testSocket(&recorderConn{})

	rl.listeners.Set(ws, "a", nostr.Filters{{}}, func() {})
	rl.listeners.Set(ws, "b", nostr.Filters{{}}, func() {})
	rl.listeners.RemoveConn(ws)

	count := 0
	rl.listeners.Range(func(_ *WebSocket, _ *Listener) bool {
		count++
		return true
	})
	assert.Zero(t, count)
}

func TestRegistryEvictsOldestAtCapacity(t *testing.T) {
	rl := newTestRelay(t, &Config{MaxSubscriptions: 2})
	conn := &recorderConn{}
	ws := testSocket(conn)

	rl.listeners.Set(ws, "oldest", nostr.Filters{{}}, func() {})
	rl.listeners.Set(ws, "middle", nostr.Filters{{}}, func() {})
	rl.listeners.Set(ws, "newest", nostr.Filters{{}}, func() {})

	var ids []string
	rl.listeners.Range(func(_ *WebSocket, l *Listener) bool {
		ids = append(ids, l.id)
		return true
	})
	assert.Len(t, ids, 2)
	assert.NotContains(t, ids, "oldest")

	waitFrames(t, conn, 1)
	frames := conn.decoded(t)
	require.Len(t, frames, 1)
	var label, subID, reason string
	require.NoError(t, json.Unmarshal(frames[0][0], &label))
	require.NoError(t, json.Unmarshal(frames[0][1], &subID))
	require.NoError(t, json.Unmarshal(frames[0][2], &reason))
	assert.Equal(t, "CLOSED", label)
	assert.Equal(t, "oldest", subID)
	assert.Equal(t, "restricted: too many concurrent subscriptions", reason)
}

func TestRegistryExplicitRemoveSendsNoClosed(t *testing.T) {
	rl := newTestRelay(t, &Config{MaxSubscriptions: 2})
	conn := &recorderConn{}
	ws := testSocket(conn)

	rl.listeners.Set(ws, "a", nostr.Filters{{}}, func() {})
	rl.listeners.RemoveID(ws, "a")

	assert.Empty(t, conn.sent())
}

func TestBroadcastEvent(t *testing.T) {
	rl := newTestRelay(t, nil)
	sk := nostr.GeneratePrivateKey()
	ev := signedEvent(t, sk, 1, "fan out", nil, nostr.Now())

	originConn := &recorderConn{}
	origin := testSocket(originConn)
	rl.listeners.Set(origin, "sub", nostr.Filters{{}}, func() {})

	matchingConn := &recorderConn{}
	matching := testSocket(matchingConn)
	rl.listeners.Set(matching, "notes", nostr.Filters{{Kinds: []int{1}}}, func() {})

	otherConn := &recorderConn{}
	other := testSocket(otherConn)
	rl.listeners.Set(other, "reactions", nostr.Filters{{Kinds: []int{7}}}, func() {})

	rl.BroadcastEvent(ev, origin)
	waitFrames(t, matchingConn, 1)

	assert.Empty(t, originConn.sent(), "origin connection gets no echo")
	assert.Empty(t, otherConn.sent(), "non-matching subscription stays quiet")

	frames := matchingConn.decoded(t)
	require.Len(t, frames, 1)
	var label, subID string
	require.NoError(t, json.Unmarshal(frames[0][0], &label))
	require.NoError(t, json.Unmarshal(frames[0][1], &subID))
	assert.Equal(t, "EVENT", label)
	assert.Equal(t, "notes", subID)

	var got nostr.Event
	require.NoError(t, json.Unmarshal(frames[0][2], &got))
	assert.Equal(t, ev.ID, got.ID)
}

func TestBroadcastStopsAfterClose(t *testing.T) {
	rl := newTestRelay(t, nil)
	sk := nostr.GeneratePrivateKey()

	conn := &recorderConn{}
	ws := testSocket(conn)
	rl.listeners.Set(ws, "sub", nostr.Filters{{}}, func() {})

	closeEnv := nostr.CloseEnvelope("sub")
	rl.handleClose(ws, &closeEnv)

	rl.BroadcastEvent(signedEvent(t, sk, 1, "late", nil, nostr.Now()), nil)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, conn.sent())
}

func TestHandleReqReplaysThenEOSE(t *testing.T) {
	rl := newTestRelay(t, nil)
	sk := nostr.GeneratePrivateKey()

	older := signedEvent(t, sk, 1, "older", nil, nostr.Now()-10)
	newer := signedEvent(t, sk, 1, "newer", nil, nostr.Now())
	for _, ev := range []*nostr.Event{older, newer} {
		accepted, _ := rl.AddEvent(context.Background(), ev)
		require.True(t, accepted)
	}

	conn := &recorderConn{}
	ws := testSocket(conn)
	rl.handleReq(context.Background(), ws, &nostr.ReqEnvelope{
		SubscriptionID: "backlog",
		Filters:        nostr.Filters{{Kinds: []int{1}}},
	})

	labels := conn.labels(t)
	require.Equal(t, []string{"EVENT", "EVENT", "EOSE"}, labels)

	frames := conn.decoded(t)
	var first nostr.Event
	require.NoError(t, json.Unmarshal(frames[0][2], &first))
	assert.Equal(t, newer.ID, first.ID, "replay is newest first")

	// the subscription stays live after EOSE
	live := signedEvent(t, sk, 1, "live", nil, nostr.Now())
	rl.BroadcastEvent(live, nil)
	waitFrames(t, conn, 4)
	assert.Equal(t, []string{"EVENT", "EVENT", "EOSE", "EVENT"}, conn.labels(t))
}
