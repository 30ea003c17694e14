package memory

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := &Store{}
	require.NoError(t, s.Init())
	return s
}

func mkEvent(id string, createdAt nostr.Timestamp, kind int) *nostr.Event {
	return &nostr.Event{ID: id, CreatedAt: createdAt, Kind: kind}
}

func drain(t *testing.T, ch chan *nostr.Event) []*nostr.Event {
	t.Helper()
	var out []*nostr.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestSaveAndQueryOrdering(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEvent(ctx, mkEvent("aa", 100, 1)))
	require.NoError(t, s.SaveEvent(ctx, mkEvent("bb", 300, 1)))
	require.NoError(t, s.SaveEvent(ctx, mkEvent("cc", 200, 1)))
	// same timestamp, larger id sorts first
	require.NoError(t, s.SaveEvent(ctx, mkEvent("dd", 200, 1)))

	ch, err := s.QueryEvents(ctx, nostr.Filter{})
	require.NoError(t, err)
	got := drain(t, ch)

	require.Len(t, got, 4)
	assert.Equal(t, "bb", got[0].ID)
	assert.Equal(t, "dd", got[1].ID)
	assert.Equal(t, "cc", got[2].ID)
	assert.Equal(t, "aa", got[3].ID)
}

func TestSaveDuplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ev := mkEvent("aa", 100, 1)
	require.NoError(t, s.SaveEvent(ctx, ev))
	assert.ErrorIs(t, s.SaveEvent(ctx, ev), eventstore.ErrDupEvent)
}

func TestQueryTimeBounds(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveEvent(ctx,
			mkEvent(string(rune('a'+i)), nostr.Timestamp(i*100), 1)))
	}

	since := nostr.Timestamp(200)
	until := nostr.Timestamp(400)
	ch, err := s.QueryEvents(ctx, nostr.Filter{Since: &since, Until: &until})
	require.NoError(t, err)
	got := drain(t, ch)

	require.Len(t, got, 3)
	assert.Equal(t, nostr.Timestamp(400), got[0].CreatedAt)
	assert.Equal(t, nostr.Timestamp(200), got[2].CreatedAt)
}

func TestQueryLimit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.SaveEvent(ctx,
			mkEvent(string(rune('a'+i)), nostr.Timestamp(i), 1)))
	}

	ch, err := s.QueryEvents(ctx, nostr.Filter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, drain(t, ch), 3)

	// counts ignore the limit
	n, err := s.CountEvents(ctx, nostr.Filter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestDeleteEvent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ev := mkEvent("aa", 100, 1)
	require.NoError(t, s.SaveEvent(ctx, ev))
	require.NoError(t, s.DeleteEvent(ctx, ev))
	// deleting again is a no-op
	require.NoError(t, s.DeleteEvent(ctx, ev))

	n, err := s.CountEvents(ctx, nostr.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWipe(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEvent(ctx, mkEvent("aa", 100, 1)))
	require.NoError(t, s.Wipe())

	n, err := s.CountEvents(ctx, nostr.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
