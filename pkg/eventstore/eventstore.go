// Package eventstore defines the persistence contract the relay core relies
// on. Backends provide indexed lookup; retention policy stays in the
// admission pipeline.
package eventstore

import (
	"context"
	"errors"
	"sort"

	"github.com/nbd-wtf/go-nostr"
)

var (
	// ErrDupEvent is returned by SaveEvent when the id is already stored.
	// The connection layer reports it as a successful acknowledgment.
	ErrDupEvent = errors.New("duplicate: event already exists")
)

// Store is a persistence layer for nostr events handled by the relay.
type Store interface {
	// Init is called once before the store is used.
	Init() error

	// Close frees the store's resources.
	Close()

	// QueryEvents returns a channel delivering matching events newest
	// first; the channel is closed after the last event. The filter's
	// limit (or the backend's cap) bounds the result.
	QueryEvents(ctx context.Context, f nostr.Filter) (chan *nostr.Event, error)

	// CountEvents returns the cardinality of the match set. Limit is
	// ignored.
	CountEvents(ctx context.Context, f nostr.Filter) (int, error)

	// SaveEvent stores an event with no side effects.
	SaveEvent(ctx context.Context, ev *nostr.Event) error

	// DeleteEvent removes an event and its index entries, no side effects.
	DeleteEvent(ctx context.Context, ev *nostr.Event) error
}

// Wiper is implemented by backends that can drop all stored data.
type Wiper interface {
	Wipe() error
}

// SortDescending orders events newest first, ties broken by the larger id
// first, matching the replacement tie-break.
func SortDescending(events []*nostr.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt != events[j].CreatedAt {
			return events[i].CreatedAt > events[j].CreatedAt
		}
		return events[i].ID > events[j].ID
	})
}

// IsNewer reports whether candidate should replace incumbent under the
// replaceable-kind rules: strictly newer, or same timestamp with the
// lexicographically larger id.
func IsNewer(candidate, incumbent *nostr.Event) bool {
	if candidate.CreatedAt != incumbent.CreatedAt {
		return candidate.CreatedAt > incumbent.CreatedAt
	}
	return candidate.ID > incumbent.ID
}
