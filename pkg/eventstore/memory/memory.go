// Package memory is an in-memory event store backed by a sorted slice.
// It serves tests and volatile relay profiles; the contract is identical to
// the badger backend minus durability.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/exp/slices"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
	"github.com/greenart7c3/Citrine-sub000/pkg/match"
)

var _ eventstore.Store = (*Store)(nil)

// Store keeps events ordered newest first.
type Store struct {
	MaxLimit int

	mu     sync.RWMutex
	events []*nostr.Event
}

func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]*nostr.Event, 0, 512)
	if s.MaxLimit == 0 {
		s.MaxLimit = 10000
	}
	return nil
}

func (s *Store) Close() {}

func (s *Store) QueryEvents(ctx context.Context, f nostr.Filter) (chan *nostr.Event, error) {
	ch := make(chan *nostr.Event)

	limit := s.MaxLimit
	if f.Limit > 0 && f.Limit < limit {
		limit = f.Limit
	}

	s.mu.RLock()
	start, end := s.timeBounds(f)
	candidates := make([]*nostr.Event, end-start)
	copy(candidates, s.events[start:end])
	s.mu.RUnlock()

	go func() {
		defer close(ch)
		sent := 0
		for _, ev := range candidates {
			if sent == limit {
				return
			}
			if !match.Event(f, ev) {
				continue
			}
			select {
			case ch <- ev:
				sent++
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *Store) CountEvents(ctx context.Context, f nostr.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, ev := range s.events {
		if match.Event(f, ev) {
			count++
		}
	}
	return count, nil
}

func (s *Store) SaveEvent(ctx context.Context, ev *nostr.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, found := slices.BinarySearchFunc(s.events, ev, eventComparator)
	if found {
		return eventstore.ErrDupEvent
	}
	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, ev *nostr.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, found := slices.BinarySearchFunc(s.events, ev, eventComparator)
	if !found {
		return nil
	}
	copy(s.events[idx:], s.events[idx+1:])
	s.events = s.events[:len(s.events)-1]
	return nil
}

func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
	return nil
}

// timeBounds narrows the scanned window using the descending ordering.
// Expired events keep their slot until pruned; match.Event still excludes
// them from results.
func (s *Store) timeBounds(f nostr.Filter) (start, end int) {
	start = 0
	end = len(s.events)
	if f.Until != nil {
		start, _ = slices.BinarySearchFunc(s.events, *f.Until, timestampComparator)
	}
	if f.Since != nil {
		end, _ = slices.BinarySearchFunc(s.events, *f.Since-1, timestampComparator)
	}
	if end < start {
		end = start
	}
	return start, end
}

func timestampComparator(ev *nostr.Event, t nostr.Timestamp) int {
	return int(t) - int(ev.CreatedAt)
}

// eventComparator orders newest first, larger id first on ties, so the
// slice ordering agrees with eventstore.SortDescending.
func eventComparator(a, b *nostr.Event) int {
	if a.CreatedAt != b.CreatedAt {
		return int(b.CreatedAt) - int(a.CreatedAt)
	}
	return strings.Compare(b.ID, a.ID)
}
