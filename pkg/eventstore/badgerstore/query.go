package badgerstore

import (
	"context"
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/nbd-wtf/go-nostr"
	nostr_binary "github.com/nbd-wtf/go-nostr/binary"
	"github.com/rs/zerolog/log"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
	"github.com/greenart7c3/Citrine-sub000/pkg/match"
)

func (s *Store) QueryEvents(ctx context.Context, f nostr.Filter) (chan *nostr.Event, error) {
	ch := make(chan *nostr.Event)

	limit := s.MaxLimit
	if f.Limit > 0 && f.Limit < limit {
		limit = f.Limit
	}

	go func() {
		defer close(ch)
		events, err := s.queryAll(f, limit)
		if err != nil {
			log.Error().Err(err).Str("filter", f.String()).Msg("query failed")
			return
		}
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *Store) CountEvents(ctx context.Context, f nostr.Filter) (int, error) {
	// counts report the cardinality of the whole match set; the filter's
	// limit only applies to replays
	events, err := s.queryAll(f, 0)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// queryAll walks the planned index scans newest first, decodes candidates,
// applies the full filter in memory and merges the per-scan batches into
// one descending result. limit 0 means unbounded.
func (s *Store) queryAll(f nostr.Filter, limit int) ([]*nostr.Event, error) {
	scans, since := planQueries(f)

	var results []*nostr.Event
	seen := make(map[string]struct{})

	err := s.View(func(txn *badger.Txn) error {
		rawKey := make([]byte, 5)
		rawKey[0] = rawEventPrefix

		for _, sc := range scans {
			it := txn.NewIterator(badger.IteratorOptions{
				Reverse:        true,
				PrefetchValues: false,
				Prefix:         sc.prefix,
			})

			pulled := 0
			for it.Seek(sc.startingPoint); it.Valid(); it.Next() {
				key := it.Item().Key()
				serialOffset := len(key) - 4

				if !sc.skipTimestamp {
					createdAt := binary.BigEndian.Uint32(key[serialOffset-4 : serialOffset])
					if createdAt < since {
						break
					}
				}

				copy(rawKey[1:], key[serialOffset:])
				item, err := txn.Get(rawKey)
				if err != nil {
					log.Error().Err(err).Hex("key", key).Msg("dangling index entry")
					continue
				}

				var ev nostr.Event
				if err := item.Value(func(val []byte) error {
					return nostr_binary.Unmarshal(val, &ev)
				}); err != nil {
					log.Error().Err(err).Hex("key", rawKey).Msg("failed to decode stored event")
					continue
				}

				// the index only narrowed the candidate set; the filter
				// decides, including prefixes, search and expiry
				if !match.Event(f, &ev) {
					continue
				}
				if _, dup := seen[ev.ID]; dup {
					continue
				}
				seen[ev.ID] = struct{}{}

				results = append(results, &ev)
				pulled++
				if limit > 0 && pulled >= limit {
					break
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventstore.SortDescending(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
