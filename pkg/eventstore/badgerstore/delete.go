package badgerstore

import (
	"context"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"
)

var deletesSinceGC atomic.Uint32

func (s *Store) DeleteEvent(ctx context.Context, ev *nostr.Event) error {
	deleted := false
	err := s.Update(func(txn *badger.Txn) error {
		var err error
		deleted, err = s.delete(txn, ev)
		return err
	})
	if err != nil {
		return err
	}

	// value log space is only reclaimed by GC, so run it every so often
	// after real deletions
	if deleted && deletesSinceGC.Add(1)%256 == 0 {
		if err := s.RunValueLogGC(0.8); err != nil && err != badger.ErrNoRewrite {
			log.Warn().Err(err).Msg("badger value log gc failed")
		}
	}
	return nil
}

func (s *Store) delete(txn *badger.Txn, ev *nostr.Event) (bool, error) {
	serial, found := findSerial(txn, ev.ID)
	if !found {
		return false, nil
	}

	for _, k := range indexKeysForEvent(ev, serial) {
		if err := txn.Delete(k); err != nil {
			return false, err
		}
	}

	raw := make([]byte, 5)
	raw[0] = rawEventPrefix
	copy(raw[1:], serial)
	return true, txn.Delete(raw)
}
