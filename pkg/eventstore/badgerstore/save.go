package badgerstore

import (
	"context"
	"encoding/hex"

	"github.com/dgraph-io/badger/v4"
	"github.com/nbd-wtf/go-nostr"
	nostr_binary "github.com/nbd-wtf/go-nostr/binary"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
)

func (s *Store) SaveEvent(ctx context.Context, ev *nostr.Event) error {
	return s.Update(func(txn *badger.Txn) error {
		if _, found := findSerial(txn, ev.ID); found {
			return eventstore.ErrDupEvent
		}

		bin, err := nostr_binary.Marshal(ev)
		if err != nil {
			return err
		}

		serial := s.serial()
		if err := txn.Set(serial, bin); err != nil {
			return err
		}
		for _, k := range indexKeysForEvent(ev, serial[1:]) {
			if err := txn.Set(k, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// findSerial resolves an event id to the serial of its raw record via the
// id index.
func findSerial(txn *badger.Txn, id string) ([]byte, bool) {
	idPrefix8, _ := hex.DecodeString(id[0 : 8*2])
	prefix := make([]byte, 1+8)
	prefix[0] = indexIdPrefix
	copy(prefix[1:], idPrefix8)

	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	defer it.Close()
	it.Seek(prefix)
	if it.ValidForPrefix(prefix) {
		key := it.Item().Key()
		serial := make([]byte, 4)
		copy(serial, key[1+8:])
		return serial, true
	}
	return nil, false
}
