// Package badgerstore persists events in a badger key/value database.
//
// The raw event lives under a small serial key; covering indexes map id,
// time, kind, pubkey and tag values back to that serial so filters can be
// answered with reverse range scans (newest first) plus an in-memory
// residue check for whatever the chosen index cannot express (id/author
// prefixes, search tokens, expiry).
package badgerstore

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
)

const (
	rawEventPrefix        byte = 0
	indexCreatedAtPrefix  byte = 1
	indexIdPrefix         byte = 2
	indexKindPrefix       byte = 3
	indexPubkeyPrefix     byte = 4
	indexPubkeyKindPrefix byte = 5
	indexTagPrefix        byte = 6
	indexTag32Prefix      byte = 7
	indexTagAddrPrefix    byte = 8
)

// DefaultMaxLimit bounds a single query's result set when the filter does
// not carry a smaller limit, to keep memory and wire traffic bounded.
const DefaultMaxLimit = 10000

var _ eventstore.Store = (*Store)(nil)
var _ eventstore.Wiper = (*Store)(nil)

type Store struct {
	Path     string
	MaxLimit int

	*badger.DB
	seq *badger.Sequence
}

func (s *Store) Init() error {
	db, err := badger.Open(badger.DefaultOptions(s.Path))
	if err != nil {
		return fmt.Errorf("failed to open badger at %s: %w", s.Path, err)
	}
	s.DB = db
	if s.seq, err = db.GetSequence([]byte("events"), 1000); err != nil {
		return err
	}
	if s.MaxLimit == 0 {
		s.MaxLimit = DefaultMaxLimit
	}
	return nil
}

func (s *Store) Close() {
	if err := s.seq.Release(); err != nil {
		log.Warn().Err(err).Msg("failed to release event sequence")
	}
	if err := s.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close badger")
	}
}

// Wipe empties the event store, dropping raw events and every index.
func (s *Store) Wipe() error {
	prefixes := make([][]byte, 0, 9)
	for p := rawEventPrefix; p <= indexTagAddrPrefix; p++ {
		prefixes = append(prefixes, []byte{p})
	}
	if err := s.DB.DropPrefix(prefixes...); err != nil {
		return err
	}
	if err := s.DB.RunValueLogGC(0.8); err != nil && err != badger.ErrNoRewrite {
		return err
	}
	return nil
}

// serial returns the next raw event key.
func (s *Store) serial() []byte {
	v, _ := s.seq.Next()
	k := make([]byte, 5)
	k[0] = rawEventPrefix
	binary.BigEndian.PutUint32(k[1:], uint32(v))
	return k
}
