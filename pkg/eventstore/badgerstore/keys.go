package badgerstore

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// indexKeysForEvent computes every index key pointing at the raw event
// stored under serial. The same set must come out for save and delete, so
// everything here is derived from the event alone.
func indexKeysForEvent(ev *nostr.Event, serial []byte) [][]byte {
	keys := make([][]byte, 0, 6+len(ev.Tags))

	// by id prefix (no timestamp component)
	{
		idPrefix8, _ := hex.DecodeString(ev.ID[0 : 8*2])
		k := make([]byte, 1+8+4)
		k[0] = indexIdPrefix
		copy(k[1:], idPrefix8)
		copy(k[1+8:], serial)
		keys = append(keys, k)
	}

	// by pubkey+date
	{
		pkPrefix8, _ := hex.DecodeString(ev.PubKey[0 : 8*2])
		k := make([]byte, 1+8+4+4)
		k[0] = indexPubkeyPrefix
		copy(k[1:], pkPrefix8)
		binary.BigEndian.PutUint32(k[1+8:], uint32(ev.CreatedAt))
		copy(k[1+8+4:], serial)
		keys = append(keys, k)
	}

	// by kind+date
	{
		k := make([]byte, 1+2+4+4)
		k[0] = indexKindPrefix
		binary.BigEndian.PutUint16(k[1:], uint16(ev.Kind))
		binary.BigEndian.PutUint32(k[1+2:], uint32(ev.CreatedAt))
		copy(k[1+2+4:], serial)
		keys = append(keys, k)
	}

	// by pubkey+kind+date
	{
		pkPrefix8, _ := hex.DecodeString(ev.PubKey[0 : 8*2])
		k := make([]byte, 1+8+2+4+4)
		k[0] = indexPubkeyKindPrefix
		copy(k[1:], pkPrefix8)
		binary.BigEndian.PutUint16(k[1+8:], uint16(ev.Kind))
		binary.BigEndian.PutUint32(k[1+8+2:], uint32(ev.CreatedAt))
		copy(k[1+8+2+4:], serial)
		keys = append(keys, k)
	}

	// by tagvalue+date, single-letter tag names only, first occurrence of
	// each value
	for i, tag := range ev.Tags {
		if !tagIndexable(tag) {
			continue
		}
		dup := false
		for _, prior := range ev.Tags[:i] {
			if tagIndexable(prior) && prior[1] == tag[1] {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		k, offset := tagIndexPrefix(tag[1])
		binary.BigEndian.PutUint32(k[offset:], uint32(ev.CreatedAt))
		copy(k[offset+4:], serial)
		keys = append(keys, k)
	}

	// by date only
	{
		k := make([]byte, 1+4+4)
		k[0] = indexCreatedAtPrefix
		binary.BigEndian.PutUint32(k[1:], uint32(ev.CreatedAt))
		copy(k[1+4:], serial)
		keys = append(keys, k)
	}

	return keys
}

// tagIndexable limits tag indexing to single-letter names with values a
// query could plausibly carry.
func tagIndexable(tag nostr.Tag) bool {
	return len(tag) >= 2 && len(tag[0]) == 1 && len(tag[1]) > 0 && len(tag[1]) <= 100
}

// tagIndexPrefix allocates the full-length key for a tag value and returns
// the offset where created_at and serial are written. Address values
// (kind:pubkey:d) and 32-byte hex values get compact binary forms.
func tagIndexPrefix(tagValue string) (k []byte, offset int) {
	if kind, pkb, d, ok := addrTagElements(tagValue); ok {
		k = make([]byte, 1+2+8+len(d)+4+4)
		k[0] = indexTagAddrPrefix
		binary.BigEndian.PutUint16(k[1:], kind)
		copy(k[1+2:], pkb[0:8])
		copy(k[1+2+8:], d)
		offset = 1 + 2 + 8 + len(d)
	} else if vb, _ := hex.DecodeString(tagValue); len(vb) == 32 {
		k = make([]byte, 1+8+4+4)
		k[0] = indexTag32Prefix
		copy(k[1:], vb[0:8])
		offset = 1 + 8
	} else {
		k = make([]byte, 1+len(tagValue)+4+4)
		k[0] = indexTagPrefix
		copy(k[1:], tagValue)
		offset = 1 + len(tagValue)
	}
	return k, offset
}

func addrTagElements(tagValue string) (kind uint16, pkb []byte, d string, ok bool) {
	parts := strings.Split(tagValue, ":")
	if len(parts) != 3 {
		return 0, nil, "", false
	}
	if pkb, _ = hex.DecodeString(parts[1]); len(pkb) != 32 {
		return 0, nil, "", false
	}
	k, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, nil, "", false
	}
	return uint16(k), pkb, parts[2], true
}
