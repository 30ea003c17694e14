package badgerstore

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/nbd-wtf/go-nostr"
)

// scan is one index range to walk in reverse (newest first).
type scan struct {
	prefix        []byte
	startingPoint []byte
	skipTimestamp bool
}

// planQueries picks the narrowest usable index for the filter and returns
// one scan per index value. The scans only narrow the candidate set; every
// decoded event is still checked against the whole filter, so prefix ids,
// prefix authors, search and expiry need no special casing here.
//
// Selection order: full-length ids beat everything; then tag values, then
// author(+kind), then kind, then the bare time index. Prefix-form ids or
// authors cannot use an equality index and fall through to the next choice.
func planQueries(f nostr.Filter) (scans []scan, since uint32) {
	defer func() {
		var until uint32 = math.MaxUint32
		if f.Until != nil && *f.Until >= 0 && int64(*f.Until) < int64(math.MaxUint32)-1 {
			until = uint32(*f.Until) + 1
		}
		for i, sc := range scans {
			sp := until
			if sc.skipTimestamp {
				// no timestamp in these keys; seek past every serial
				sp = math.MaxUint32
			}
			scans[i].startingPoint = binary.BigEndian.AppendUint32(sc.prefix, sp)
		}
		if f.Since != nil && *f.Since > 0 {
			since = uint32(*f.Since)
		}
	}()

	if len(f.IDs) > 0 && allFullLength(f.IDs) {
		scans = make([]scan, len(f.IDs))
		for i, id := range f.IDs {
			prefix := make([]byte, 1+8)
			prefix[0] = indexIdPrefix
			hex.Decode(prefix[1:], []byte(id[0:8*2]))
			scans[i] = scan{prefix: prefix, skipTimestamp: true}
		}
		return scans, since
	}

	if name, values := narrowestTag(f.Tags); name != "" {
		scans = make([]scan, len(values))
		for i, value := range values {
			k, offset := tagIndexPrefix(value)
			scans[i] = scan{prefix: k[0:offset]}
		}
		return scans, since
	}

	if len(f.Authors) > 0 && allFullLength(f.Authors) {
		if len(f.Kinds) == 0 {
			scans = make([]scan, len(f.Authors))
			for i, pk := range f.Authors {
				prefix := make([]byte, 1+8)
				prefix[0] = indexPubkeyPrefix
				hex.Decode(prefix[1:], []byte(pk[0:8*2]))
				scans[i] = scan{prefix: prefix}
			}
		} else {
			scans = make([]scan, 0, len(f.Authors)*len(f.Kinds))
			for _, pk := range f.Authors {
				for _, kind := range f.Kinds {
					prefix := make([]byte, 1+8+2)
					prefix[0] = indexPubkeyKindPrefix
					hex.Decode(prefix[1:], []byte(pk[0:8*2]))
					binary.BigEndian.PutUint16(prefix[1+8:], uint16(kind))
					scans = append(scans, scan{prefix: prefix})
				}
			}
		}
		return scans, since
	}

	if len(f.Kinds) > 0 {
		scans = make([]scan, len(f.Kinds))
		for i, kind := range f.Kinds {
			prefix := make([]byte, 1+2)
			prefix[0] = indexKindPrefix
			binary.BigEndian.PutUint16(prefix[1:], uint16(kind))
			scans[i] = scan{prefix: prefix}
		}
		return scans, since
	}

	return []scan{{prefix: []byte{indexCreatedAtPrefix}}}, since
}

func allFullLength(hexes []string) bool {
	for _, h := range hexes {
		if len(h) != 64 {
			return false
		}
	}
	return true
}

// narrowestTag picks the filter tag name with the fewest values, the
// cheapest set of index ranges to walk.
func narrowestTag(tags nostr.TagMap) (string, []string) {
	best := ""
	var bestValues []string
	for name, values := range tags {
		if len(values) == 0 {
			continue
		}
		if best == "" || len(values) < len(bestValues) {
			best = name
			bestValues = values
		}
	}
	return best, bestValues
}
