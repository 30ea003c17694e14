// Package retention classifies events by the storage treatment their kind
// mandates and evaluates NIP-40 expiration tags.
package retention

import (
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Class is the retention class derived from an event kind.
type Class int

const (
	Regular Class = iota
	Replaceable
	ParameterizedReplaceable
	Ephemeral
	Deletion
)

func (c Class) String() string {
	switch c {
	case Replaceable:
		return "replaceable"
	case ParameterizedReplaceable:
		return "parameterized-replaceable"
	case Ephemeral:
		return "ephemeral"
	case Deletion:
		return "deletion"
	default:
		return "regular"
	}
}

// ReplaceableRetainCount is how many events are kept per (pubkey, kind) in
// the non-parameterized replaceable range. More than one is kept so brief
// reordering between multiple writers doesn't drop a still-wanted event.
const ReplaceableRetainCount = 5

// Classify maps a kind to its retention class. Kind 5 takes precedence over
// the range checks.
func Classify(kind int) Class {
	switch {
	case kind == nostr.KindDeletion:
		return Deletion
	case isEphemeral(kind):
		return Ephemeral
	case isParameterizedReplaceable(kind):
		return ParameterizedReplaceable
	case isReplaceable(kind):
		return Replaceable
	default:
		return Regular
	}
}

func isReplaceable(kind int) bool {
	return kind == 0 || kind == 3 || (kind >= 10000 && kind < 20000)
}

func isEphemeral(kind int) bool {
	return kind >= 20000 && kind < 30000
}

func isParameterizedReplaceable(kind int) bool {
	return kind >= 30000 && kind < 40000
}

// Expiration returns the unix timestamp carried in the event's expiration
// tag, if it has one with a parseable value.
func Expiration(tags nostr.Tags) (nostr.Timestamp, bool) {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == "expiration" {
			ts, err := strconv.ParseInt(tag[1], 10, 64)
			if err != nil {
				continue
			}
			return nostr.Timestamp(ts), true
		}
	}
	return 0, false
}

// IsExpired reports whether the event carries an expiration tag that has
// already passed at the given instant.
func IsExpired(ev *nostr.Event, now nostr.Timestamp) bool {
	exp, ok := Expiration(ev.Tags)
	return ok && now > exp
}
