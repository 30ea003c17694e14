// Package match evaluates filters against events for live fan-out and for
// the residue predicate of index scans.
//
// It deliberately does not reuse nostr.Filter.Matches: ids and authors are
// prefix-matched here, the search field is a tokenized full-text predicate,
// and expired events never match.
package match

import (
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/greenart7c3/Citrine-sub000/pkg/retention"
)

// Event reports whether the event satisfies every populated field of the
// filter. Empty fields constrain nothing.
func Event(f nostr.Filter, ev *nostr.Event) bool {
	if ev == nil {
		return false
	}
	if retention.IsExpired(ev, nostr.Now()) {
		return false
	}
	if len(f.IDs) > 0 && !hasPrefixAny(ev.ID, f.IDs) {
		return false
	}
	if len(f.Authors) > 0 && !hasPrefixAny(ev.PubKey, f.Authors) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	if !Tags(f, ev) {
		return false
	}
	if !Search(f.Search, ev.Content) {
		return false
	}
	return true
}

// Any OR-reduces Event over a filter set.
func Any(ff nostr.Filters, ev *nostr.Event) bool {
	for _, f := range ff {
		if Event(f, ev) {
			return true
		}
	}
	return false
}

// Tags checks the filter's tag map: every tag name present in the filter
// must be satisfied by at least one of the event's values for that name.
func Tags(f nostr.Filter, ev *nostr.Event) bool {
	for name, values := range f.Tags {
		if len(values) == 0 {
			continue
		}
		if !ev.Tags.ContainsAny(name, values) {
			return false
		}
	}
	return true
}

// Search reports whether every token of the query appears in the content's
// token set. A blank query disables the predicate.
func Search(query, content string) bool {
	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return true
	}
	cTokens := Tokenize(content)
	for tok := range qTokens {
		if _, ok := cTokens[tok]; !ok {
			return false
		}
	}
	return true
}

// Tokenize splits on runs of non-ASCII-alphanumeric bytes, lowercases and
// deduplicates. Non-ASCII characters break tokens; this mirrors the
// behavior clients already depend on and is not widened here.
func Tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + 'a' - 'A')
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func hasPrefixAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}
