package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/minio/sha256-simd"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
	"github.com/greenart7c3/Citrine-sub000/pkg/retention"
)

// AddEvent runs the full admission pipeline on one incoming event:
// validation, policy, then the retention behavior of the event's kind.
// The returned reason goes into the OK envelope; a duplicate comes back
// accepted with a "duplicate:" reason and no side effects.
func (rl *Relay) AddEvent(ctx context.Context, ev *nostr.Event) (accepted bool, reason string) {
	if ev == nil {
		return false, "error: empty event"
	}

	hash := sha256.Sum256(ev.Serialize())
	if hex.EncodeToString(hash[:]) != ev.ID {
		return false, "invalid: event id hash verification failed"
	}
	if ok, err := ev.CheckSignature(); err != nil {
		return false, "error: failed to verify signature"
	} else if !ok {
		return false, "invalid: signature is invalid"
	}
	if retention.IsExpired(ev, nostr.Now()) {
		return false, "invalid: event is expired"
	}
	if ok, rejectReason := rl.policyAllows(ev); !ok {
		return false, rejectReason
	}

	class := retention.Classify(ev.Kind)
	if class == retention.Ephemeral {
		return true, ""
	}

	// serialize stores per (pubkey, kind) so concurrent replaceable
	// writes cannot each see the other as absent
	unlock := namedLock(fmt.Sprintf("%d:%s", ev.Kind, ev.PubKey))
	defer unlock()

	saveCtx, cancelSave := context.WithTimeout(ctx, storeTimeout)
	err := rl.Store.SaveEvent(saveCtx, ev)
	cancelSave()
	if err != nil {
		if errors.Is(err, eventstore.ErrDupEvent) {
			// a resubmission is acknowledged, not an error
			return true, err.Error()
		}
		log.Error().Err(err).Str("id", ev.ID).Msg("failed to save event")
		return false, "error: failed to save event"
	}

	switch class {
	case retention.Deletion:
		rl.processDeletion(ctx, ev)
	case retention.Replaceable:
		rl.pruneReplaceable(ctx, ev, retention.ReplaceableRetainCount)
	case retention.ParameterizedReplaceable:
		rl.pruneParameterized(ctx, ev)
	}

	return true, ""
}

// pruneReplaceable keeps only the newest retain versions of a
// replaceable event for its (pubkey, kind).
func (rl *Relay) pruneReplaceable(ctx context.Context, ev *nostr.Event, retain int) {
	versions, err := rl.collect(ctx, nostr.Filter{
		Authors: []string{ev.PubKey},
		Kinds:   []int{ev.Kind},
	})
	if err != nil {
		log.Error().Err(err).Str("id", ev.ID).Msg("failed to query replaceable versions")
		return
	}
	eventstore.SortDescending(versions)
	for _, old := range versions[min(retain, len(versions)):] {
		if err := rl.deleteStored(ctx, old); err != nil {
			log.Error().Err(err).Str("id", old.ID).Msg("failed to prune replaced event")
		}
	}
}

// pruneParameterized keeps only the newest version of a parameterized
// replaceable event for its (pubkey, kind, d tag).
func (rl *Relay) pruneParameterized(ctx context.Context, ev *nostr.Event) {
	d := ev.Tags.GetD()
	versions, err := rl.collect(ctx, nostr.Filter{
		Authors: []string{ev.PubKey},
		Kinds:   []int{ev.Kind},
		Tags:    nostr.TagMap{"d": []string{d}},
	})
	if err != nil {
		log.Error().Err(err).Str("id", ev.ID).Msg("failed to query parameterized versions")
		return
	}
	eventstore.SortDescending(versions)
	for _, old := range versions[min(1, len(versions)):] {
		if err := rl.deleteStored(ctx, old); err != nil {
			log.Error().Err(err).Str("id", old.ID).Msg("failed to prune replaced event")
		}
	}
}

// deleteStored bounds a store deletion the same way reads are bounded.
func (rl *Relay) deleteStored(ctx context.Context, ev *nostr.Event) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return rl.Store.DeleteEvent(ctx, ev)
}

// collect drains a store query into a slice.
func (rl *Relay) collect(ctx context.Context, f nostr.Filter) ([]*nostr.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	ch, err := rl.Store.QueryEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []*nostr.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out, nil
}
