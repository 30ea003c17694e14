package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"

	"github.com/greenart7c3/Citrine-sub000/pkg/retention"
)

// processDeletion applies a kind 5 event: e tags delete stored events by
// id, a tags delete stored parameterized replaceable versions by
// address. Targets not authored by the deletion's author are left alone.
func (rl *Relay) processDeletion(ctx context.Context, ev *nostr.Event) {
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[1] == "" {
			continue
		}
		switch tag[0] {
		case "e":
			rl.deleteByID(ctx, ev, tag[1])
		case "a":
			rl.deleteByAddress(ctx, ev, tag[1])
		}
	}
}

func (rl *Relay) deleteByID(ctx context.Context, ev *nostr.Event, id string) {
	targets, err := rl.collect(ctx, nostr.Filter{IDs: []string{id}, Limit: 1})
	if err != nil {
		log.Error().Err(err).Str("target", id).Msg("failed to look up deletion target")
		return
	}
	for _, target := range targets {
		if target.PubKey != ev.PubKey {
			continue
		}
		if retention.Classify(target.Kind) == retention.Deletion {
			continue
		}
		if err := rl.deleteStored(ctx, target); err != nil {
			log.Error().Err(err).Str("target", target.ID).Msg("failed to delete event")
		}
	}
}

func (rl *Relay) deleteByAddress(ctx context.Context, ev *nostr.Event, addr string) {
	kind, pubkey, d, ok := parseAddress(addr)
	if !ok || pubkey != ev.PubKey {
		return
	}
	f := nostr.Filter{
		Authors: []string{pubkey},
		Kinds:   []int{kind},
		Until:   &ev.CreatedAt,
	}
	if retention.Classify(kind) == retention.ParameterizedReplaceable {
		f.Tags = nostr.TagMap{"d": []string{d}}
	}
	targets, err := rl.collect(ctx, f)
	if err != nil {
		log.Error().Err(err).Str("target", addr).Msg("failed to look up deletion target")
		return
	}
	for _, target := range targets {
		if err := rl.deleteStored(ctx, target); err != nil {
			log.Error().Err(err).Str("target", target.ID).Msg("failed to delete event")
		}
	}
}

// parseAddress splits a kind:pubkey:d-tag event address.
func parseAddress(addr string) (kind int, pubkey, d string, ok bool) {
	parts := strings.SplitN(addr, ":", 3)
	if len(parts) != 3 {
		return 0, "", "", false
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", "", false
	}
	return kind, parts[1], parts[2], true
}
