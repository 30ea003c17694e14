package app

import (
	"fmt"
	"slices"

	"github.com/nbd-wtf/go-nostr"
)

// policyAllows runs the configured admission policies. An empty policy
// list admits everything of its class; rejections carry a "blocked:"
// reason for the OK envelope.
func (rl *Relay) policyAllows(ev *nostr.Event) (bool, string) {
	c := rl.Config

	if len(c.AllowedKinds) > 0 && !slices.Contains(c.AllowedKinds, ev.Kind) {
		return false, fmt.Sprintf("blocked: kind %d not accepted here", ev.Kind)
	}

	if len(c.AllowedPubkeys) > 0 || len(c.AllowedTaggedPubkeys) > 0 {
		if slices.Contains(c.AllowedPubkeys, ev.PubKey) {
			return true, ""
		}
		if len(c.AllowedTaggedPubkeys) > 0 &&
			ev.Tags.ContainsAny("p", c.AllowedTaggedPubkeys) {
			return true, ""
		}
		return false, "blocked: pubkey not accepted here"
	}

	return true, ""
}
