package app

import (
	"github.com/nbd-wtf/go-nostr"

	"github.com/greenart7c3/Citrine-sub000/pkg/match"
)

// BroadcastEvent pushes a freshly admitted event to every subscription
// whose filters match it, via each connection's outbound queue so one
// stalled peer cannot hold up the rest. The originating connection is
// skipped entirely; it already got its OK.
func (rl *Relay) BroadcastEvent(ev *nostr.Event, origin *WebSocket) {
	rl.listeners.Range(func(ws *WebSocket, l *Listener) bool {
		if ws == origin {
			return true
		}
		if !match.Any(l.filters, ev) {
			return true
		}
		subID := l.id
		ws.QueueEnvelope(&nostr.EventEnvelope{
			SubscriptionID: &subID,
			Event:          *ev,
		})
		return true
	})
}
