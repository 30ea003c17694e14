package app

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v2"
	"github.com/rs/zerolog/log"
)

// Listener is one live subscription: the connection it belongs to, its
// REQ id, the filters it wants and a cancel that stops its backlog query.
type Listener struct {
	ws      *WebSocket
	id      string
	filters nostr.Filters
	cancel  context.CancelFunc
}

type ListenerMap = *xsync.MapOf[string, *Listener]

// listenerRegistry tracks every open subscription. The conns map is
// authoritative; the recent cache only enforces the global subscription
// cap by evicting the least recently opened subscription when full.
type listenerRegistry struct {
	conns  *xsync.MapOf[*WebSocket, ListenerMap]
	recent *lru.Cache[string, *Listener]
}

func newListenerRegistry(maxSubscriptions int) *listenerRegistry {
	r := &listenerRegistry{
		conns: xsync.NewTypedMapOf[*WebSocket, ListenerMap](PointerHasher[WebSocket]),
	}
	if maxSubscriptions < 1 {
		maxSubscriptions = 1
	}
	r.recent, _ = lru.NewWithEvict(maxSubscriptions, r.onEvict)
	return r
}

func cacheKey(ws *WebSocket, id string) string {
	return fmt.Sprintf("%p/%s", ws, id)
}

// onEvict fires both on capacity eviction and on explicit Remove. The
// explicit paths delete from conns first, so a still-registered listener
// here means a genuine capacity eviction.
func (r *listenerRegistry) onEvict(key string, l *Listener) {
	subs, ok := r.conns.Load(l.ws)
	if !ok {
		return
	}
	if _, ok := subs.Load(l.id); !ok {
		return
	}
	subs.Delete(l.id)
	l.cancel()
	log.Debug().Str("sub", l.id).Str("remote", l.ws.Remote()).
		Msg("evicting oldest subscription")
	// queued: the evicting caller may be a different connection
	l.ws.QueueEnvelope(&nostr.ClosedEnvelope{
		SubscriptionID: l.id,
		Reason:         "restricted: too many concurrent subscriptions",
	})
}

// Set registers a subscription, replacing any previous one with the same
// id on the same connection.
func (r *listenerRegistry) Set(ws *WebSocket, id string, ff nostr.Filters,
	cancel context.CancelFunc) *Listener {

	l := &Listener{ws: ws, id: id, filters: ff, cancel: cancel}
	subs, _ := r.conns.LoadOrCompute(ws, func() ListenerMap {
		return xsync.NewMapOf[*Listener]()
	})
	if prev, loaded := subs.LoadAndStore(id, l); loaded {
		prev.cancel()
	}
	r.recent.Add(cacheKey(ws, id), l)

	// the connection closes before it is deregistered, so seeing the flag
	// here means this registration may have raced that teardown and must
	// undo itself
	if ws.closed.Load() {
		r.RemoveConn(ws)
	}
	return l
}

// RemoveID drops one subscription by id. Reports whether it existed.
func (r *listenerRegistry) RemoveID(ws *WebSocket, id string) bool {
	subs, ok := r.conns.Load(ws)
	if !ok {
		return false
	}
	l, ok := subs.LoadAndDelete(id)
	if !ok {
		return false
	}
	l.cancel()
	r.recent.Remove(cacheKey(ws, id))
	return true
}

// RemoveConn drops every subscription of a closing connection.
func (r *listenerRegistry) RemoveConn(ws *WebSocket) {
	subs, ok := r.conns.LoadAndDelete(ws)
	if !ok {
		return
	}
	subs.Range(func(id string, l *Listener) bool {
		l.cancel()
		r.recent.Remove(cacheKey(ws, id))
		return true
	})
}

// Range visits every live subscription.
func (r *listenerRegistry) Range(fn func(ws *WebSocket, l *Listener) bool) {
	r.conns.Range(func(ws *WebSocket, subs ListenerMap) bool {
		cont := true
		subs.Range(func(_ string, l *Listener) bool {
			cont = fn(ws, l)
			return cont
		})
		return cont
	})
}
