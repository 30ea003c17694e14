package app

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"
)

// handleReq opens a subscription: the listener is registered before the
// backlog replay starts, so events admitted while the replay runs are
// pushed rather than lost in the gap before EOSE.
func (rl *Relay) handleReq(ctx context.Context, ws *WebSocket, env *nostr.ReqEnvelope) {
	subCtx, cancel := context.WithCancel(ctx)
	rl.listeners.Set(ws, env.SubscriptionID, env.Filters, cancel)

	for _, f := range env.Filters {
		if err := rl.replayFilter(subCtx, ws, env.SubscriptionID, f); err != nil {
			log.Error().Err(err).Str("sub", env.SubscriptionID).
				Msg("failed to replay stored events")
			rl.listeners.RemoveID(ws, env.SubscriptionID)
			if werr := ws.WriteEnvelope(&nostr.ClosedEnvelope{
				SubscriptionID: env.SubscriptionID,
				Reason:         "error: could not query stored events",
			}); werr != nil {
				log.Debug().Err(werr).Msg("failed to write CLOSED")
			}
			return
		}
	}

	eose := nostr.EOSEEnvelope(env.SubscriptionID)
	if err := ws.WriteEnvelope(&eose); err != nil {
		log.Debug().Err(err).Str("sub", env.SubscriptionID).Msg("failed to write EOSE")
	}
}

// replayFilter streams one filter's stored matches to the subscriber.
func (rl *Relay) replayFilter(ctx context.Context, ws *WebSocket,
	subID string, f nostr.Filter) error {

	if f.Limit > rl.Config.MaxLimit || f.Limit <= 0 {
		f.Limit = rl.Config.MaxLimit
	}

	queryCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	ch, err := rl.Store.QueryEvents(queryCtx, f)
	if err != nil {
		return err
	}
	for ev := range ch {
		id := subID
		if err := ws.WriteEnvelope(&nostr.EventEnvelope{
			SubscriptionID: &id,
			Event:          *ev,
		}); err != nil {
			return err
		}
	}
	return nil
}

// handleClose drops a subscription. Unknown ids are ignored; CLOSE is
// idempotent.
func (rl *Relay) handleClose(ws *WebSocket, env *nostr.CloseEnvelope) {
	rl.listeners.RemoveID(ws, string(*env))
}
