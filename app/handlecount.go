package app

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"
)

// handleCount answers a COUNT request in one shot. Nothing stays
// subscribed; the count covers stored events only.
func (rl *Relay) handleCount(ctx context.Context, ws *WebSocket, env *nostr.CountEnvelope) {
	queryCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var total int64
	for _, f := range env.Filters {
		n, err := rl.Store.CountEvents(queryCtx, f)
		if err != nil {
			log.Error().Err(err).Str("sub", env.SubscriptionID).
				Msg("failed to count stored events")
			if werr := ws.WriteEnvelope(&nostr.ClosedEnvelope{
				SubscriptionID: env.SubscriptionID,
				Reason:         "error: could not count stored events",
			}); werr != nil {
				log.Debug().Err(werr).Msg("failed to write CLOSED")
			}
			return
		}
		total += int64(n)
	}

	if err := ws.WriteEnvelope(&nostr.CountEnvelope{
		SubscriptionID: env.SubscriptionID,
		Count:          &total,
	}); err != nil {
		log.Debug().Err(err).Str("sub", env.SubscriptionID).Msg("failed to write COUNT")
	}
}
