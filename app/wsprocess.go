package app

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"
)

// sniffLabel pulls the label out of an envelope without decoding the
// whole message, so dispatch can happen before any payload parsing.
func sniffLabel(message []byte) string {
	start := -1
	for i, b := range message {
		if b == '"' {
			if start < 0 {
				start = i + 1
				continue
			}
			return string(message[start:i])
		}
		if start < 0 && b != '[' && b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			break
		}
	}
	return ""
}

func (rl *Relay) processMessage(ctx context.Context, ws *WebSocket, message []byte) {
	label := sniffLabel(message)
	log.Trace().Str("label", label).Str("remote", ws.Remote()).
		Msg("processing message")

	switch label {
	case "EVENT":
		env := &nostr.EventEnvelope{}
		if err := env.UnmarshalJSON(message); err != nil {
			rl.notice(ws, "invalid: failed to parse EVENT message")
			return
		}
		rl.handleEvent(ctx, ws, env)
	case "REQ":
		env := &nostr.ReqEnvelope{}
		if err := env.UnmarshalJSON(message); err != nil {
			rl.notice(ws, "invalid: failed to parse REQ message")
			return
		}
		rl.handleReq(ctx, ws, env)
	case "COUNT":
		env := &nostr.CountEnvelope{}
		if err := env.UnmarshalJSON(message); err != nil {
			rl.notice(ws, "invalid: failed to parse COUNT message")
			return
		}
		rl.handleCount(ctx, ws, env)
	case "CLOSE":
		env := new(nostr.CloseEnvelope)
		if err := env.UnmarshalJSON(message); err != nil {
			rl.notice(ws, "invalid: failed to parse CLOSE message")
			return
		}
		rl.handleClose(ws, env)
	case "PING":
		rl.notice(ws, "PONG")
	case "AUTH":
		rl.notice(ws, "error: authentication is not required here")
	default:
		rl.notice(ws, fmt.Sprintf("invalid: unknown message type %q", label))
	}
}

func (rl *Relay) handleEvent(ctx context.Context, ws *WebSocket, env *nostr.EventEnvelope) {
	accepted, reason := rl.AddEvent(ctx, &env.Event)
	if !accepted {
		reason = normalizeReason(reason, "error")
	}
	if err := ws.WriteEnvelope(&nostr.OKEnvelope{
		EventID: env.Event.ID,
		OK:      accepted,
		Reason:  reason,
	}); err != nil {
		log.Debug().Err(err).Str("id", env.Event.ID).Msg("failed to write OK")
	}
	// duplicates are acknowledged but never fanned out again
	if accepted && reason == "" {
		rl.BroadcastEvent(&env.Event, ws)
	}
}

func (rl *Relay) notice(ws *WebSocket, msg string) {
	notice := nostr.NoticeEnvelope(msg)
	if err := ws.WriteEnvelope(&notice); err != nil {
		log.Debug().Err(err).Msg("failed to write NOTICE")
	}
}
