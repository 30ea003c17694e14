package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// ServeHTTP routes by request shape: websocket upgrades speak the relay
// protocol, NIP-11 requests get the information document, the rest falls
// through to the mux.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		rl.HandleWebsocket(w, r)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/nostr+json") {
		rl.HandleNIP11(w, r)
		return
	}
	rl.serveMux.ServeHTTP(w, r)
}

func (rl *Relay) HandleNIP11(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/nostr+json")
	if err := json.NewEncoder(w).Encode(rl.Info); err != nil {
		log.Error().Err(err).Msg("failed to encode relay information document")
	}
}

func (rl *Relay) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%s\n\nrunning %s %s\nconnect a nostr client to this address\n",
		rl.Info.Name, Software, Version)
}
