package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"
)

// HandleWebsocket upgrades the connection and runs its reader and
// keepalive watcher until either side gives up.
func (rl *Relay) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket")
		return
	}
	rl.clients.Store(conn, struct{}{})
	ws := NewWebSocket(conn, r)
	log.Debug().Str("remote", ws.Remote()).Msg("connected")

	ctx, cancel := context.WithCancel(rl.Ctx)
	var once sync.Once
	kill := func() {
		once.Do(func() {
			cancel()
			// close first so a registration racing this teardown
			// observes the closed flag and cleans up after itself
			if err := ws.Close(); err != nil {
				log.Debug().Err(err).Msg("failed to close websocket")
			}
			rl.listeners.RemoveConn(ws)
			rl.clients.Delete(conn)
			log.Debug().Str("remote", ws.Remote()).Msg("disconnected")
		})
	}

	go rl.websocketReadLoop(ctx, ws, conn, kill)
	go rl.websocketWatcher(ctx, ws, kill)
}

func (rl *Relay) websocketReadLoop(ctx context.Context, ws *WebSocket,
	conn *websocket.Conn, kill func()) {

	defer kill()

	conn.SetReadLimit(rl.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(rl.PongWait)); err != nil {
		log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(rl.PongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure,
			) {
				log.Debug().Err(err).Str("remote", ws.Remote()).
					Msg("unexpected close")
			}
			return
		}
		// messages of one connection are dispatched in order, so a
		// subscription sees events in admission order
		rl.processMessage(ctx, ws, message)
	}
}

// websocketWatcher pings the peer periodically and tears the connection
// down when the relay shuts down.
func (rl *Relay) websocketWatcher(ctx context.Context, ws *WebSocket, kill func()) {
	ticker := time.NewTicker(rl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			kill()
			return
		case <-ticker.C:
			if err := ws.Ping(); err != nil {
				if err != websocket.ErrCloseSent {
					log.Debug().Err(err).Str("remote", ws.Remote()).
						Msg("failed to ping, closing")
				}
				kill()
				return
			}
		}
	}
}
