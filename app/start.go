package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Start serves until the relay context is canceled, then shuts down in
// an orderly way.
func (rl *Relay) Start() error {
	rl.httpServer = &http.Server{
		Handler:      cors.Default().Handler(rl),
		Addr:         rl.Addr,
		WriteTimeout: 2 * time.Second,
		ReadTimeout:  2 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", rl.Addr).Msg("relay listening")
		if err := rl.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		rl.Cancel()
		return err
	case <-rl.Ctx.Done():
		return rl.Shutdown()
	}
}

// Shutdown closes client connections before stopping the HTTP server so
// peers see a proper close frame instead of a reset.
func (rl *Relay) Shutdown() error {
	log.Info().Msg("relay shutting down")

	rl.clients.Range(func(conn *websocket.Conn, _ struct{}) bool {
		if err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second)); err != nil {
			log.Debug().Err(err).Msg("failed to send close frame")
		}
		conn.Close()
		rl.clients.Delete(conn)
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := rl.httpServer.Shutdown(ctx)
	rl.Store.Close()
	return err
}
