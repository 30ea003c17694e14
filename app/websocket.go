package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog/log"
)

// outboundQueueSize bounds how far a slow reader may fall behind live
// fan-out before it starts losing events.
const outboundQueueSize = 128

// Conn is the part of a websocket connection the relay writes to.
// *websocket.Conn satisfies it; tests substitute a recorder.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WebSocket wraps a connection with a write mutex, since gorilla-style
// connections allow only one concurrent writer, plus an outbound queue
// drained by its own goroutine for deliveries that must never block the
// sender.
type WebSocket struct {
	conn    Conn
	Request *http.Request
	remote  string

	queue  chan []byte
	done   chan struct{}
	mutex  sync.Mutex
	closed atomic.Bool
}

func NewWebSocket(conn Conn, req *http.Request) *WebSocket {
	ws := &WebSocket{
		conn:    conn,
		Request: req,
		queue:   make(chan []byte, outboundQueueSize),
		done:    make(chan struct{}),
	}
	if req != nil {
		ws.remote = req.RemoteAddr
	}
	go ws.writePump()
	return ws
}

func (ws *WebSocket) Remote() string { return ws.remote }

func (ws *WebSocket) WriteMessage(messageType int, data []byte) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	if ws.closed.Load() {
		return websocket.ErrCloseSent
	}
	if err := ws.conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return ws.conn.WriteMessage(messageType, data)
}

// WriteEnvelope sends synchronously; used for replies on the caller's own
// dispatch path (OK, EOSE, NOTICE, backlog events).
func (ws *WebSocket) WriteEnvelope(env nostr.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, b)
}

// QueueEnvelope hands an envelope to this connection's writer without
// blocking the caller. A stalled peer overflows only its own queue and
// loses the message; fan-out to everyone else is unaffected.
func (ws *WebSocket) QueueEnvelope(env nostr.Envelope) {
	if ws.closed.Load() {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal envelope")
		return
	}
	select {
	case ws.queue <- b:
	default:
		log.Debug().Str("remote", ws.remote).Msg("outbound queue full, dropping")
	}
}

func (ws *WebSocket) writePump() {
	for {
		select {
		case <-ws.done:
			return
		case b := <-ws.queue:
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

func (ws *WebSocket) Ping() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	if ws.closed.Load() {
		return websocket.ErrCloseSent
	}
	return ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait))
}

// Close is idempotent; late writers observe the closed flag instead of
// racing the underlying connection.
func (ws *WebSocket) Close() error {
	if ws.closed.Swap(true) {
		return nil
	}
	close(ws.done)
	return ws.conn.Close()
}
