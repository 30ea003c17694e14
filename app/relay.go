package app

import (
	"context"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/nbd-wtf/go-nostr/nip11"
	"github.com/puzpuzpuz/xsync/v2"

	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
)

var (
	Version  = "v0.1.0"
	Software = "https://github.com/greenart7c3/Citrine-sub000"
)

const (
	WriteWait       = 10 * time.Second
	PongWait        = 60 * time.Second
	PingPeriod      = 30 * time.Second
	ReadBufferSize  = 4096
	WriteBufferSize = 4096
	MaxMessageSize  = 512000

	// bound on any single store call made on behalf of a connection
	storeTimeout = 10 * time.Second
)

// Relay is the single-node relay: one event store, one listener registry
// and an HTTP server that speaks websocket on / and NIP-11 everywhere.
type Relay struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config *Config
	Info   *nip11.RelayInformationDocument
	Store  eventstore.Store

	listeners *listenerRegistry
	clients   *xsync.MapOf[*websocket.Conn, struct{}]
	upgrader  websocket.Upgrader

	serveMux   *http.ServeMux
	httpServer *http.Server
	Addr       string

	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func NewRelay(c context.Context, cancel context.CancelFunc,
	conf *Config, store eventstore.Store) (rl *Relay) {

	rl = &Relay{
		Ctx:    c,
		Cancel: cancel,
		Config: conf,
		Store:  store,
		Info: &nip11.RelayInformationDocument{
			Name:          conf.Name,
			Description:   conf.Description,
			PubKey:        conf.Pubkey,
			Contact:       conf.Contact,
			Icon:          conf.Icon,
			Software:      Software,
			Version:       Version,
			SupportedNIPs: []int{1, 2, 4, 9, 11, 40, 45, 50},
			Limitation: &nip11.RelayLimitationDocument{
				MaxMessageLength: MaxMessageSize,
				MaxSubscriptions: conf.MaxSubscriptions,
				MaxLimit:         conf.MaxLimit,
			},
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  ReadBufferSize,
			WriteBufferSize: WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:        xsync.NewTypedMapOf[*websocket.Conn, struct{}](PointerHasher[websocket.Conn]),
		serveMux:       &http.ServeMux{},
		Addr:           conf.Listen,
		WriteWait:      WriteWait,
		PongWait:       PongWait,
		PingPeriod:     PingPeriod,
		MaxMessageSize: MaxMessageSize,
	}
	rl.listeners = newListenerRegistry(conf.MaxSubscriptions)
	rl.serveMux.HandleFunc("/", rl.handleHome)
	return
}
