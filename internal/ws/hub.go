// Package ws multiplexes realtime client connections: it authorizes
// them against the pairing registry, dispatches inbound commands to the
// media engine, and fans engine events out to authorized clients.
package ws

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mediamote/bridge/internal/mpris"
	"github.com/mediamote/bridge/internal/observability"
	"github.com/mediamote/bridge/internal/pairing"
	"github.com/mediamote/bridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// Config holds the hub's timer intervals. Defaults match the protocol;
// tests compress them.
type Config struct {
	// PingInterval is the heartbeat period. A connection that has not
	// answered by the next cycle is terminated; one missed beat is
	// fatal.
	PingInterval time.Duration
	// UnauthorizedTimeout bounds how long a connection may stay
	// unauthorized before it is forcibly closed.
	UnauthorizedTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PingInterval:        10 * time.Second,
		UnauthorizedTimeout: 10 * time.Minute,
	}
}

// Hub owns the live connection set.
type Hub struct {
	engine   *mpris.Engine
	registry *pairing.Registry
	cfg      Config
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func NewHub(engine *mpris.Engine, registry *pairing.Registry, cfg Config) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.UnauthorizedTimeout <= 0 {
		cfg.UnauthorizedTimeout = DefaultConfig().UnauthorizedTimeout
	}
	return &Hub{
		engine:   engine,
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Clients are native apps, not browsers; origin means nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*Conn]struct{}),
	}
}

// HandleUpgrade accepts one websocket connection and services it until
// the socket closes. Intended as an http.HandlerFunc body.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	addr := r.RemoteAddr
	if host, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
		addr = host
	}

	c := &Conn{hub: h, ws: sock, addr: addr, alive: true}
	c.authTimer = time.AfterFunc(h.cfg.UnauthorizedTimeout, func() {
		if !c.isAuthorized() {
			c.terminate("unauthorized_timeout")
		}
	})
	sock.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	observability.ConnOpened()
	log.Info().Str("addr", addr).Msg("client connected")

	h.readLoop(c)
}

func (h *Hub) readLoop(c *Conn) {
	defer c.terminate("")
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			// A single bad frame does not penalize the connection.
			observability.RecordDroppedFrame()
			continue
		}
		h.dispatch(c, env)
	}
}

// Run drives the heartbeat cycle and the engine event fan-out until ctx
// is cancelled.
func (h *Hub) Run(ctx context.Context) {
	events, cancel := h.engine.Subscribe()
	defer cancel()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.pingCycle()
		case evt, ok := <-events:
			if !ok {
				return
			}
			h.fanOut(evt)
		}
	}
}

func (h *Hub) pingCycle() {
	for _, c := range h.snapshot() {
		if !c.sweepAlive() {
			c.terminate("heartbeat")
			continue
		}
		if err := c.ping(); err != nil {
			c.terminate("heartbeat")
		}
	}
}

func (h *Hub) fanOut(evt mpris.Event) {
	switch evt.Kind {
	case mpris.EventUpdated:
		h.broadcast(protocol.EventMediaUpdated, evt.Fields)
	case mpris.EventChanged:
		var payload any
		if evt.Player != nil {
			payload = evt.Player.Snapshot()
		}
		h.broadcast(protocol.EventMediaSourceChanged, payload)
	}
}

// broadcast sends one event to every authorized connection.
func (h *Hub) broadcast(event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Str("event", event).Err(err).Msg("broadcast encode failed")
		return
	}
	for _, c := range h.snapshot() {
		if !c.isAuthorized() {
			continue
		}
		if err := c.send(data); err != nil {
			log.Debug().Str("addr", c.addr).Err(err).Msg("broadcast write failed")
		}
	}
}

func (h *Hub) reply(c *Conn, event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		log.Error().Str("event", event).Err(err).Msg("reply encode failed")
		return
	}
	if err := c.send(data); err != nil {
		log.Debug().Str("addr", c.addr).Err(err).Msg("reply write failed")
	}
}

func (h *Hub) snapshot() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	for _, c := range h.snapshot() {
		c.terminate("")
	}
}
