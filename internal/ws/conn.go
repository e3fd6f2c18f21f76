package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mediamote/bridge/internal/observability"
	"github.com/rs/zerolog/log"
)

// Conn is one client connection. Liveness and authorization are
// independent: a connection can be alive for minutes without ever
// becoming command-eligible.
type Conn struct {
	hub  *Hub
	ws   *websocket.Conn
	addr string

	mu         sync.Mutex
	alive      bool
	authorized bool
	authTimer  *time.Timer

	closeOnce sync.Once
}

func (c *Conn) isAuthorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized
}

func (c *Conn) authorize() {
	c.mu.Lock()
	c.authorized = true
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
	c.mu.Unlock()
}

func (c *Conn) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// sweepAlive reports whether the connection answered since the previous
// ping cycle and resets the flag for the next one.
func (c *Conn) sweepAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.alive
	c.alive = false
	return was
}

// send writes one frame; writes are serialized per connection.
func (c *Conn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// terminate closes the socket unilaterally and cancels pending timers
// so none of them fires against a reused resource.
func (c *Conn) terminate(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.authTimer != nil {
			c.authTimer.Stop()
			c.authTimer = nil
		}
		c.mu.Unlock()

		c.hub.drop(c)
		_ = c.ws.Close()
		observability.ConnClosed()
		if reason != "" {
			observability.RecordTermination(reason)
			log.Info().Str("addr", c.addr).Str("reason", reason).Msg("connection terminated")
		}
	})
}
