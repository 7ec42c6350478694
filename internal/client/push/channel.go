// Package push maintains the websocket subscription through which the
// remote store announces item changes made by other replicas.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	gosync "sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// DefaultReconnectDelay is the fixed pause between reconnection
// attempts. There is no backoff: the original transport contract is a
// constant-cadence retry.
const DefaultReconnectDelay = 3 * time.Second

// TokenSource yields the token appended to the websocket URL on each
// (re)connection attempt, so a refreshed token is picked up naturally.
type TokenSource func(ctx context.Context) (string, error)

// Handler receives every well-formed event read from the channel.
// Malformed frames are dropped before reaching it.
type Handler func(ev api.Event)

// Config настройки канала push-уведомлений
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:3000/ws.
	URL string

	Token   TokenSource
	OnEvent Handler
	Logger  *slog.Logger

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration
}

// Channel is a persistent, self-healing subscription. Start launches
// the connection loop; Stop tears it down. A Channel is single-use.
type Channel struct {
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}

	mu      gosync.Mutex
	started bool
}

// New creates a new push channel
func New(cfg Config) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{cfg: cfg, done: make(chan struct{})}
}

// Start begins connecting in the background. Subsequent calls are
// no-ops.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(runCtx)
}

// Stop closes the connection and stops reconnecting. Blocks until the
// loop has exited.
func (c *Channel) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-c.done
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	for {
		if err := c.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.cfg.Logger.Warn("push channel disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// connectAndRead dials once and reads frames until the connection
// drops or ctx is cancelled.
func (c *Channel) connectAndRead(ctx context.Context) error {
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.endpoint(token), nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.cfg.Logger.Info("push channel connected", "url", c.cfg.URL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var ev api.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.cfg.Logger.Debug("dropping malformed push frame", "error", err)
			continue
		}
		if ev.Event == "" {
			c.cfg.Logger.Debug("dropping push frame without event kind")
			continue
		}

		c.cfg.OnEvent(ev)
	}
}

func (c *Channel) endpoint(token string) string {
	return c.cfg.URL + "?token=" + url.QueryEscape(token)
}
