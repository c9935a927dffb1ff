// Package signal is the websocket transport adapter. It upgrades HTTP
// requests, pumps frames in and out, decodes inbound events once and hands
// them to the orchestrator. Events from one connection are processed in the
// order received; events from different connections interleave freely.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/app"
	"github.com/connecthub/relay/internal/config"
	"github.com/connecthub/relay/internal/core"
)

type Controller struct {
	Orch     *app.Orchestrator
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{
		Orch: orch,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}
}

// originChecker allows any origin when the allow-list is empty (dev mode),
// otherwise requires an exact match.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// wsConn wraps one websocket with a buffered outbound channel. TrySend never
// blocks; a full buffer reports backpressure and lets the router's policy
// decide the connection's fate.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var _ core.SignalConnection = (*wsConn)(nil)

// HandleWS upgrades one request and starts the connection's pumps. Each
// transport session gets a fresh opaque handle; reconnects never reuse one.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	id := core.ConnID(uuid.NewString())

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}

	log.Info().Str("module", "adapters.signal").Str("conn", string(id)).
		Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
