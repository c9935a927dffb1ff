package signal

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/app"
	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/protocol"
)

// connState is the per-connection bookkeeping owned by the read pump. Only
// one goroutine touches it, so it needs no locking.
type connState struct {
	authenticated bool
	limiter       *eventLimiter
}

func newConnState(burst int, interval time.Duration) *connState {
	return &connState{limiter: newEventLimiter(burst, interval)}
}

// handleFrame decodes and dispatches one inbound frame. Every frame counts
// against the connection's rate budget, handshake attempts and malformed
// payloads included, so an unauthenticated socket cannot spam unmetered.
// The return value is whether the connection may continue: a failed
// handshake is fatal to the connection attempt, everything else is answered
// with a warning at worst.
func (ctl *Controller) handleFrame(ctx context.Context, id core.ConnID, c *wsConn, state *connState, data []byte) bool {
	if !state.limiter.Allow() {
		log.Warn().Str("module", "adapters.signal").Str("conn", string(id)).Msg("rate limit exceeded, frame discarded")
		_ = c.TrySend(protocol.Warning("rate limit exceeded"))
		return true
	}

	ev, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Str("conn", string(id)).Msg("dropping frame")
		_ = c.TrySend(protocol.Warning(err.Error()))
		return true
	}

	if auth, ok := ev.(protocol.Authenticate); ok && !state.authenticated {
		if err := ctl.Orch.Authenticate(ctx, id, auth.UserID, c); err != nil {
			log.Warn().Err(err).Str("module", "adapters.signal").Str("conn", string(id)).Msg("handshake rejected")
			_ = c.TrySend(protocol.Warning("authentication failed"))
			return false
		}
		state.authenticated = true
		return true
	}

	if !state.authenticated {
		_ = c.TrySend(protocol.Warning("authenticate first"))
		return true
	}

	if err := ctl.Orch.HandleEvent(ctx, id, ev); err != nil {
		ctl.replyEventError(id, c, err)
	}
	return true
}

// replyEventError reports a failed request to its sender only. Unknown ids
// and state-machine misuse are warnings, never connection failures.
func (ctl *Controller) replyEventError(id core.ConnID, c *wsConn, err error) {
	switch {
	case errors.Is(err, app.ErrNoSuchCall),
		errors.Is(err, app.ErrNotInRoom),
		errors.Is(err, app.ErrNotCallRoom):
		log.Warn().Err(err).Str("module", "adapters.signal").Str("conn", string(id)).Msg("no-op event")
	default:
		log.Error().Err(err).Str("module", "adapters.signal").Str("conn", string(id)).Msg("event failed")
	}
	_ = c.TrySend(protocol.Warning(err.Error()))
}
