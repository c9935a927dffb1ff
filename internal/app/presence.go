package app

import (
	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
	"github.com/connecthub/relay/internal/protocol"
)

// Presence keeps every connection informed of who is online. The online set
// is always derived from the registry at emit time, never cached here, so a
// snapshot can never be stale relative to a registration it follows.
//
// Full snapshots are O(connections); fine at single-process scale.
type Presence struct {
	reg    *Registry
	router *Router
}

func NewPresence(reg *Registry, router *Router) *Presence {
	return &Presence{reg: reg, router: router}
}

// ConnectionRegistered fans out the online transition. An identity's second
// device does not re-announce it; only the new connection gets the snapshot
// so its UI can catch up.
func (p *Presence) ConnectionRegistered(id core.ConnID, user domain.UserID, becameOnline bool) {
	if becameOnline {
		p.router.BroadcastAll(protocol.UserOnline(user))
		p.router.BroadcastAll(protocol.OnlineUsers(p.reg.Snapshot()))
		log.Info().Str("module", "app.presence").Str("user", string(user)).Msg("user online")
		return
	}
	if sess, ok := p.reg.SessionOf(id); ok {
		if err := sess.Signal().TrySend(protocol.OnlineUsers(p.reg.Snapshot())); err != nil {
			log.Warn().Err(err).Str("module", "app.presence").Str("conn", string(id)).Msg("snapshot send dropped")
		}
	}
}

// ConnectionGone fans out the offline transition after the registry has
// already dropped the connection, so the emitted snapshot excludes it.
func (p *Presence) ConnectionGone(user domain.UserID, wasLast bool) {
	if !wasLast {
		return
	}
	p.router.BroadcastAll(protocol.UserOffline(user))
	p.router.BroadcastAll(protocol.OnlineUsers(p.reg.Snapshot()))
	log.Info().Str("module", "app.presence").Str("user", string(user)).Msg("user offline")
}
