package app

import (
	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
	"github.com/connecthub/relay/internal/protocol"
)

// Typing forwards transient typing signals to a chat room. It is
// deliberately stateless: nothing remembers who is "currently typing", so
// there is nothing to expire. The sender emits its own stop after an
// inactivity window; the one gap that leaves, a client vanishing mid-type,
// is covered by StopAll on disconnect.
type Typing struct {
	router *Router
}

func NewTyping(router *Router) *Typing {
	return &Typing{router: router}
}

// Relay broadcasts the signal to the chat room, excluding the sender's own
// connection so it never sees its own indicator echoed back.
func (t *Typing) Relay(from core.ConnID, user domain.UserID, chat domain.ChatID, isTyping bool) {
	room := domain.ChatRoom(chat)
	if !t.router.InRoom(from, room) {
		log.Warn().Str("module", "app.typing").Str("conn", string(from)).Str("chat", string(chat)).
			Msg("typing signal for chat the connection has not joined")
		return
	}
	t.router.Broadcast(room, protocol.UserTyping(chat, user, isTyping), from)
}

// StopAll emits a stop signal to every chat room the connection had joined.
// Called during disconnect cleanup so peers never hold a stale indicator
// for a user who is gone.
func (t *Typing) StopAll(from core.ConnID, user domain.UserID, rooms []domain.RoomID) {
	for _, room := range rooms {
		chat, ok := room.Chat()
		if !ok {
			continue
		}
		t.router.Broadcast(room, protocol.UserTyping(chat, user, false), from)
	}
}
