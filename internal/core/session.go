package core

import "github.com/connecthub/relay/internal/domain"

// Session binds an authenticated identity to its transport endpoint.
// This is what the registry stores and rooms fan out to. The identity is
// set once at handshake and immutable for the life of the connection.
type Session interface {
	User() domain.UserID
	Signal() SignalConnection
}

type session struct {
	user domain.UserID
	conn SignalConnection
}

func NewSession(user domain.UserID, conn SignalConnection) Session {
	return &session{user: user, conn: conn}
}

func (s *session) User() domain.UserID      { return s.user }
func (s *session) Signal() SignalConnection { return s.conn }
