package domain

// CallState is the lifecycle phase of one call-signaling room.
// Idle is the implicit state of a room no call has been placed in;
// Ended is terminal.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallConnected
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRinging:
		return "ringing"
	case CallConnected:
		return "connected"
	case CallEnded:
		return "ended"
	}
	return "unknown"
}

// MaxCallParties caps membership of a call room. Calls are one-to-one.
const MaxCallParties = 2
