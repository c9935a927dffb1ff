package app

import (
	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickConnection
)

// Policy decides what happens to a connection whose outbound buffer is full
// during a broadcast.
type Policy interface {
	OnBackpressure(room domain.RoomID, conn core.ConnID) BackpressureAction
}

// KickSlowPolicy disconnects a slow consumer. A client that cannot drain
// presence and typing traffic will not keep up with anything else either.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackpressure(domain.RoomID, core.ConnID) BackpressureAction {
	return KickConnection
}

// DropFramePolicy silently drops the frame, used in tests.
type DropFramePolicy struct{}

func (DropFramePolicy) OnBackpressure(domain.RoomID, core.ConnID) BackpressureAction {
	return DropFrame
}
