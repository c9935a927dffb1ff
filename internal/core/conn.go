// Package core defines the seams between the relay logic and its transport
// adapters. Nothing here touches sockets directly.
package core

import "errors"

// Frame is one encoded outbound event.
type Frame []byte

// ConnID is the opaque handle of a single live transport session.
// Handles are single-use: a reconnect always carries a fresh id.
type ConnID string

var ErrBackpressure = errors.New("backpressure")

// SignalConnection abstracts the messaging transport for one connection.
// TrySend must never block; a full outbound buffer yields ErrBackpressure.
// The adapter owns the connection and is the one that must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
