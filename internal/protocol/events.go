// Package protocol defines the closed event vocabulary exchanged with clients
// over the signal transport. Inbound payloads are decoded exactly once, at the
// connection boundary, into one of the variants below; everything past the
// adapter works with typed events, never raw JSON.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/connecthub/relay/internal/domain"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrBadPayload   = errors.New("bad payload")
)

type EventType string

const (
	TypeAuthenticate     EventType = "authenticate"
	TypeJoinChat         EventType = "joinChat"
	TypeLeaveChat        EventType = "leaveChat"
	TypeStartTyping      EventType = "startTyping"
	TypeStopTyping       EventType = "stopTyping"
	TypeMessageDelivered EventType = "messageDelivered"
	TypeMessageRead      EventType = "messageRead"
	TypeJoinRoom         EventType = "join-room"
	TypeLeaveRoom        EventType = "leave-room"
	TypeOffer            EventType = "offer"
	TypeAnswer           EventType = "answer"
	TypeICECandidate     EventType = "ice-candidate"
	TypeInitiateCall     EventType = "initiateCall"
	TypeAcceptCall       EventType = "acceptCall"
	TypeRejectCall       EventType = "rejectCall"
	TypeEndCall          EventType = "endCall"
)

// ClientEvent is the closed set of inbound events. Only types in this
// package implement it.
type ClientEvent interface {
	clientEvent()
}

type Authenticate struct {
	UserID domain.UserID `json:"userId"`
}

type JoinChat struct {
	ChatID domain.ChatID `json:"chatId"`
}

type LeaveChat struct {
	ChatID domain.ChatID `json:"chatId"`
}

type StartTyping struct {
	ChatID domain.ChatID `json:"chatId"`
}

type StopTyping struct {
	ChatID domain.ChatID `json:"chatId"`
}

type MessageDelivered struct {
	MessageID domain.MessageID `json:"messageId"`
}

type MessageRead struct {
	MessageID domain.MessageID `json:"messageId"`
}

type JoinRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

type LeaveRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

// Offer, Answer and ICECandidate carry negotiation payloads. The relay
// forwards them to the other call party verbatim; the SDP and candidate
// contents are never inspected or validated here.
type Offer struct {
	RoomID domain.RoomID             `json:"roomId"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type Answer struct {
	RoomID domain.RoomID             `json:"roomId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type ICECandidate struct {
	RoomID    domain.RoomID           `json:"roomId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type InitiateCall struct {
	TargetUserID domain.UserID `json:"targetUserId"`
	RoomID       domain.RoomID `json:"roomId"`
	IsVideo      bool          `json:"isVideo"`
}

type AcceptCall struct {
	RoomID domain.RoomID `json:"roomId"`
}

type RejectCall struct {
	RoomID domain.RoomID `json:"roomId"`
}

type EndCall struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (Authenticate) clientEvent()     {}
func (JoinChat) clientEvent()         {}
func (LeaveChat) clientEvent()        {}
func (StartTyping) clientEvent()      {}
func (StopTyping) clientEvent()       {}
func (MessageDelivered) clientEvent() {}
func (MessageRead) clientEvent()      {}
func (JoinRoom) clientEvent()         {}
func (LeaveRoom) clientEvent()        {}
func (Offer) clientEvent()            {}
func (Answer) clientEvent()           {}
func (ICECandidate) clientEvent()     {}
func (InitiateCall) clientEvent()     {}
func (AcceptCall) clientEvent()       {}
func (RejectCall) clientEvent()       {}
func (EndCall) clientEvent()          {}

// Decode parses one inbound frame into its event variant. A missing required
// field yields ErrBadPayload so the caller can answer the sender with a
// warning instead of broadcasting anything.
func Decode(data []byte) (ClientEvent, error) {
	var env struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch env.Type {
	case TypeAuthenticate:
		var ev Authenticate
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.UserID == "" {
			return nil, missing("userId")
		}
		return ev, nil
	case TypeJoinChat:
		var ev JoinChat
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, missing("chatId")
		}
		return ev, nil
	case TypeLeaveChat:
		var ev LeaveChat
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, missing("chatId")
		}
		return ev, nil
	case TypeStartTyping:
		var ev StartTyping
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, missing("chatId")
		}
		return ev, nil
	case TypeStopTyping:
		var ev StopTyping
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, missing("chatId")
		}
		return ev, nil
	case TypeMessageDelivered:
		var ev MessageDelivered
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.MessageID == "" {
			return nil, missing("messageId")
		}
		return ev, nil
	case TypeMessageRead:
		var ev MessageRead
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.MessageID == "" {
			return nil, missing("messageId")
		}
		return ev, nil
	case TypeJoinRoom:
		var ev JoinRoom
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		return ev, nil
	case TypeLeaveRoom:
		var ev LeaveRoom
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		return ev, nil
	case TypeOffer:
		var ev Offer
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		if ev.Offer.SDP == "" {
			return nil, missing("offer")
		}
		return ev, nil
	case TypeAnswer:
		var ev Answer
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		if ev.Answer.SDP == "" {
			return nil, missing("answer")
		}
		return ev, nil
	case TypeICECandidate:
		var ev ICECandidate
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		if ev.Candidate.Candidate == "" {
			return nil, missing("candidate")
		}
		return ev, nil
	case TypeInitiateCall:
		var ev InitiateCall
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.TargetUserID == "" {
			return nil, missing("targetUserId")
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		return ev, nil
	case TypeAcceptCall:
		var ev AcceptCall
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		return ev, nil
	case TypeRejectCall:
		var ev RejectCall
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		return ev, nil
	case TypeEndCall:
		var ev EndCall
		if err := unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.RoomID == "" {
			return nil, missing("roomId")
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrBadPayload, field)
}
