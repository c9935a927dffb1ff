package protocol

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
)

// Server→client event types.
const (
	TypeUserOnline          EventType = "userOnline"
	TypeUserOffline         EventType = "userOffline"
	TypeOnlineUsers         EventType = "onlineUsers"
	TypeUserTyping          EventType = "userTyping"
	TypeMessageStatusUpdate EventType = "messageStatusUpdate"
	TypeNewMessage          EventType = "newMessage"
	TypeIncomingCall        EventType = "incomingCall"
	TypeCallAccepted        EventType = "callAccepted"
	TypeCallRejected        EventType = "callRejected"
	TypeCallEnded           EventType = "callEnded"
	TypeUserJoined          EventType = "user-joined"
	TypeUserLeft            EventType = "user-left"
	TypeWarning             EventType = "warning"
)

func encode(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func UserOnline(user domain.UserID) core.Frame {
	return encode(struct {
		Type   EventType     `json:"type"`
		UserID domain.UserID `json:"userId"`
	}{TypeUserOnline, user})
}

func UserOffline(user domain.UserID) core.Frame {
	return encode(struct {
		Type   EventType     `json:"type"`
		UserID domain.UserID `json:"userId"`
	}{TypeUserOffline, user})
}

func OnlineUsers(users []domain.UserID) core.Frame {
	if users == nil {
		users = []domain.UserID{}
	}
	return encode(struct {
		Type    EventType       `json:"type"`
		UserIDs []domain.UserID `json:"userIds"`
	}{TypeOnlineUsers, users})
}

func UserTyping(chat domain.ChatID, user domain.UserID, isTyping bool) core.Frame {
	return encode(struct {
		Type     EventType     `json:"type"`
		ChatID   domain.ChatID `json:"chatId"`
		UserID   domain.UserID `json:"userId"`
		IsTyping bool          `json:"isTyping"`
	}{TypeUserTyping, chat, user, isTyping})
}

func MessageStatusUpdate(id domain.MessageID, status domain.Status) core.Frame {
	return encode(struct {
		Type      EventType        `json:"type"`
		MessageID domain.MessageID `json:"messageId"`
		Status    domain.Status    `json:"status"`
	}{TypeMessageStatusUpdate, id, status})
}

// NewMessage wraps a persisted message record supplied by the storage
// collaborator. The record itself is opaque to the relay.
func NewMessage(message json.RawMessage) core.Frame {
	return encode(struct {
		Type    EventType       `json:"type"`
		Message json.RawMessage `json:"message"`
	}{TypeNewMessage, message})
}

func IncomingCall(from domain.UserID, room domain.RoomID, isVideo bool) core.Frame {
	return encode(struct {
		Type    EventType     `json:"type"`
		From    domain.UserID `json:"from"`
		RoomID  domain.RoomID `json:"roomId"`
		IsVideo bool          `json:"isVideo"`
	}{TypeIncomingCall, from, room, isVideo})
}

func CallAccepted(room domain.RoomID) core.Frame {
	return callLifecycle(TypeCallAccepted, room)
}

func CallRejected(room domain.RoomID) core.Frame {
	return callLifecycle(TypeCallRejected, room)
}

func CallEnded(room domain.RoomID) core.Frame {
	return callLifecycle(TypeCallEnded, room)
}

func callLifecycle(t EventType, room domain.RoomID) core.Frame {
	return encode(struct {
		Type   EventType     `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
	}{t, room})
}

func UserJoined(room domain.RoomID, user domain.UserID) core.Frame {
	return roomMembership(TypeUserJoined, room, user)
}

func UserLeft(room domain.RoomID, user domain.UserID) core.Frame {
	return roomMembership(TypeUserLeft, room, user)
}

func roomMembership(t EventType, room domain.RoomID, user domain.UserID) core.Frame {
	return encode(struct {
		Type   EventType     `json:"type"`
		RoomID domain.RoomID `json:"roomId"`
		UserID domain.UserID `json:"userId"`
	}{t, room, user})
}

// ForwardOffer re-encodes a decoded offer for the other call party.
func ForwardOffer(room domain.RoomID, sdp webrtc.SessionDescription) core.Frame {
	return encode(struct {
		Type   EventType                 `json:"type"`
		RoomID domain.RoomID             `json:"roomId"`
		Offer  webrtc.SessionDescription `json:"offer"`
	}{TypeOffer, room, sdp})
}

func ForwardAnswer(room domain.RoomID, sdp webrtc.SessionDescription) core.Frame {
	return encode(struct {
		Type   EventType                 `json:"type"`
		RoomID domain.RoomID             `json:"roomId"`
		Answer webrtc.SessionDescription `json:"answer"`
	}{TypeAnswer, room, sdp})
}

func ForwardCandidate(room domain.RoomID, cand webrtc.ICECandidateInit) core.Frame {
	return encode(struct {
		Type      EventType               `json:"type"`
		RoomID    domain.RoomID           `json:"roomId"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}{TypeICECandidate, room, cand})
}

// Warning is sent only to the connection whose request could not be served.
func Warning(reason string) core.Frame {
	return encode(struct {
		Type  EventType `json:"type"`
		Error string    `json:"error"`
	}{TypeWarning, reason})
}
