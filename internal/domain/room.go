package domain

import "strings"

type (
	ChatID string
	RoomID string
)

const (
	chatRoomPrefix = "chat_"
	userRoomPrefix = "user_"
)

// ChatRoom is the broadcast scope for a persistent chat.
func ChatRoom(id ChatID) RoomID {
	return RoomID(chatRoomPrefix + string(id))
}

// UserRoom is the per-identity scope every connection of a user joins at
// authentication. Targeted fan-out (new messages, status updates) goes here.
func UserRoom(id UserID) RoomID {
	return RoomID(userRoomPrefix + string(id))
}

func (r RoomID) IsChat() bool {
	return strings.HasPrefix(string(r), chatRoomPrefix)
}

func (r RoomID) IsUser() bool {
	return strings.HasPrefix(string(r), userRoomPrefix)
}

// Chat returns the chat id a chat room was derived from.
func (r RoomID) Chat() (ChatID, bool) {
	if !r.IsChat() {
		return "", false
	}
	return ChatID(strings.TrimPrefix(string(r), chatRoomPrefix)), true
}

// IsCall reports whether the room is an ephemeral call-signaling room.
// Call room ids are caller-generated and carry no namespace prefix.
func (r RoomID) IsCall() bool {
	return r != "" && !r.IsChat() && !r.IsUser()
}
