package hub

import "github.com/driftline/driftline-backend/internal/models"

// Outbound event names on the wire.
const (
	EventPresence     = "presence"
	EventNewMessage   = "new_message"
	EventGroupMessage = "group_message"
	EventTyping       = "typing"
	EventPong         = "pong"
	EventError        = "error"
)

// FocusKind says what a client is currently looking at.
type FocusKind string

const (
	FocusNone  FocusKind = ""
	FocusUser  FocusKind = "user"
	FocusGroup FocusKind = "group"
)

// Focus is the conversation a client is viewing: none, a private peer, or
// a group. The zero value means no conversation is open.
type Focus struct {
	Kind FocusKind
	ID   uint
}

// OnUser reports whether the focus is the private thread with peerID.
func (f Focus) OnUser(peerID uint) bool {
	return f.Kind == FocusUser && f.ID == peerID
}

// OnGroup reports whether the focus is groupID's thread.
func (f Focus) OnGroup(groupID uint) bool {
	return f.Kind == FocusGroup && f.ID == groupID
}

// PresenceEvent carries the full online-user set after every registry
// mutation.
type PresenceEvent struct {
	Type    string `json:"type"`
	UserIDs []uint `json:"user_ids"`
}

// MessageEvent delivers one persisted message, private or group.
type MessageEvent struct {
	Type    string                 `json:"type"`
	Message models.MessageResponse `json:"message"`
}

func NewPrivateMessageEvent(m models.MessageResponse) MessageEvent {
	return MessageEvent{Type: EventNewMessage, Message: m}
}

func NewGroupMessageEvent(m models.MessageResponse) MessageEvent {
	return MessageEvent{Type: EventGroupMessage, Message: m}
}

// TypingEvent is ephemeral: relayed live, never persisted.
type TypingEvent struct {
	Type   string `json:"type"`
	UserID uint   `json:"user_id"`
}

func NewTypingEvent(userID uint) TypingEvent {
	return TypingEvent{Type: EventTyping, UserID: userID}
}

// PongEvent answers a client-level ping command.
type PongEvent struct {
	Type string `json:"type"`
}

// ErrorEvent reports a failed inbound command to the client.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewErrorEvent(code, message, details string) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: code, Error: message, Details: details}
}
