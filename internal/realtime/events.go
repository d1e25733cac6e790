// Package realtime pushes room events to connected websocket clients and
// tracks who is online in each room. Events travel through a Broker so that
// several API instances can serve the same room.
package realtime

import (
	"encoding/json"
	"time"
)

// EventType names a realtime event.
type EventType string

const (
	EventMessageCreated    EventType = "message.created"
	EventMessageTranslated EventType = "message.translated"
	EventPresence          EventType = "presence"
	EventTyping            EventType = "typing"
)

// Event is the broker envelope. To restricts delivery to the listed users;
// empty means every client in the room.
type Event struct {
	Type   EventType       `json:"type"`
	RoomID string          `json:"room_id"`
	To     []string        `json:"to,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

// frame is what a client receives; recipients are not disclosed.
type frame struct {
	Type   EventType       `json:"type"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

func (e Event) addressedTo(userID string) bool {
	if len(e.To) == 0 {
		return true
	}
	for _, id := range e.To {
		if id == userID {
			return true
		}
	}
	return false
}

// MessageCreatedData announces a new original message to the room.
type MessageCreatedData struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	OriginalText   string    `json:"original_text"`
	SourceLanguage string    `json:"source_language"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageTranslatedData tells a recipient their copy is ready to fetch.
type MessageTranslatedData struct {
	MessageID string `json:"message_id"`
	Language  string `json:"language"`
}

// PresenceData reports a user joining or leaving a room's stream.
type PresenceData struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// TypingData reports that a user is typing.
type TypingData struct {
	UserID string `json:"user_id"`
}

// inbound is a frame sent by the client.
type inbound struct {
	Type string `json:"type"`
}

const (
	inboundTyping    = "typing"
	inboundHeartbeat = "heartbeat"
)
