package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/owenstack/chat/internal/domain"
)

// Service ties a broker, a local hub and a presence store together. It is
// both the event publisher used by the send path and the translation worker
// and the entry point for websocket connections.
type Service struct {
	hub      *Hub
	broker   Broker
	presence PresenceStore
	now      func() time.Time
}

// NewService wires a realtime service.
func NewService(broker Broker, presence PresenceStore) *Service {
	return &Service{
		hub:      NewHub(),
		broker:   broker,
		presence: presence,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Hub exposes the local client registry.
func (s *Service) Hub() *Hub { return s.hub }

// Run forwards broker events to local clients until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	return s.broker.Subscribe(ctx, s.hub.Dispatch)
}

// Serve attaches an upgraded connection to roomID for userID and blocks until
// it closes.
func (s *Service) Serve(ctx context.Context, conn *websocket.Conn, roomID, userID string) {
	c := newClient(s, conn, roomID, userID)
	if err := s.Heartbeat(ctx, roomID, userID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("presence heartbeat")
	}
	s.hub.register(c)
	s.publish(ctx, roomID, EventPresence, nil, PresenceData{UserID: userID, Online: true})

	go c.writePump()
	c.readPump(ctx)

	c.stop()
	// The request context may be finished by now.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.presence.Leave(bg, roomID, userID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("presence leave")
	}
	s.hub.unregister(c)
	s.publish(bg, roomID, EventPresence, nil, PresenceData{UserID: userID, Online: false})
}

// Heartbeat marks userID online in roomID.
func (s *Service) Heartbeat(ctx context.Context, roomID, userID string) error {
	return s.presence.Touch(ctx, roomID, userID, s.now())
}

// Online lists users with a live heartbeat in roomID.
func (s *Service) Online(ctx context.Context, roomID string) ([]string, error) {
	return s.presence.Online(ctx, roomID, s.now())
}

// Typing tells the room that userID is typing.
func (s *Service) Typing(ctx context.Context, roomID, userID string) {
	s.publish(ctx, roomID, EventTyping, nil, TypingData{UserID: userID})
}

// MessageCreated announces a stored original message to its room.
func (s *Service) MessageCreated(ctx context.Context, msg *domain.Message) {
	s.publish(ctx, msg.RoomID, EventMessageCreated, nil, MessageCreatedData{
		ID:             msg.ID,
		AuthorID:       msg.AuthorID,
		OriginalText:   msg.OriginalText,
		SourceLanguage: msg.SourceLanguage,
		CreatedAt:      msg.CreatedAt,
	})
}

// MessageTranslated tells each recipient that their copy is readable.
func (s *Service) MessageTranslated(ctx context.Context, roomID, messageID, lang string, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	s.publish(ctx, roomID, EventMessageTranslated, userIDs, MessageTranslatedData{MessageID: messageID, Language: lang})
}

// publish is best-effort: realtime delivery never fails the caller.
func (s *Service) publish(ctx context.Context, roomID string, typ EventType, to []string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("type", string(typ)).Msg("encode event data")
		return
	}
	ev := Event{Type: typ, RoomID: roomID, To: to, Data: raw, At: s.now()}
	if err := s.broker.Publish(ctx, ev); err != nil {
		eventsPublished.WithLabelValues(string(typ), "error").Inc()
		log.Ctx(ctx).Warn().Err(err).Str("type", string(typ)).Str("room_id", roomID).Msg("publish event")
		return
	}
	eventsPublished.WithLabelValues(string(typ), "ok").Inc()
}
