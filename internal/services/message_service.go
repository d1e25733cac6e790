// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the lifecycle of room messages. On send it validates the text and
// language, persists the original and bumps the room's activity atomically,
// then hands the message to the translation fan-out. On read it pages through
// a room's messages and substitutes each reader's own translated copy where one
// has been delivered.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include room/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/metering"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/translation"
	"github.com/owenstack/chat/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// GroupResolver groups a room's readers by language.
type GroupResolver interface {
	Resolve(ctx context.Context, roomID string) (translation.LanguageGroups, error)
}

// JobDispatcher turns a stored message into translation jobs.
type JobDispatcher interface {
	Dispatch(ctx context.Context, msg *domain.Message, groups translation.LanguageGroups) ([]domain.TranslationJob, error)
}

// MessageEvents is notified about new messages.
type MessageEvents interface {
	MessageCreated(ctx context.Context, msg *domain.Message)
}

// MessageService coordinates message persistence, translation fan-out and the
// per-reader read path.
type MessageService struct {
	DB         *gorm.DB
	Resolver   GroupResolver
	Dispatcher JobDispatcher

	// Optional collaborators
	Events MessageEvents
	Meter  metering.Tracker

	// MaxTextRunes caps message length; 0 disables the check.
	MaxTextRunes int
}

// MessageView is a message as seen by one reader.
type MessageView struct {
	ID       string `json:"id"`
	RoomID   string `json:"room_id"`
	AuthorID string `json:"author_id"`
	// Text is the reader's translated copy when one exists, else the original.
	Text           string               `json:"text"`
	OriginalText   string               `json:"original_text"`
	SourceLanguage string               `json:"source_language"`
	Language       string               `json:"language"`
	Translated     bool                 `json:"translated"`
	IsUserMessage  bool                 `json:"is_user_message"`
	Status         domain.MessageStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// MessagePage is one keyset page of a room's messages.
type MessagePage struct {
	Items      []MessageView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// Send validates and stores a message from actor, then dispatches its
// translations. The message status follows persistence: once stored it reads
// delivered, even when some language groups could not be dispatched.
func (s *MessageService) Send(ctx context.Context, actor *domain.User, roomID, text, sourceLanguage string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actor.ID),
		),
	)
	defer span.End()

	text = sanitizeText(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes {
		return nil, ErrTooLong
	}
	lang, err := domain.ParseLanguage(sourceLanguage)
	if err != nil {
		return nil, ErrInvalidLanguage
	}
	if _, err := readableRoom(ctx, s.DB, actor.ID, roomID); err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(tx, roomID, actor.ID, text, lang.String(), domain.StatusSent)
		if err != nil {
			return err
		}
		msg = m
		return repo.TouchRoom(ctx, tx, roomID, m.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("message.id", msg.ID))

	if s.Events != nil {
		s.Events.MessageCreated(ctx, msg)
	}
	s.track(ctx, actor)

	// A failed language group stays on its job row; the message itself is stored.
	if err := s.fanOut(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fan-out failed")
		log.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Str("room_id", roomID).Msg("translation fan-out failed")
	}
	if err := repo.UpdateMessageStatus(s.DB.WithContext(ctx), msg.ID, domain.StatusDelivered); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Msg("update message status")
	} else {
		msg.Status = domain.StatusDelivered
	}
	return msg, nil
}

func (s *MessageService) fanOut(ctx context.Context, msg *domain.Message) error {
	if s.Resolver == nil || s.Dispatcher == nil {
		return nil
	}
	groups, err := s.Resolver.Resolve(ctx, msg.RoomID)
	if err != nil {
		return err
	}
	jobs, err := s.Dispatcher.Dispatch(ctx, msg, groups)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("translation.languages", len(jobs)),
		attribute.Int("translation.recipients", groups.Size()),
	)
	return err
}

// track reports one sent message for billing without delaying the caller.
func (s *MessageService) track(ctx context.Context, actor *domain.User) {
	if s.Meter == nil {
		return
	}
	customer := metering.CustomerID(actor.TokenIdentifier)
	go func() {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.Meter.Track(tctx, customer, metering.FeatureMessages, 1); err != nil {
			log.Warn().Err(err).Str("user_id", actor.ID).Msg("usage tracking failed")
		}
	}()
}

// Get returns one message of a room the actor belongs to.
func (s *MessageService) Get(ctx context.Context, actor *domain.User, roomID, messageID string) (*domain.Message, error) {
	if _, err := readableRoom(ctx, s.DB, actor.ID, roomID); err != nil {
		return nil, err
	}
	m, err := repo.GetMessage(s.DB.WithContext(ctx), messageID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && m.RoomID != roomID) {
		return nil, ErrMessageNotFound
	}
	return m, err
}

// List returns the page of roomID's messages after cursor, oldest first, as
// seen by actor: authored messages keep their original text, other messages
// show actor's delivered copy when there is one.
func (s *MessageService) List(ctx context.Context, actor *domain.User, roomID, cursor string, limit int) (*MessagePage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", actor.ID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	after, err := utils.DecodeCursor(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if _, err := readableRoom(ctx, s.DB, actor.ID, roomID); err != nil {
		return nil, err
	}

	rows, err := repo.ListMessagesAfter(s.DB.WithContext(ctx), roomID, after.At, after.ID, limit+1)
	if err != nil {
		return nil, err
	}
	page := &MessagePage{Items: make([]MessageView, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
	}

	var others []string
	for _, m := range rows {
		if m.AuthorID != actor.ID {
			others = append(others, m.ID)
		}
	}
	copies := map[string]domain.DeliveredCopy{}
	if len(others) > 0 {
		copies, err = repo.ListCopiesForUser(ctx, s.DB, actor.ID, others)
		if err != nil {
			return nil, err
		}
	}

	for _, m := range rows {
		page.Items = append(page.Items, viewFor(actor.ID, m, copies))
	}
	if page.HasMore {
		last := rows[len(rows)-1]
		page.NextCursor = utils.EncodeCursor(utils.Cursor{At: last.CreatedAt, ID: last.ID})
	}
	span.SetAttributes(attribute.Int("messages.returned", len(page.Items)))
	return page, nil
}

// Fingerprint summarizes what actor would see in roomID so handlers can build
// a validator: message count, latest update and the actor's copy count.
func (s *MessageService) Fingerprint(ctx context.Context, actor *domain.User, roomID string) (count int64, latest *time.Time, copies int64, err error) {
	if _, err = readableRoom(ctx, s.DB, actor.ID, roomID); err != nil {
		return 0, nil, 0, err
	}
	if count, latest, err = repo.MessagesStats(ctx, s.DB, roomID); err != nil {
		return 0, nil, 0, err
	}
	copies, err = repo.CopiesStats(ctx, s.DB, roomID, actor.ID)
	return count, latest, copies, err
}

func viewFor(actorID string, m domain.Message, copies map[string]domain.DeliveredCopy) MessageView {
	v := MessageView{
		ID:             m.ID,
		RoomID:         m.RoomID,
		AuthorID:       m.AuthorID,
		Text:           m.OriginalText,
		OriginalText:   m.OriginalText,
		SourceLanguage: m.SourceLanguage,
		Language:       m.SourceLanguage,
		IsUserMessage:  m.AuthorID == actorID,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
	if v.IsUserMessage {
		return v
	}
	if c, ok := copies[m.ID]; ok && canReadCopy(actorID, c) {
		v.Text = c.TranslatedText
		v.Language = c.TargetLanguage
		v.Translated = true
	}
	return v
}

// sanitizeText trims the text and drops control characters other than
// newlines and tabs.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
