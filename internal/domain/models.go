// Package domain defines the persistence models for users, rooms, messages,
// per-user delivered translations and the global translation cache. These
// types are mapped with GORM and form the core data layer of the chat
// service.
package domain

import (
	"time"
)

// Account visibility values for User.AccountType.
const (
	AccountPublic  = "public"
	AccountPrivate = "private"
)

// Room types. A private room has exactly two members.
const (
	RoomPrivate = "private"
	RoomGroup   = "group"
)

// MessageStatus tracks a message through the send pipeline.
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// User is an authenticated person. Users are created on first setup and
// looked up afterwards by the identity provider's token identifier.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TokenIdentifier: auth subject, unique.
//   - Name / Avatar: display profile.
//   - SelectedLanguage: preferred display language (base code, may be empty).
//   - AccountType: "public" users are discoverable in the user directory.
type User struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	TokenIdentifier  string    `json:"-"                 gorm:"type:varchar(255);not null;uniqueIndex:ux_users_token"`
	Name             string    `json:"name"              gorm:"type:varchar(255);not null;index:idx_users_name"`
	Avatar           string    `json:"avatar"            gorm:"type:text"`
	SelectedLanguage string    `json:"selected_language" gorm:"type:varchar(16);not null;default:''"`
	AccountType      string    `json:"account_type"      gorm:"type:varchar(16);not null;default:'public';index:idx_users_type;check:account_type IN ('public','private')"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Room is a conversation container shared by its members.
type Room struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Name           string    `json:"name"             gorm:"type:varchar(255);not null"`
	Type           string    `json:"type"             gorm:"type:varchar(16);not null;check:type IN ('private','group')"`
	CreatedBy      string    `json:"-"                gorm:"type:char(36);not null"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"not null;index:idx_rooms_activity"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "rooms" }

// Membership associates a user with a room. A user appears at most once per room.
type Membership struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:char(36);not null;uniqueIndex:ux_member_user_room,priority:1;index:idx_member_user"`
	RoomID    string    `json:"room_id" gorm:"type:char(36);not null;uniqueIndex:ux_member_user_room,priority:2;index:idx_member_room"`
	CreatedAt time.Time `json:"created_at"`

	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Membership.
func (Membership) TableName() string { return "user_rooms" }

// Message is the canonical, immutable original text of a send. Only Status
// changes after insert.
type Message struct {
	ID             string        `json:"id"              gorm:"type:char(36);primaryKey"`
	RoomID         string        `json:"room_id"         gorm:"type:char(36);not null;index:idx_room_msgs,priority:1"`
	AuthorID       string        `json:"author_id"       gorm:"type:char(36);not null"`
	OriginalText   string        `json:"original_text"   gorm:"type:text;not null"`
	SourceLanguage string        `json:"source_language" gorm:"type:varchar(16);not null"`
	Status         MessageStatus `json:"status"          gorm:"type:varchar(16);not null;check:status IN ('sending','sent','delivered','failed')"`
	CreatedAt      time.Time     `json:"created_at"      gorm:"index:idx_room_msgs,priority:2"`
	UpdatedAt      time.Time     `json:"updated_at"`

	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DeliveredCopy is one recipient's translated rendering of a message. The
// unique (user_id, message_id) index makes delivery idempotent.
type DeliveredCopy struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string    `json:"user_id"         gorm:"type:char(36);not null;uniqueIndex:ux_copy_user_message,priority:1"`
	MessageID      string    `json:"message_id"      gorm:"type:char(36);not null;uniqueIndex:ux_copy_user_message,priority:2;index"`
	TranslatedText string    `json:"translated_text" gorm:"type:text;not null"`
	TargetLanguage string    `json:"target_language" gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time `json:"created_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DeliveredCopy.
func (DeliveredCopy) TableName() string { return "user_messages" }

// TranslationCacheEntry maps (source text, target language) to a translation.
// Entries are append-only. SourceHash keeps the unique index small for long
// texts; lookups still compare the full SourceText.
type TranslationCacheEntry struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	SourceHash     string    `gorm:"type:char(64);not null;uniqueIndex:ux_cache_source_target,priority:1"`
	SourceText     string    `gorm:"type:text;not null"`
	TargetLanguage string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_cache_source_target,priority:2"`
	TranslatedText string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the database table name for TranslationCacheEntry.
func (TranslationCacheEntry) TableName() string { return "translation_cache" }
