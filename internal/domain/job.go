package domain

import "time"

// JobState is a step in the translation job state machine:
//
//	pending -> cache_hit -> delivering -> done
//	pending -> cache_miss -> model_called -> cache_written -> delivering -> done
//	pending -> failed
type JobState string

const (
	JobPending      JobState = "pending"
	JobCacheHit     JobState = "cache_hit"
	JobCacheMiss    JobState = "cache_miss"
	JobModelCalled  JobState = "model_called"
	JobCacheWritten JobState = "cache_written"
	JobDelivering   JobState = "delivering"
	JobDone         JobState = "done"
	JobFailed       JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool { return s == JobDone || s == JobFailed }

// TranslationJob is one (message, target language) unit of fan-out work and
// doubles as the queue payload. RecipientIDs lists every user in the target
// language group.
type TranslationJob struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	MessageID      string    `json:"message_id"      gorm:"type:char(36);not null;uniqueIndex:ux_job_message_lang,priority:1"`
	RoomID         string    `json:"room_id"         gorm:"type:char(36);not null"`
	AuthorID       string    `json:"author_id"       gorm:"type:char(36);not null"`
	SourceText     string    `json:"source_text"     gorm:"type:text;not null"`
	SourceLanguage string    `json:"source_language" gorm:"type:varchar(16);not null"`
	TargetLanguage string    `json:"target_language" gorm:"type:varchar(16);not null;uniqueIndex:ux_job_message_lang,priority:2"`
	RecipientIDs   []string  `json:"recipient_ids"   gorm:"type:text;not null;serializer:json"`
	State          JobState  `json:"state"           gorm:"type:varchar(16);not null;index"`
	Attempts       int       `json:"attempts"        gorm:"not null;default:0"`
	Error          string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TranslationJob.
func (TranslationJob) TableName() string { return "translation_jobs" }
