package domain

import (
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():                  "users",
		(Room{}).TableName():                  "rooms",
		(Membership{}).TableName():            "user_rooms",
		(Message{}).TableName():               "messages",
		(DeliveredCopy{}).TableName():         "user_messages",
		(TranslationCacheEntry{}).TableName(): "translation_cache",
		(TranslationJob{}).TableName():        "translation_jobs",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	models := []any{&User{}, &Room{}, &Membership{}, &Message{}, &DeliveredCopy{}, &TranslationCacheEntry{}, &TranslationJob{}}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range models {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&DeliveredCopy{}, "ux_copy_user_message") {
		t.Fatalf("expected unique index ux_copy_user_message on user_messages")
	}
	if !m.HasIndex(&TranslationCacheEntry{}, "ux_cache_source_target") {
		t.Fatalf("expected unique index ux_cache_source_target on translation_cache")
	}
	if !m.HasIndex(&Message{}, "idx_room_msgs") {
		t.Fatalf("expected index idx_room_msgs on messages")
	}

	now := time.Now().UTC()
	room := &Room{ID: "r1", Name: "R", Type: RoomGroup, CreatedBy: "u1", LastActivityAt: now}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("insert room: %v", err)
	}
	msg := &Message{ID: "m1", RoomID: "r1", AuthorID: "u1", OriginalText: "hello", SourceLanguage: "en", Status: StatusSent, CreatedAt: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	cp := &DeliveredCopy{ID: "d1", UserID: "u2", MessageID: "m1", TranslatedText: "hola", TargetLanguage: "es", CreatedAt: now}
	if err := db.Create(cp).Error; err != nil {
		t.Fatalf("insert copy: %v", err)
	}
	dup := &DeliveredCopy{ID: "d2", UserID: "u2", MessageID: "m1", TranslatedText: "hola", TargetLanguage: "es", CreatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation for second copy of (u2, m1)")
	}

	job := &TranslationJob{ID: "j1", MessageID: "m1", RoomID: "r1", AuthorID: "u1", SourceText: "hello", SourceLanguage: "en", TargetLanguage: "es", RecipientIDs: []string{"u2", "u3"}, State: JobPending}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("insert job: %v", err)
	}
	var gotJob TranslationJob
	if err := db.First(&gotJob, "id = ?", "j1").Error; err != nil {
		t.Fatalf("read job: %v", err)
	}
	if len(gotJob.RecipientIDs) != 2 || gotJob.RecipientIDs[1] != "u3" {
		t.Fatalf("recipient ids not round-tripped: %+v", gotJob.RecipientIDs)
	}

	// CASCADE: deleting the room removes its messages, copies and jobs.
	if err := db.Delete(&Room{}, "id = ?", "r1").Error; err != nil {
		t.Fatalf("delete room: %v", err)
	}
	var cnt int64
	db.Model(&Message{}).Where("room_id = ?", "r1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got %d", cnt)
	}
	db.Model(&DeliveredCopy{}).Where("message_id = ?", "m1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected copies to cascade-delete, got %d", cnt)
	}
	db.Model(&TranslationJob{}).Where("message_id = ?", "m1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected jobs to cascade-delete, got %d", cnt)
	}
}

func TestParseLanguage(t *testing.T) {
	cases := map[string]Language{
		"en":         "en",
		"EN":         "en",
		"pt_BR":      "pt",
		"fr-CA":      "fr",
		" ja ":       "ja",
		"zh-Hant-TW": "zh",
	}
	for in, want := range cases {
		got, err := ParseLanguage(in)
		if err != nil {
			t.Errorf("ParseLanguage(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLanguage(%q) = %q; want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "   ", "not a language", "12"} {
		if _, err := ParseLanguage(bad); !errors.Is(err, ErrInvalidLanguage) {
			t.Errorf("ParseLanguage(%q) expected ErrInvalidLanguage, got %v", bad, err)
		}
	}
}

func TestJobState_Terminal(t *testing.T) {
	for _, s := range []JobState{JobDone, JobFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobState{JobPending, JobCacheHit, JobCacheMiss, JobModelCalled, JobCacheWritten, JobDelivering} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
