package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
)

func seedMessages(t *testing.T, db *gorm.DB, msgs ...domain.Message) {
	t.Helper()
	for i := range msgs {
		if msgs[i].Status == "" {
			msgs[i].Status = domain.StatusSent
		}
		if msgs[i].SourceLanguage == "" {
			msgs[i].SourceLanguage = "en"
		}
		if err := db.Create(&msgs[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", msgs[i].ID, err)
		}
	}
}

func TestCreateMessage_InsertsAndReadsBack(t *testing.T) {
	db := newRepoDB(t, &domain.Room{}, &domain.Message{})
	if err := db.Create(&domain.Room{ID: "r1", Name: "r", Type: domain.RoomGroup, CreatedBy: "u1", LastActivityAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}

	msg, err := CreateMessage(db, "r1", "u1", "hello", "en", domain.StatusSent)
	if err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if msg.ID == "" || msg.RoomID != "r1" || msg.AuthorID != "u1" || msg.OriginalText != "hello" || msg.Status != domain.StatusSent {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.CreatedAt.IsZero() || time.Since(msg.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", msg.CreatedAt)
	}

	got, err := GetMessage(db, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.ID != msg.ID || got.SourceLanguage != "en" {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, msg)
	}
}

func TestUpdateMessageStatus_OnlyTouchesStatus(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	seedMessages(t, db, domain.Message{ID: "m1", RoomID: "r1", AuthorID: "u1", OriginalText: "keep me"})

	if err := UpdateMessageStatus(db, "m1", domain.StatusDelivered); err != nil {
		t.Fatalf("UpdateMessageStatus: %v", err)
	}
	got, _ := GetMessage(db, "m1")
	if got.Status != domain.StatusDelivered || got.OriginalText != "keep me" {
		t.Fatalf("unexpected message after patch: %+v", got)
	}
	if err := UpdateMessageStatus(db, "missing", domain.StatusFailed); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessagesAfter_CursorOrderAndLimit(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})

	// Same CreatedAt for first two; ID "a" should come before "b".
	t0 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(1 * time.Second)
	seedMessages(t, db,
		domain.Message{ID: "b", RoomID: "r2", AuthorID: "u1", OriginalText: "y", CreatedAt: t0},
		domain.Message{ID: "a", RoomID: "r2", AuthorID: "u1", OriginalText: "x", CreatedAt: t0},
		domain.Message{ID: "z", RoomID: "r2", AuthorID: "u2", OriginalText: "z", CreatedAt: t1},
		domain.Message{ID: "o", RoomID: "other", AuthorID: "u2", OriginalText: "o", CreatedAt: t0},
	)

	all, err := ListMessagesAfter(db, "r2", time.Time{}, "", 0)
	if err != nil {
		t.Fatalf("ListMessagesAfter(all): %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "z" {
		t.Fatalf("unexpected order/all: %+v", all)
	}

	// Resume after "a" at the same timestamp: tie broken by ID.
	next, err := ListMessagesAfter(db, "r2", t0, "a", 1)
	if err != nil {
		t.Fatalf("ListMessagesAfter(cursor): %v", err)
	}
	if len(next) != 1 || next[0].ID != "b" {
		t.Fatalf("expected b after a, got %+v", next)
	}

	last, _ := ListMessagesAfter(db, "r2", t0, "b", 10)
	if len(last) != 1 || last[0].ID != "z" {
		t.Fatalf("expected z after b, got %+v", last)
	}
	none, _ := ListMessagesAfter(db, "r2", t1, "z", 10)
	if len(none) != 0 {
		t.Fatalf("expected empty tail, got %+v", none)
	}
}

func TestListRecentBefore_ChronologicalWindow(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	base := time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		seedMessages(t, db, domain.Message{
			ID:           string(rune('a' + i - 1)),
			RoomID:       "r3",
			AuthorID:     "u1",
			OriginalText: "x",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		})
	}

	// Window of 3 before "e" -> b, c, d in chronological order.
	out, err := ListRecentBefore(db, "r3", base.Add(5*time.Second), "e", 3)
	if err != nil {
		t.Fatalf("ListRecentBefore: %v", err)
	}
	if len(out) != 3 || out[0].ID != "b" || out[1].ID != "c" || out[2].ID != "d" {
		t.Fatalf("unexpected window: %+v", out)
	}

	// Fewer than n prior messages.
	out, _ = ListRecentBefore(db, "r3", base.Add(2*time.Second), "b", 3)
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("expected only a, got %+v", out)
	}
	if out, _ := ListRecentBefore(db, "r3", base, "x", 0); out != nil {
		t.Fatalf("n=0 should return nil, got %+v", out)
	}
}

func TestCountMessages_ErrorAndSuccess(t *testing.T) {
	if _, err := CountMessages(newRepoDB(t), "rx"); err == nil {
		t.Fatalf("expected error due to missing messages table")
	}

	db := newRepoDB(t, &domain.Message{})
	seedMessages(t, db,
		domain.Message{ID: "m1", RoomID: "rx", AuthorID: "u1", OriginalText: "1"},
		domain.Message{ID: "m2", RoomID: "rx", AuthorID: "u1", OriginalText: "2"},
		domain.Message{ID: "m3", RoomID: "ry", AuthorID: "u1", OriginalText: "3"},
	)
	total, err := CountMessages(db, "rx")
	if err != nil || total != 2 {
		t.Fatalf("CountMessages = %d, %v; want 2", total, err)
	}
}

// The repository funcs accept a *gorm.DB that may have context/tx set.
func TestMessageRepoWithContextHandles(t *testing.T) {
	db := newRepoDB(t, &domain.Message{})
	type ctxKey struct{}
	tdb := db.WithContext(context.WithValue(context.Background(), ctxKey{}, "v"))

	m, err := CreateMessage(tdb, "rX", "u1", "hello", "en", domain.StatusSending)
	if err != nil {
		t.Fatalf("CreateMessage with context: %v", err)
	}
	if _, err := ListMessagesAfter(tdb, "rX", time.Time{}, "", 10); err != nil {
		t.Fatalf("ListMessagesAfter with context: %v", err)
	}
	if err := UpdateMessageStatus(tdb, m.ID, domain.StatusSent); err != nil {
		t.Fatalf("UpdateMessageStatus with context: %v", err)
	}
}
