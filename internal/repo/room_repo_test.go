package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/owenstack/chat/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, lang string) {
	t.Helper()
	u := &domain.User{ID: id, TokenIdentifier: "tok-" + id, Name: "User " + id, SelectedLanguage: lang, AccountType: domain.AccountPublic}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestCreateRoom_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	r, err := CreateRoom(context.Background(), db, "r", domain.RoomGroup, "u1", []string{"u1"})
	if err == nil || r != nil {
		t.Fatalf("expected error creating without table, got room=%v err=%v", r, err)
	}
}

func TestCreateRoom_PersistsMembersOnceInJoinOrder(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Room{}, &domain.Membership{})
	for _, id := range []string{"u1", "u2", "u3"} {
		seedUser(t, db, id, "en")
	}

	room, err := CreateRoom(context.Background(), db, "Team", domain.RoomGroup, "u1", []string{"u1", "u3", "u2", "u3"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID == "" || room.Name != "Team" || room.CreatedBy != "u1" || room.LastActivityAt.IsZero() {
		t.Fatalf("unexpected room: %+v", room)
	}

	members, err := ListRoomMembers(context.Background(), db, room.ID)
	if err != nil {
		t.Fatalf("ListRoomMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 distinct members, got %d", len(members))
	}
	if members[0].UserID != "u1" || members[1].UserID != "u3" || members[2].UserID != "u2" {
		t.Fatalf("unexpected join order: %+v", members)
	}
	if members[0].SelectedLanguage != "en" || members[0].Name != "User u1" {
		t.Fatalf("member profile not joined: %+v", members[0])
	}
}

func TestIsMember_AndAddMemberIdempotent(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Room{}, &domain.Membership{})
	seedUser(t, db, "u1", "en")
	seedUser(t, db, "u2", "es")
	room, err := CreateRoom(context.Background(), db, "R", domain.RoomGroup, "u1", []string{"u1"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	ok, err := IsMember(context.Background(), db, room.ID, "u2")
	if err != nil || ok {
		t.Fatalf("u2 should not be a member yet: ok=%v err=%v", ok, err)
	}
	for i := 0; i < 2; i++ {
		if err := AddMember(context.Background(), db, room.ID, "u2"); err != nil {
			t.Fatalf("AddMember #%d: %v", i, err)
		}
	}
	ok, err = IsMember(context.Background(), db, room.ID, "u2")
	if err != nil || !ok {
		t.Fatalf("u2 should be a member: ok=%v err=%v", ok, err)
	}
	var n int64
	db.Model(&domain.Membership{}).Where("room_id = ?", room.ID).Count(&n)
	if n != 2 {
		t.Fatalf("expected 2 memberships, got %d", n)
	}
}

func TestListRoomsPageForUser_OrderByActivity(t *testing.T) {
	db := newRepoDB(t, &domain.Room{}, &domain.Membership{})
	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		id := string(rune('a' + i - 1))
		r := domain.Room{ID: id, Name: id, Type: domain.RoomGroup, CreatedBy: "u1", LastActivityAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed room: %v", err)
		}
		if err := db.Create(&domain.Membership{ID: "m" + id, UserID: "u1", RoomID: id, CreatedAt: base}).Error; err != nil {
			t.Fatalf("seed membership: %v", err)
		}
	}
	// Room not joined by u1.
	if err := db.Create(&domain.Room{ID: "z", Name: "z", Type: domain.RoomGroup, CreatedBy: "u2", LastActivityAt: base.Add(time.Hour)}).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}

	total, err := CountRoomsForUser(context.Background(), db, "u1")
	if err != nil || total != 4 {
		t.Fatalf("CountRoomsForUser = %d, %v; want 4", total, err)
	}
	page, err := ListRoomsPageForUser(context.Background(), db, "u1", 1, 2)
	if err != nil {
		t.Fatalf("ListRoomsPageForUser: %v", err)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "b" {
		t.Fatalf("unexpected page: %+v", page)
	}

	// Touching the oldest room moves it to the front.
	if err := TouchRoom(context.Background(), db, "a", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("TouchRoom: %v", err)
	}
	page, _ = ListRoomsPageForUser(context.Background(), db, "u1", 0, 1)
	if len(page) != 1 || page[0].ID != "a" {
		t.Fatalf("expected touched room first, got %+v", page)
	}
}

func TestGetRoom_AndTouchRoom_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Room{})
	if _, err := GetRoom(context.Background(), db, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := TouchRoom(context.Background(), db, "missing", time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound from TouchRoom, got %v", err)
	}
}

func TestListRoomMembers_ExcludesOtherRooms(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Room{}, &domain.Membership{})
	seedUser(t, db, "u1", "en")
	seedUser(t, db, "u2", "")
	r1, _ := CreateRoom(context.Background(), db, "one", domain.RoomPrivate, "u1", []string{"u1", "u2"})
	if _, err := CreateRoom(context.Background(), db, "two", domain.RoomGroup, "u1", []string{"u1"}); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	members, err := ListRoomMembers(context.Background(), db, r1.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("expected 2 members, got %d (%v)", len(members), err)
	}
	if members[1].SelectedLanguage != "" {
		t.Fatalf("empty language should be preserved, got %q", members[1].SelectedLanguage)
	}
}
