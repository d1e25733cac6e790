package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/translation"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mkUser(t *testing.T, db *gorm.DB, id, lang string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:               id,
		TokenIdentifier:  "https://auth.example|user|" + id,
		Name:             "user " + id,
		SelectedLanguage: lang,
		AccountType:      domain.AccountPublic,
	}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func mkRoom(t *testing.T, db *gorm.DB, creator string, members ...string) *domain.Room {
	t.Helper()
	typ := domain.RoomGroup
	if len(members) == 2 {
		typ = domain.RoomPrivate
	}
	r, err := repo.CreateRoom(context.Background(), db, "room", typ, creator, members)
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return r
}

type fakeResolver struct {
	groups translation.LanguageGroups
	err    error
}

func (f *fakeResolver) Resolve(context.Context, string) (translation.LanguageGroups, error) {
	return f.groups, f.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  int
	groups translation.LanguageGroups
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msg *domain.Message, groups translation.LanguageGroups) ([]domain.TranslationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.groups = groups
	return nil, f.err
}

type fakeEvents struct {
	mu      sync.Mutex
	created []string
}

func (f *fakeEvents) MessageCreated(_ context.Context, msg *domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, msg.ID)
}

type trackCall struct {
	customer, feature string
	value             float64
}

type fakeTracker struct {
	calls chan trackCall
}

func (f *fakeTracker) Track(_ context.Context, customerID, featureID string, value float64) error {
	f.calls <- trackCall{customerID, featureID, value}
	return nil
}
