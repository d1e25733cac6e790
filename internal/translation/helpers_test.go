package translation

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/redisx"
	"github.com/owenstack/chat/internal/repo"
)

func newPipelineDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pipeline.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps concurrent workers from tripping SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// newTestRedis starts an in-process Redis and connects a client to it.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisx.NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// countingCache counts lookups that reach the wrapped tier.
type countingCache struct {
	Cache
	lookups atomic.Int32
}

func (c *countingCache) Lookup(ctx context.Context, text, lang string) (string, bool, error) {
	c.lookups.Add(1)
	return c.Cache.Lookup(ctx, text, lang)
}

func seedUser(t *testing.T, db *gorm.DB, id, lang string) {
	t.Helper()
	require.NoError(t, repo.CreateUser(context.Background(), db, &domain.User{
		ID:               id,
		TokenIdentifier:  "tok-" + id,
		Name:             id,
		SelectedLanguage: lang,
		AccountType:      domain.AccountPublic,
	}))
}

// seedRoom creates users (id -> language) and a group room holding all of
// them in the given order.
func seedRoom(t *testing.T, db *gorm.DB, members [][2]string) *domain.Room {
	t.Helper()
	ids := make([]string, 0, len(members))
	for _, m := range members {
		seedUser(t, db, m[0], m[1])
		ids = append(ids, m[0])
	}
	room, err := repo.CreateRoom(context.Background(), db, "room", domain.RoomGroup, ids[0], ids)
	require.NoError(t, err)
	return room
}

func seedMessageAt(t *testing.T, db *gorm.DB, roomID, authorID, text, lang string, at time.Time) *domain.Message {
	t.Helper()
	m := &domain.Message{
		ID:             text + "-" + authorID + "-" + at.Format("150405.000000"),
		RoomID:         roomID,
		AuthorID:       authorID,
		OriginalText:   text,
		SourceLanguage: lang,
		Status:         domain.StatusSent,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// fakeModel records calls and answers "<lang>:<text>" unless fail says otherwise.
type fakeModel struct {
	mu    sync.Mutex
	calls atomic.Int32
	reqs  []Request
	delay time.Duration
	fail  func(Request) error
}

func (m *fakeModel) Translate(ctx context.Context, req Request) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.fail != nil {
		if err := m.fail(req); err != nil {
			return "", err
		}
	}
	return req.TargetLanguage + ":" + req.Text, nil
}

func (m *fakeModel) requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.reqs...)
}

type recordedNotice struct {
	roomID, messageID, lang string
	userIDs                 []string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *fakeNotifier) MessageTranslated(_ context.Context, roomID, messageID, lang string, userIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{roomID, messageID, lang, userIDs})
}
