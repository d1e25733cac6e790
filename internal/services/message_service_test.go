package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/metering"
	"github.com/owenstack/chat/internal/queue"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/translation"
)

// ---------- Send() ----------

func TestMessageService_Send_Validation(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	room := mkRoom(t, db, "a", "a", "b")
	s := &MessageService{DB: db, MaxTextRunes: 5}
	ctx := context.Background()

	cases := []struct {
		name, room, text, lang string
		want                   error
	}{
		{"blank", room.ID, " \t\n ", "en", ErrEmptyText},
		{"control only", room.ID, "\x00\x07", "en", ErrEmptyText},
		{"too long", room.ID, "abcdef", "en", ErrTooLong},
		{"bad language", room.ID, "hi", "not a language", ErrInvalidLanguage},
		{"unknown room", "nope", "hi", "en", ErrRoomNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Send(ctx, a, tc.room, tc.text, tc.lang)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n, _ := repo.CountMessages(db, room.ID); n != 0 {
		t.Fatalf("rejected sends must not persist, got %d rows", n)
	}
}

func TestMessageService_Send_NonMemberIsNotFound(t *testing.T) {
	db := newSvcDB(t)
	mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	outsider := mkUser(t, db, "c", "fr")
	room := mkRoom(t, db, "a", "a", "b")

	s := &MessageService{DB: db}
	if _, err := s.Send(context.Background(), outsider, room.ID, "hola", "es"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestMessageService_Send_DeliveredAndFannedOut(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	mkUser(t, db, "c", "fr")
	room := mkRoom(t, db, "a", "a", "b", "c")
	before := room.LastActivityAt

	groups := translation.LanguageGroups{"en": {"a"}, "es": {"b"}, "fr": {"c"}}
	disp := &fakeDispatcher{}
	events := &fakeEvents{}
	tracker := &fakeTracker{calls: make(chan trackCall, 1)}
	s := &MessageService{
		DB:         db,
		Resolver:   &fakeResolver{groups: groups},
		Dispatcher: disp,
		Events:     events,
		Meter:      tracker,
	}

	msg, err := s.Send(context.Background(), a, room.ID, "  hello\x00 world  ", "EN")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.OriginalText != "hello world" || msg.SourceLanguage != "en" {
		t.Fatalf("unexpected stored message: %+v", msg)
	}
	if msg.Status != domain.StatusDelivered {
		t.Fatalf("status = %s, want delivered", msg.Status)
	}
	stored, err := repo.GetMessage(db, msg.ID)
	if err != nil || stored.Status != domain.StatusDelivered {
		t.Fatalf("persisted status = %v, %v", stored, err)
	}
	if disp.calls != 1 || disp.groups.Size() != 3 {
		t.Fatalf("dispatcher calls=%d groups=%v", disp.calls, disp.groups)
	}
	if len(events.created) != 1 || events.created[0] != msg.ID {
		t.Fatalf("expected one created event for %s, got %v", msg.ID, events.created)
	}

	r, _ := repo.GetRoom(context.Background(), db, room.ID)
	if !r.LastActivityAt.After(before) && !r.LastActivityAt.Equal(msg.CreatedAt) {
		t.Fatalf("room activity not bumped: before=%v after=%v", before, r.LastActivityAt)
	}

	select {
	case call := <-tracker.calls:
		if call.customer != "a" || call.feature != metering.FeatureMessages || call.value != 1 {
			t.Fatalf("unexpected usage record: %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("usage was not tracked")
	}
}

func TestMessageService_Send_DispatchFailureStillReturnsMessage(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	room := mkRoom(t, db, "a", "a", "b")

	s := &MessageService{
		DB:         db,
		Resolver:   &fakeResolver{groups: translation.LanguageGroups{"es": {"b"}}},
		Dispatcher: &fakeDispatcher{err: errors.New("queue full")},
	}
	msg, err := s.Send(context.Background(), a, room.ID, "hi", "en")
	if err != nil {
		t.Fatalf("Send should not fail on dispatch errors, got %v", err)
	}
	if msg.Status != domain.StatusDelivered {
		t.Fatalf("status = %s, want delivered", msg.Status)
	}
	stored, _ := repo.GetMessage(db, msg.ID)
	if stored.Status != domain.StatusDelivered {
		t.Fatalf("persisted status = %s, want delivered", stored.Status)
	}
}

func TestMessageService_Send_ResolveFailureSkipsDispatch(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	room := mkRoom(t, db, "a", "a", "b")

	disp := &fakeDispatcher{}
	s := &MessageService{
		DB:         db,
		Resolver:   &fakeResolver{err: errors.New("db down")},
		Dispatcher: disp,
	}
	msg, err := s.Send(context.Background(), a, room.ID, "hi", "en")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Status != domain.StatusDelivered || disp.calls != 0 {
		t.Fatalf("status=%s dispatch calls=%d", msg.Status, disp.calls)
	}
}

// One language group failing to enqueue fails only its own job; the other
// group and the message are unaffected.
func TestMessageService_Send_PartialEnqueueFailureIsolated(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	mkUser(t, db, "c", "fr")
	room := mkRoom(t, db, "a", "a", "b", "c")

	q := queue.NewMemory(1)
	s := &MessageService{
		DB:         db,
		Resolver:   translation.NewResolver(db),
		Dispatcher: translation.NewDispatcher(db, q, translation.PolicySkip),
	}
	msg, err := s.Send(context.Background(), a, room.ID, "hi", "en")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Status != domain.StatusDelivered {
		t.Fatalf("status = %s, want delivered", msg.Status)
	}

	jobs, err := repo.ListJobsForMessage(context.Background(), db, msg.ID)
	if err != nil || len(jobs) != 2 {
		t.Fatalf("jobs=%d err=%v", len(jobs), err)
	}
	var failed, pending int
	for _, j := range jobs {
		switch j.State {
		case domain.JobFailed:
			failed++
		case domain.JobPending:
			pending++
		}
	}
	if failed != 1 || pending != 1 || q.Len() != 1 {
		t.Fatalf("failed=%d pending=%d queued=%d; want 1/1/1", failed, pending, q.Len())
	}
	stored, _ := repo.GetMessage(db, msg.ID)
	if stored.Status != domain.StatusDelivered {
		t.Fatalf("persisted status = %s, want delivered", stored.Status)
	}
}

// ---------- List() ----------

func TestMessageService_List_ReaderViews(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	b := mkUser(t, db, "b", "es")
	c := mkUser(t, db, "c", "fr")
	room := mkRoom(t, db, "a", "a", "b", "c")
	s := &MessageService{DB: db}
	ctx := context.Background()

	m1, err := s.Send(ctx, a, room.ID, "good morning", "en")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	// Only b received a translation so far.
	if _, err := repo.InsertCopies(ctx, db, m1.ID, "buenos días", "es", []string{"b"}); err != nil {
		t.Fatalf("insert copy: %v", err)
	}

	// Author sees their own original.
	page, err := s.List(ctx, a, room.ID, "", 0)
	if err != nil {
		t.Fatalf("List(a): %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	v := page.Items[0]
	if !v.IsUserMessage || v.Translated || v.Text != "good morning" || v.Language != "en" {
		t.Fatalf("author view wrong: %+v", v)
	}

	// Recipient with a copy sees the translation.
	page, _ = s.List(ctx, b, room.ID, "", 0)
	v = page.Items[0]
	if v.IsUserMessage || !v.Translated || v.Text != "buenos días" || v.Language != "es" || v.OriginalText != "good morning" {
		t.Fatalf("translated view wrong: %+v", v)
	}

	// Recipient without a copy falls back to the original.
	page, _ = s.List(ctx, c, room.ID, "", 0)
	v = page.Items[0]
	if v.Translated || v.Text != "good morning" || v.Language != "en" {
		t.Fatalf("fallback view wrong: %+v", v)
	}
}

func TestMessageService_List_CursorPaging(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	room := mkRoom(t, db, "a", "a", "b")
	s := &MessageService{DB: db}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Send(ctx, a, room.ID, strings.Repeat("x", i+1), "en"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	var got []string
	cursor := ""
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatalf("paging did not terminate")
		}
		page, err := s.List(ctx, a, room.ID, cursor, 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, v := range page.Items {
			got = append(got, v.Text)
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Fatalf("last page must not carry a cursor")
			}
			break
		}
		cursor = page.NextCursor
	}
	want := []string{"x", "xx", "xxx", "xxxx", "xxxxx"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMessageService_List_Errors(t *testing.T) {
	db := newSvcDB(t)
	mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	outsider := mkUser(t, db, "c", "fr")
	room := mkRoom(t, db, "a", "a", "b")
	s := &MessageService{DB: db}

	if _, err := s.List(context.Background(), outsider, room.ID, "", 10); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	a, _ := repo.GetUser(context.Background(), db, "a")
	if _, err := s.List(context.Background(), a, room.ID, "!!garbage!!", 10); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

// ---------- Get() / Fingerprint() ----------

func TestMessageService_Get(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	b := mkUser(t, db, "b", "es")
	mkUser(t, db, "c", "fr")
	room := mkRoom(t, db, "a", "a", "b")
	other := mkRoom(t, db, "a", "a", "c")
	s := &MessageService{DB: db}
	ctx := context.Background()

	msg, _ := s.Send(ctx, a, room.ID, "hi", "en")
	got, err := s.Get(ctx, b, room.ID, msg.ID)
	if err != nil || got.ID != msg.ID {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, err := s.Get(ctx, a, other.ID, msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("message from another room should be not found, got %v", err)
	}
	if _, err := s.Get(ctx, a, room.ID, "missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestMessageService_Fingerprint_ChangesWithCopies(t *testing.T) {
	db := newSvcDB(t)
	a := mkUser(t, db, "a", "en")
	b := mkUser(t, db, "b", "es")
	room := mkRoom(t, db, "a", "a", "b")
	s := &MessageService{DB: db}
	ctx := context.Background()

	msg, _ := s.Send(ctx, a, room.ID, "hi", "en")
	count, latest, copies, err := s.Fingerprint(ctx, b, room.ID)
	if err != nil || count != 1 || latest == nil || copies != 0 {
		t.Fatalf("Fingerprint = (%d, %v, %d, %v)", count, latest, copies, err)
	}
	if _, err := repo.InsertCopies(ctx, db, msg.ID, "hola", "es", []string{"b"}); err != nil {
		t.Fatalf("insert copy: %v", err)
	}
	_, _, copies, _ = s.Fingerprint(ctx, b, room.ID)
	if copies != 1 {
		t.Fatalf("expected copy count to change, got %d", copies)
	}
}

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"  hi  ":            "hi",
		"a\x00b":            "ab",
		"line1\nline2\tend": "line1\nline2\tend",
		"":                  "",
	}
	for in, want := range cases {
		if got := sanitizeText(in); got != want {
			t.Errorf("sanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
}
