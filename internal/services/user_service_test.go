package services

import (
	"context"
	"errors"
	"testing"

	"github.com/owenstack/chat/internal/domain"
)

func strp(s string) *string { return &s }

func TestUserService_Setup_CreatesWithDefaults(t *testing.T) {
	db := newSvcDB(t)
	s := &UserService{DB: db}

	u, err := s.Setup(context.Background(), Identity{TokenIdentifier: "iss|sub-1"}, "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if u.ID == "" || u.Name != defaultUserName || u.Avatar != defaultAvatar || u.AccountType != domain.AccountPublic {
		t.Fatalf("unexpected defaults: %+v", u)
	}
	if u.SelectedLanguage != "" {
		t.Fatalf("language should be unset, got %q", u.SelectedLanguage)
	}
}

func TestUserService_Setup_IsIdempotentAndSyncs(t *testing.T) {
	db := newSvcDB(t)
	s := &UserService{DB: db}
	ctx := context.Background()

	first, err := s.Setup(ctx, Identity{TokenIdentifier: "iss|sub-2", Name: "Ada", PictureURL: "https://img/a.png"}, "en-US")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if first.SelectedLanguage != "en" || first.Avatar != "https://img/a.png" {
		t.Fatalf("unexpected user: %+v", first)
	}

	again, err := s.Setup(ctx, Identity{TokenIdentifier: "iss|sub-2", Name: "Ada L."}, "pt_BR")
	if err != nil {
		t.Fatalf("Setup again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("second setup created a new user: %s vs %s", again.ID, first.ID)
	}
	if again.Name != "Ada L." || again.SelectedLanguage != "pt" {
		t.Fatalf("profile not synced: %+v", again)
	}
	if again.Avatar != "https://img/a.png" {
		t.Fatalf("avatar should be kept, got %q", again.Avatar)
	}
}

func TestUserService_Setup_InvalidLanguage(t *testing.T) {
	s := &UserService{DB: newSvcDB(t)}
	if _, err := s.Setup(context.Background(), Identity{TokenIdentifier: "x"}, "??"); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected ErrInvalidLanguage, got %v", err)
	}
}

func TestUserService_Resolve(t *testing.T) {
	db := newSvcDB(t)
	s := &UserService{DB: db}
	u := mkUser(t, db, "a", "en")

	got, err := s.Resolve(context.Background(), u.TokenIdentifier)
	if err != nil || got.ID != "a" {
		t.Fatalf("Resolve = %v, %v", got, err)
	}
	if _, err := s.Resolve(context.Background(), "unknown"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_Update(t *testing.T) {
	db := newSvcDB(t)
	s := &UserService{DB: db}
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	ctx := context.Background()

	if _, err := s.Update(ctx, a, "b", ProfileUpdate{Name: strp("hijack")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("editing another profile: expected ErrForbidden, got %v", err)
	}
	if _, err := s.Update(ctx, a, "a", ProfileUpdate{Name: strp("   ")}); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := s.Update(ctx, a, "a", ProfileUpdate{AccountType: strp("secret")}); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
	if _, err := s.Update(ctx, a, "a", ProfileUpdate{SelectedLanguage: strp("!!")}); !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected ErrInvalidLanguage, got %v", err)
	}

	got, err := s.Update(ctx, a, "a", ProfileUpdate{
		Name:             strp(" Alice "),
		AccountType:      strp(domain.AccountPrivate),
		Avatar:           strp(""),
		SelectedLanguage: strp("FR"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "Alice" || got.AccountType != domain.AccountPrivate || got.Avatar != defaultAvatar || got.SelectedLanguage != "fr" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestUserService_SearchPublic(t *testing.T) {
	db := newSvcDB(t)
	s := &UserService{DB: db}
	a := mkUser(t, db, "a", "en")
	mkUser(t, db, "b", "es")
	mkUser(t, db, "c", "fr")
	ctx := context.Background()

	if _, err := s.Update(ctx, &domain.User{ID: "c"}, "c", ProfileUpdate{AccountType: strp(domain.AccountPrivate)}); err != nil {
		t.Fatalf("make c private: %v", err)
	}

	items, total, err := s.SearchPublic(ctx, a, "user", 1, 10)
	if err != nil {
		t.Fatalf("SearchPublic: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("expected only b, got total=%d items=%+v", total, items)
	}

	items, total, err = s.SearchPublic(ctx, a, "nobody", 1, 10)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("expected empty result, got %d %v %v", total, items, err)
	}
}
