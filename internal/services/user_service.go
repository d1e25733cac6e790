// Package services – UserService
//
// UserService owns user profiles: first-time setup from an authenticated
// identity, profile edits and the public user directory.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/repo"
	"github.com/owenstack/chat/internal/utils"
)

const (
	defaultUserName = "Anonymous"
	defaultAvatar   = "/logo.png"
	maxNameRunes    = 80
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	TokenIdentifier string
	Name            string
	PictureURL      string
}

// ProfileUpdate carries optional profile changes; nil fields are untouched.
type ProfileUpdate struct {
	Name             *string
	AccountType      *string
	Avatar           *string
	SelectedLanguage *string
}

// UserService implements the user use-cases.
type UserService struct {
	DB *gorm.DB
}

// Setup creates the user for id on first call. Later calls sync the display
// name from the identity provider and the selected language.
func (s *UserService) Setup(ctx context.Context, id Identity, selectedLanguage string) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Setup")
	defer span.End()

	lang := ""
	if strings.TrimSpace(selectedLanguage) != "" {
		l, err := domain.ParseLanguage(selectedLanguage)
		if err != nil {
			return nil, ErrInvalidLanguage
		}
		lang = l.String()
	}

	existing, err := repo.GetUserByToken(ctx, s.DB, id.TokenIdentifier)
	if err == nil {
		span.SetAttributes(attribute.String("user.id", existing.ID), attribute.Bool("user.created", false))
		fields := map[string]any{}
		if name := clipRunes(strings.TrimSpace(id.Name), maxNameRunes); name != "" && name != existing.Name {
			fields["name"] = name
		}
		if lang != "" && lang != existing.SelectedLanguage {
			fields["selected_language"] = lang
		}
		if existing.AccountType == "" {
			fields["account_type"] = domain.AccountPublic
		}
		if len(fields) == 0 {
			return existing, nil
		}
		if err := repo.UpdateUser(ctx, s.DB, existing.ID, fields); err != nil {
			return nil, err
		}
		return repo.GetUser(ctx, s.DB, existing.ID)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	u := &domain.User{
		TokenIdentifier:  id.TokenIdentifier,
		Name:             clipRunes(firstNonEmpty(strings.TrimSpace(id.Name), defaultUserName), maxNameRunes),
		Avatar:           firstNonEmpty(id.PictureURL, defaultAvatar),
		SelectedLanguage: lang,
		AccountType:      domain.AccountPublic,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost a race with a concurrent setup for the same identity.
			return repo.GetUserByToken(ctx, s.DB, id.TokenIdentifier)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID), attribute.Bool("user.created", true))
	return u, nil
}

// Resolve maps an authenticated token identifier to its user.
func (s *UserService) Resolve(ctx context.Context, tokenIdentifier string) (*domain.User, error) {
	u, err := repo.GetUserByToken(ctx, s.DB, tokenIdentifier)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Update applies upd to targetID on behalf of actor.
func (s *UserService) Update(ctx context.Context, actor *domain.User, targetID string, upd ProfileUpdate) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("user.id", targetID)))
	defer span.End()

	if !canModifyUser(actor.ID, targetID) {
		return nil, ErrForbidden
	}
	fields := map[string]any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
			return nil, ErrInvalidName
		}
		fields["name"] = name
	}
	if upd.AccountType != nil {
		switch *upd.AccountType {
		case domain.AccountPublic, domain.AccountPrivate:
			fields["account_type"] = *upd.AccountType
		default:
			return nil, ErrInvalidAccountType
		}
	}
	if upd.Avatar != nil {
		fields["avatar"] = firstNonEmpty(strings.TrimSpace(*upd.Avatar), defaultAvatar)
	}
	if upd.SelectedLanguage != nil {
		l, err := domain.ParseLanguage(*upd.SelectedLanguage)
		if err != nil {
			return nil, ErrInvalidLanguage
		}
		fields["selected_language"] = l.String()
	}
	if err := repo.UpdateUser(ctx, s.DB, targetID, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return repo.GetUser(ctx, s.DB, targetID)
}

// SearchPublic lists public users other than actor whose name contains query.
func (s *UserService) SearchPublic(ctx context.Context, actor *domain.User, query string, page, pageSize int) ([]domain.User, int64, error) {
	page, pageSize = utils.ClampPage(page, pageSize, 20, 100)
	total, err := repo.CountPublicUsers(ctx, s.DB, actor.ID, query)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}
	items, err := repo.ListPublicUsersPage(ctx, s.DB, actor.ID, query, (page-1)*pageSize, pageSize)
	return items, total, err
}

func firstNonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func clipRunes(s string, n int) string {
	if n > 0 && utf8.RuneCountInString(s) > n {
		return string([]rune(s)[:n])
	}
	return s
}
