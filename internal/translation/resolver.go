package translation

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
	"github.com/owenstack/chat/internal/repo"
)

// LanguageGroups maps a target language to the user IDs reading in it.
type LanguageGroups map[domain.Language][]string

// Languages returns the group keys in ascending order.
func (g LanguageGroups) Languages() []domain.Language {
	out := make([]domain.Language, 0, len(g))
	for l := range g {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Size counts recipients across all groups.
func (g LanguageGroups) Size() int {
	n := 0
	for _, ids := range g {
		n += len(ids)
	}
	return n
}

// Resolver groups a room's members by their selected language.
type Resolver struct {
	db *gorm.DB
}

// NewResolver returns a Resolver reading memberships from db.
func NewResolver(db *gorm.DB) *Resolver { return &Resolver{db: db} }

// Resolve returns the language groups of roomID. Members without a usable
// language are left out; within a group users keep join order.
func (r *Resolver) Resolve(ctx context.Context, roomID string) (LanguageGroups, error) {
	members, err := repo.ListRoomMembers(ctx, r.db, roomID)
	if err != nil {
		return nil, err
	}
	groups := make(LanguageGroups)
	for _, m := range members {
		if m.SelectedLanguage == "" {
			continue
		}
		lang, err := domain.ParseLanguage(m.SelectedLanguage)
		if err != nil {
			log.Ctx(ctx).Warn().Str("user_id", m.UserID).Str("language", m.SelectedLanguage).Msg("skipping member with invalid language")
			continue
		}
		groups[lang] = append(groups[lang], m.UserID)
	}
	return groups, nil
}
