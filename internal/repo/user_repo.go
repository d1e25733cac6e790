// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/domain"
)

// CreateUser inserts u, assigning an ID and timestamps when missing. A second
// user with the same token identifier yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUser fetches a user by primary key or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByToken fetches the user bound to an auth subject or returns ErrNotFound.
func GetUserByToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("token_identifier = ?", token).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsersByIDs returns the users among ids that exist, in no particular order.
func GetUsersByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.User
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// UpdateUser applies the given column updates to user id. Returns ErrNotFound
// when no row matched.
func UpdateUser(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// publicUsersQuery scopes to discoverable users other than excludeID whose
// name contains query (case-insensitive).
func publicUsersQuery(ctx context.Context, db *gorm.DB, excludeID, query string) *gorm.DB {
	q := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("account_type = ? AND id <> ?", domain.AccountPublic, excludeID)
	if s := strings.TrimSpace(query); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+stripLikeWildcards(strings.ToLower(s))+"%")
	}
	return q
}

// CountPublicUsers returns the number of users matched by ListPublicUsersPage.
func CountPublicUsers(ctx context.Context, db *gorm.DB, excludeID, query string) (int64, error) {
	var total int64
	err := publicUsersQuery(ctx, db, excludeID, query).Count(&total).Error
	return total, err
}

// ListPublicUsersPage returns a page of public users ordered by name, then ID.
func ListPublicUsersPage(ctx context.Context, db *gorm.DB, excludeID, query string, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := publicUsersQuery(ctx, db, excludeID, query).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// stripLikeWildcards drops LIKE wildcards from user input.
func stripLikeWildcards(s string) string {
	r := strings.NewReplacer(`%`, ``, `_`, ``)
	return r.Replace(s)
}
