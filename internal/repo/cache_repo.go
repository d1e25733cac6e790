// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the authoritative store for the global
// translation cache.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/owenstack/chat/internal/domain"
)

// HashSource returns the hex sha256 of text, the indexed half of the cache key.
func HashSource(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetCachedTranslation returns the entry for exactly (text, lang) or
// ErrNotFound. The full source text is compared so a hash collision can
// never serve the wrong translation.
func GetCachedTranslation(ctx context.Context, db *gorm.DB, text, lang string) (*domain.TranslationCacheEntry, error) {
	var e domain.TranslationCacheEntry
	err := db.WithContext(ctx).
		Where("source_hash = ? AND target_language = ?", HashSource(text), lang).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.SourceText != text {
		return nil, ErrNotFound
	}
	return &e, nil
}

// PutCachedTranslation appends a cache entry. It reports whether a row was
// created; an existing entry for the key wins and is left unchanged.
func PutCachedTranslation(ctx context.Context, db *gorm.DB, text, lang, translated string) (bool, error) {
	e := &domain.TranslationCacheEntry{
		ID:             uuid.NewString(),
		SourceHash:     HashSource(text),
		SourceText:     text,
		TargetLanguage: lang,
		TranslatedText: translated,
		CreatedAt:      time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_hash"}, {Name: "target_language"}},
			DoNothing: true,
		}).
		Create(e)
	return res.RowsAffected > 0, res.Error
}
