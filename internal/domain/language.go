package domain

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

// ErrInvalidLanguage is returned when a language code cannot be parsed as a
// BCP-47 tag.
var ErrInvalidLanguage = errors.New("invalid language code")

// Language is a normalized base language code such as "en", "es" or "ja".
type Language string

// ParseLanguage normalizes a user supplied code ("EN", "pt_BR", "fr-CA") to
// its lowercase base language. Region and script subtags are dropped because
// translation groups are keyed on the base language only.
func ParseLanguage(code string) (Language, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrInvalidLanguage
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", ErrInvalidLanguage
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", ErrInvalidLanguage
	}
	return Language(base.String()), nil
}

// String implements fmt.Stringer.
func (l Language) String() string { return string(l) }

// Empty reports whether no language is set.
func (l Language) Empty() bool { return l == "" }
