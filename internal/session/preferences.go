package session

import (
	"context"
	"strconv"

	"github.com/ghaggin/datingadmin/internal/model"
	"golang.org/x/text/language"
)

const (
	KeyLanguage         = "language"
	KeyTheme            = "theme"
	KeyFontSize         = "fontSize"
	KeyAccentColor      = "accentColor"
	KeySidebarCollapsed = "sidebarCollapsed"
)

var preferenceKeys = []string{KeyLanguage, KeyTheme, KeyFontSize, KeyAccentColor, KeySidebarCollapsed}

// Languages the console has strings for. The first is the fallback.
var Languages = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
}

var languageMatcher = language.NewMatcher(Languages)

var (
	themes    = map[string]bool{"light": true, "dark": true, "system": true}
	fontSizes = map[string]bool{"small": true, "medium": true, "large": true}
)

func DefaultPreferences() model.Preferences {
	return model.Preferences{
		Language:    "en",
		Theme:       "light",
		FontSize:    "medium",
		AccentColor: "#e91e63",
	}
}

// MatchLanguage maps any list of language preferences, most preferred
// first, onto a supported base language code.
func MatchLanguage(prefs ...string) string {
	tag, _ := language.MatchStrings(languageMatcher, prefs...)
	base, _ := tag.Base()
	return base.String()
}

// Preferences are kept apart from the auth keys and survive logout.
func (m *Manager) Preferences(ctx context.Context) model.Preferences {
	p := DefaultPreferences()

	vals, err := m.store.GetMany(ctx, preferenceKeys...)
	if err != nil {
		return p
	}

	if v, ok := vals[KeyLanguage]; ok {
		p.Language = MatchLanguage(v)
	}
	if v := vals[KeyTheme]; themes[v] {
		p.Theme = v
	}
	if v := vals[KeyFontSize]; fontSizes[v] {
		p.FontSize = v
	}
	if v, ok := vals[KeyAccentColor]; ok && validColor(v) {
		p.AccentColor = v
	}
	if v, err := strconv.ParseBool(vals[KeySidebarCollapsed]); err == nil {
		p.SidebarCollapsed = v
	}
	return p
}

// SetPreferences normalizes p and stores it. Unknown values fall back to
// the defaults.
func (m *Manager) SetPreferences(ctx context.Context, p model.Preferences) (model.Preferences, error) {
	def := DefaultPreferences()

	p.Language = MatchLanguage(p.Language)
	if !themes[p.Theme] {
		p.Theme = def.Theme
	}
	if !fontSizes[p.FontSize] {
		p.FontSize = def.FontSize
	}
	if !validColor(p.AccentColor) {
		p.AccentColor = def.AccentColor
	}

	err := m.store.SetMany(ctx, map[string]string{
		KeyLanguage:         p.Language,
		KeyTheme:            p.Theme,
		KeyFontSize:         p.FontSize,
		KeyAccentColor:      p.AccentColor,
		KeySidebarCollapsed: strconv.FormatBool(p.SidebarCollapsed),
	})
	return p, err
}

func validColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
