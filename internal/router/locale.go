package router

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale selects the language of router-generated text.
type Locale string

// Supported locales.
const (
	LocaleTR Locale = "tr"
	LocaleEN Locale = "en"
)

var (
	supportedTags = []language.Tag{language.Turkish, language.English}
	localeMatcher = language.NewMatcher(supportedTags)
)

// Locales lists the supported locales.
func Locales() []Locale {
	return []Locale{LocaleTR, LocaleEN}
}

// ParseLocale maps a BCP 47 tag such as "tr-TR" or "en" to a supported locale.
func ParseLocale(s string) (Locale, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	switch base.String() {
	case "tr":
		return LocaleTR, true
	case "en":
		return LocaleEN, true
	}
	return "", false
}

// NegotiateLocale picks the best supported locale for an Accept-Language
// header value, or fallback when nothing matches.
func NegotiateLocale(acceptLanguage string, fallback Locale) Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	if supportedTags[idx] == language.English {
		return LocaleEN
	}
	return LocaleTR
}
