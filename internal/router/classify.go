package router

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Classifier decides whether a message asks for an image.
type Classifier interface {
	IsImageRequest(message string) bool
}

// ClassifierFunc adapts a pure function to Classifier.
type ClassifierFunc func(message string) bool

// IsImageRequest implements Classifier.
func (f ClassifierFunc) IsImageRequest(message string) bool {
	return f(message)
}

// KeywordImageRequest is the default Classifier: a message is an image
// request when it contains an image noun and a request verb of the same
// language. Matching is case-insensitive substring containment.
var KeywordImageRequest Classifier = ClassifierFunc(keywordImageRequest)

type keywordSet struct {
	nouns []string
	verbs []string
}

// The drawing stems appear in both lists so "bir kedi çiz" qualifies alone.
var imageKeywords = []keywordSet{
	{
		nouns: []string{"resim", "resm", "görsel", "çiz", "fotoğraf", "foto", "illüstrasyon", "logo", "afiş", "portre", "tablo"},
		verbs: []string{"çiz", "yap", "oluştur", "üret", "tasarla", "yarat", "hazırla", "göster"},
	},
	{
		nouns: []string{"image", "picture", "photo", "drawing", "draw", "illustration", "logo", "painting", "artwork", "sketch", "poster", "portrait"},
		verbs: []string{"draw", "make", "create", "generate", "design", "paint", "render", "produce", "sketch", "show me"},
	},
}

func keywordImageRequest(message string) bool {
	for _, text := range foldings(message) {
		for _, set := range imageKeywords {
			if containsAny(text, set.nouns) && containsAny(text, set.verbs) {
				return true
			}
		}
	}
	return false
}

// Casers carry state, so each call builds its own.
func lowerTR(s string) string { return cases.Lower(language.Turkish).String(s) }

func lowerEN(s string) string { return cases.Lower(language.English).String(s) }

// foldings returns the lowercased message under Turkish and English case
// rules, which differ for the dotted and dotless i.
func foldings(message string) []string {
	tr := lowerTR(message)
	en := lowerEN(message)
	if tr == en {
		return []string{tr}
	}
	return []string{tr, en}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// containsWord reports whether text has any of words as a whole word.
func containsWord(text string, words []string) bool {
	for _, tok := range tokenize(text) {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}
