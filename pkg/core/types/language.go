package types

import (
	"strings"
)

// Language is a supported target language.
type Language string

const (
	LanguageFrench     Language = "French"
	LanguageSpanish    Language = "Spanish"
	LanguageGerman     Language = "German"
	LanguageItalian    Language = "Italian"
	LanguagePortuguese Language = "Portuguese"
	LanguageJapanese   Language = "Japanese"
)

// LanguageProfile binds a target language to its tutor persona and the voice
// identity used for speech synthesis.
type LanguageProfile struct {
	Language Language

	// Code is the ISO 639-1 short code clients may send instead of the
	// full name.
	Code        string
	PersonaName string
	VoiceName   string

	// RegisterNote is extra system-instruction text for languages that need a
	// specific script or register. Empty for most languages.
	RegisterNote string
}

var languageProfiles = map[Language]LanguageProfile{
	LanguageFrench: {
		Language:    LanguageFrench,
		Code:        "fr",
		PersonaName: "Camille",
		VoiceName:   "fr-premium-1",
	},
	LanguageSpanish: {
		Language:    LanguageSpanish,
		Code:        "es",
		PersonaName: "Lucía",
		VoiceName:   "es-premium-1",
	},
	LanguageGerman: {
		Language:    LanguageGerman,
		Code:        "de",
		PersonaName: "Jonas",
		VoiceName:   "de-premium-1",
	},
	LanguageItalian: {
		Language:    LanguageItalian,
		Code:        "it",
		PersonaName: "Giulia",
		VoiceName:   "it-premium-1",
	},
	LanguagePortuguese: {
		Language:    LanguagePortuguese,
		Code:        "pt",
		PersonaName: "Mariana",
		VoiceName:   "pt-premium-1",
	},
	LanguageJapanese: {
		Language:    LanguageJapanese,
		Code:        "ja",
		PersonaName: "Yuki",
		VoiceName:   "ja-premium-1",
		RegisterNote: "Always respond in polite form (です/ます). Write Japanese " +
			"in standard script (kanji with kana), never romaji.",
	},
}

// ResolveLanguage looks up the profile for a language string. Matching is
// case-insensitive and accepts either the full name or the short code.
func ResolveLanguage(s string) (LanguageProfile, bool) {
	for lang, profile := range languageProfiles {
		if strings.EqualFold(string(lang), s) || strings.EqualFold(profile.Code, s) {
			return profile, true
		}
	}
	return LanguageProfile{}, false
}

// Languages returns the supported target languages.
func Languages() []Language {
	out := make([]Language, 0, len(languageProfiles))
	for lang := range languageProfiles {
		out = append(out, lang)
	}
	return out
}
