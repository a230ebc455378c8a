// Package language provides rule-based language detection for call
// transcripts and maps detected languages to telephony TTS voices.
package language

import "github.com/dialkit/dialkit/pkg/models"

// Devanagari block boundaries.
const (
	devanagariLo = 0x0900
	devanagariHi = 0x097F
)

// Detect returns the language tag for text. Any Devanagari character
// implies Hindi; everything else defaults to English. Mixed-script and
// romanized Hindi therefore resolve to English.
func Detect(text string) models.Language {
	for _, r := range text {
		if r >= devanagariLo && r <= devanagariHi {
			return models.LangHindi
		}
	}
	return models.LangEnglish
}

// Voice returns the TTS voice used for spoken replies in lang.
func Voice(lang models.Language) string {
	if lang == models.LangHindi {
		return "Polly.Aditi"
	}
	return "Polly.Joanna"
}

// Locale returns the speech-recognition and TTS locale for lang.
func Locale(lang models.Language) string {
	if lang == models.LangHindi {
		return "hi-IN"
	}
	return "en-US"
}
