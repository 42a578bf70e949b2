package pipeline

import "strings"

// Artifact tags some recognition models emit for silence or background
// noise instead of returning empty text.
var artifactTags = map[string]bool{
	"[BLANK_AUDIO]": true,
	"[blank_audio]": true,
	"(Music)":       true,
	"(music)":       true,
	"(noise)":       true,
	"(Noise)":       true,
	"[MUSIC]":       true,
	"[Music]":       true,
	"(clapping)":    true,
	"(Applause)":    true,
	"[silence]":     true,
}

// cleanTranscription trims the raw text and collapses recognition artifacts
// to the empty string so silence never produces output.
func cleanTranscription(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if artifactTags[s] {
		return ""
	}
	// Anything standing alone in brackets or parens is a model annotation,
	// not speech.
	if len(s) > 2 {
		if (s[0] == '[' && s[len(s)-1] == ']') || (s[0] == '(' && s[len(s)-1] == ')') {
			return ""
		}
	}
	return s
}
