// Package filter rejects transcript fragments that whisper tends to invent
// on silence or ambient noise.
package filter

import "strings"

const noteGlyphs = "♪♫🎵"

const stripSet = "[]()*.,!?;:-\"' "

// IsHallucination reports whether a transcribed fragment should be dropped
// instead of appended to the transcript. Rules run in priority order; the
// first match wins.
func IsHallucination(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if len(trimmed) > 1 && wrapped(trimmed) {
		return true
	}
	if strings.ContainsAny(trimmed, noteGlyphs) {
		return true
	}
	stripped := strings.ToLower(strings.Trim(trimmed, stripSet))
	if stripped == "" {
		return true
	}
	return denylisted(stripped)
}

// wrapped reports whether the whole fragment sits inside one pair of
// bracket-style markers, e.g. [silence], (clicking), *thump*.
func wrapped(t string) bool {
	switch {
	case strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"):
		return true
	case strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")"):
		return true
	case strings.HasPrefix(t, "*") && strings.HasSuffix(t, "*"):
		return true
	}
	return false
}

// denylisted matches stock phrases whisper hallucinates on near-silent
// audio, in stripped lower-case form. Collected from watching real models
// drift; extend as new ones show up.
func denylisted(t string) bool {
	switch t {
	case "thank you",
		"thanks for watching",
		"thank you for watching",
		"thank you so much for watching",
		"please subscribe to my channel",
		"subtitles by the amara org community",
		"bye", "bye bye", "the end", "you", "okay":
		return true
	case "blank_audio", "blank audio",
		"silence", "music", "music playing",
		"applause", "laughter", "inaudible",
		"noise", "static", "typing", "clicking",
		"coughing", "breathing", "sighs", "wind":
		return true
	}
	return false
}
