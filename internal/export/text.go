package export

import (
	"regexp"
	"strings"
)

// ChatGPT exports carry private-use glyphs from the web UI's icon font.
var privateUseRe = regexp.MustCompile(`[\x{E000}-\x{F8FF}]`)

var sentenceRe = regexp.MustCompile(`(?s)[^.!?]*[.!?]`)

// SanitizeText strips private-use Unicode characters from text.
func SanitizeText(text string) string {
	return privateUseRe.ReplaceAllString(text, "")
}

// LastSentence returns the final sentence of text, or the last non-empty
// line when no sentence punctuation is present.
func LastSentence(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}
	matches := sentenceRe.FindAllString(cleaned, -1)
	if len(matches) > 0 {
		return strings.TrimSpace(matches[len(matches)-1])
	}
	var last string
	for _, ln := range strings.Split(cleaned, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			last = ln
		}
	}
	if last != "" {
		return last
	}
	return cleaned
}

var (
	fileSlugWS  = regexp.MustCompile(`\s+`)
	fileSlugBad = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
	tagSlugBad  = regexp.MustCompile(`[^a-z0-9_\-]+`)
	tagSlugDash = regexp.MustCompile(`-+`)
)

// SlugTitle makes a filename-safe slug out of a conversation title.
func SlugTitle(title string) string {
	s := fileSlugWS.ReplaceAllString(strings.TrimSpace(title), "_")
	s = fileSlugBad.ReplaceAllString(s, "")
	if len(s) > 50 {
		s = s[:50]
	}
	if s == "" {
		return "chat"
	}
	return s
}

// SlugTag makes a tag identifier out of a display name.
func SlugTag(name string) string {
	s := tagSlugBad.ReplaceAllString(strings.ToLower(name), "-")
	s = tagSlugDash.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
