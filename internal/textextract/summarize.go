// Package textextract turns page extracts and rendered article HTML into
// short plain-text descriptions.
package textextract

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxRunes is the hard cap on a description's length.
	MaxRunes = 250

	// MaxLines is the most lines a description keeps.
	MaxLines = 5

	// Ellipsis marks a truncated description.
	Ellipsis = "..."
)

var (
	// firstSentence ends at ASCII punctuation followed by whitespace or at a
	// full-width terminal mark.
	firstSentence = regexp.MustCompile(`(?s)^(.*?(?:!\s|\?\s|\.\s|！|？|。))`)

	// closedSentence is the same, but only after the first closing bracket or quote.
	closedSentence = regexp.MustCompile(`(?s)^(.*?[)}\]>"'》】’”」）].*?(?:!\s|\?\s|\.\s|！|？|。))`)
)

// openers are the brackets and quotes that trigger the closedSentence rule.
const openers = `({[>"'《【‘“「（`

// Summarize reduces text to its first sentence, capped at MaxRunes characters
// and MaxLines lines. A sentence containing an opening bracket or quote is
// extended past the matching close so asides are not cut in half.
func Summarize(text string) string {
	desc := strings.Join(nonBlankLines(text), "\n")

	if m := firstSentence.FindStringSubmatch(desc); m != nil {
		span := m[1]
		if strings.ContainsAny(span, openers) {
			if m2 := closedSentence.FindStringSubmatch(desc); m2 != nil {
				span = m2[1]
			}
		}
		desc = strings.TrimRightFunc(span, unicode.IsSpace)
	}

	if desc == "..." || desc == "…" {
		return ""
	}

	truncated := false
	if runes := []rune(desc); len(runes) > MaxRunes {
		desc = string(runes[:MaxRunes])
		truncated = true
	}

	lines := nonBlankLines(desc)
	if len(lines) > MaxLines {
		lines = lines[:MaxLines]
		truncated = true
	}

	out := strings.Join(lines, "\n")
	if truncated {
		out += Ellipsis
	}
	return out
}

func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := raw[:0]
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
