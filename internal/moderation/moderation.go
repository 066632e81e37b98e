// Package moderation decides whether text fragments may be shown to users.
package moderation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Verdict is the result for one fragment. OK=false means the fragment must not be surfaced.
type Verdict struct {
	OK      bool   `json:"status"`
	Content string `json:"content"`
}

// Checker judges fragments. The returned verdicts are aligned with the input.
type Checker interface {
	Check(ctx context.Context, fragments ...string) ([]Verdict, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, fragments ...string) ([]Verdict, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, fragments ...string) ([]Verdict, error) {
	return f(ctx, fragments...)
}

// PassAll approves every fragment.
var PassAll Checker = CheckerFunc(func(_ context.Context, fragments ...string) ([]Verdict, error) {
	out := make([]Verdict, len(fragments))
	for i, f := range fragments {
		out[i] = Verdict{OK: true, Content: f}
	}
	return out, nil
})

// Rejected reports whether any verdict failed.
func Rejected(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if !v.OK {
			return true
		}
	}
	return false
}

// WordList rejects fragments containing any listed word, case-insensitively.
type WordList struct {
	words []string
}

// NewWordList creates a checker from words. Blank entries are ignored.
func NewWordList(words ...string) *WordList {
	wl := &WordList{}
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			wl.words = append(wl.words, strings.ToLower(w))
		}
	}
	return wl
}

// LoadWordList reads a YAML document with a top-level "words" sequence.
func LoadWordList(path string) (*WordList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read word list: %w", err)
	}
	var doc struct {
		Words []string `yaml:"words"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse word list: %w", err)
	}
	return NewWordList(doc.Words...), nil
}

// Len returns the number of words.
func (wl *WordList) Len() int {
	return len(wl.words)
}

// Check rejects each fragment that contains a listed word. Rejected fragments
// come back with the offending words masked.
func (wl *WordList) Check(ctx context.Context, fragments ...string) ([]Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Verdict, len(fragments))
	for i, f := range fragments {
		out[i] = wl.judge(f)
	}
	return out, nil
}

func (wl *WordList) judge(fragment string) Verdict {
	lower := strings.ToLower(fragment)
	masked := fragment
	ok := true
	for _, w := range wl.words {
		if strings.Contains(lower, w) {
			ok = false
			masked = maskFold(masked, w)
		}
	}
	return Verdict{OK: ok, Content: masked}
}

// maskFold replaces case-insensitive occurrences of word with asterisks.
func maskFold(s, word string) string {
	lower := strings.ToLower(s)
	if len(lower) != len(s) {
		// Lowercasing changed byte offsets; fall back to an exact-case mask.
		return strings.ReplaceAll(s, word, strings.Repeat("*", len([]rune(word))))
	}
	var sb strings.Builder
	for {
		i := strings.Index(lower, word)
		if i < 0 {
			sb.WriteString(s)
			return sb.String()
		}
		sb.WriteString(s[:i])
		sb.WriteString(strings.Repeat("*", len([]rune(word))))
		s = s[i+len(word):]
		lower = lower[i+len(word):]
	}
}
