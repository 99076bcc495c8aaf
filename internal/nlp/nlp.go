// Package nlp produces the call summary and keywords served by the backend.
package nlp

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultKeywords is the keyword limit used by the backend.
const DefaultKeywords = 8

// Summarize keeps the first two sentences, split on ".".
func Summarize(text string) string {
	sentences := strings.Split(text, ".")
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	return strings.TrimSpace(strings.Join(sentences, "."))
}

// Keywords returns the words longer than four characters among the limit
// most frequent words of text. Equal counts keep first-seen order.
func Keywords(text string, limit int) []string {
	words := strings.Fields(clean(text))

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}

	out := []string{}
	for _, w := range order {
		if len(w) > 4 {
			out = append(out, w)
		}
	}
	return out
}

// clean lowercases and drops everything but ASCII letters, digits and
// whitespace.
func clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
