// Package textutil holds small string helpers shared by the harness packages.
package textutil

import "strings"

// DefaultSnippetLen bounds response bodies quoted in error messages.
const DefaultSnippetLen = 200

const minSnippetLen = 4

// Snippet collapses s to a single line and cuts it to at most maxLen runes,
// marking a cut with "...".
func Snippet(s string, maxLen int) string {
	if maxLen < minSnippetLen {
		maxLen = minSnippetLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
