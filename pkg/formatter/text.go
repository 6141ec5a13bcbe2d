package formatter

import (
	"strings"
	"unicode/utf8"
)

// truncateRunes keeps at most n code points of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// indent pushes continuation lines two spaces right so WeCom's markdown
// renderer keeps them inside the surrounding block.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}
