package patcher

import (
	"regexp"
	"strings"
)

var resolutionPrefix = regexp.MustCompile(`(?i)^resolution *:? *`)

// Sanitize reduces a noisy label to a short resolution name.
//
// Whitespace runs (any Unicode space, NBSP included) collapse to one space,
// leading "resolution" tokens (with an optional colon) are stripped, and
// when the collapsed input has more than three words only the first
// remaining word is kept.
func Sanitize(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	clean := strings.Join(words, " ")
	// Words are counted before the prefix strip: "Resolution Won't Do it"
	// is four words and yields "Won't".
	long := len(words) > 3

	for {
		stripped := resolutionPrefix.ReplaceAllString(clean, "")
		if stripped == clean {
			break
		}
		clean = stripped
	}
	clean = strings.TrimSpace(clean)

	if long {
		if first, _, ok := strings.Cut(clean, " "); ok {
			clean = first
		}
	}
	return clean
}
