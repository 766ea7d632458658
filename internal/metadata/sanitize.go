package metadata

import (
	"regexp"
	"strings"
)

// Tag stripping is a plain `<[^>]*>` removal: markup goes, text between tags
// stays. Unclosed tags are left as written.
var htmlTag = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips HTML tags and control characters and trims the result.
// keepNewlines preserves '\n' for multi-line fields.
func SanitizeText(s string, keepNewlines bool) string {
	s = htmlTag.ReplaceAllString(s, "")
	s = stripControl(s, keepNewlines)
	return strings.TrimSpace(s)
}

func stripControl(s string, keepNewlines bool) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' && keepNewlines {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
