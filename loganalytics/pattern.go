package loganalytics

import (
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	repl func(string) string
}

func literal(s string) func(string) string { return func(string) string { return s } }

// hexID only replaces tokens that mix digits and letters; pure digits are
// left for the number rule and plain words stay.
func hexID(tok string) string {
	if strings.IndexFunc(tok, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		return tok
	}
	if strings.IndexFunc(tok, func(r rune) bool { return r >= '0' && r <= '9' }) < 0 {
		return tok
	}
	return "<HEX>"
}

// Rules are applied in order; earlier rules win.
var rules = []rule{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), literal("<TS>")},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), literal("<UUID>")},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`), literal("<IP>")},
	{regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`), literal("<STR>")},
	{regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b`), literal("<HEX>")},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{6,}\b`), hexID},
	{regexp.MustCompile(`[-+]?\b\d+(?:\.\d+)?`), literal("<NUM>")},
}

var spaces = regexp.MustCompile(`\s+`)

// ExtractPattern replaces the variable parts of a log message (timestamps,
// UUIDs, IP addresses, quoted strings, hex ids, numbers) with placeholders
// so that messages from the same log statement group together.
func ExtractPattern(msg string) string {
	p := msg
	for _, r := range rules {
		p = r.re.ReplaceAllStringFunc(p, r.repl)
	}
	return strings.TrimSpace(spaces.ReplaceAllString(p, " "))
}

var errorMarker = regexp.MustCompile(`(?i)\b(?:error|fatal|panic)\b|Exception`)

// IsError reports whether a message or pattern looks like an error line.
func IsError(msg string) bool {
	return errorMarker.MatchString(msg)
}
