package agent

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var markup = bluemonday.StrictPolicy()

// Query is a user request in normalised form. Text keeps the original casing
// for argument extraction; Lower is used for rule matching.
type Query struct {
	Raw   string
	Text  string
	Lower string
}

// NormalizeQuery strips markup, applies NFKC and collapses whitespace. Chat
// gateways deliver HTML-ish text, so tags are removed before any rule runs.
func NormalizeQuery(raw string) Query {
	s := markup.Sanitize(raw)
	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return Query{Raw: raw, Text: s, Lower: strings.ToLower(s)}
}

// Empty reports whether nothing is left after normalisation.
func (q Query) Empty() bool {
	return q.Text == ""
}
