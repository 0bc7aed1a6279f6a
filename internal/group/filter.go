package group

import (
	"regexp"
	"strings"

	"github.com/jfenske/recollect/internal/card"
)

// A filter string is a comma-separated list of clauses; a card belongs
// to the group when any clause matches. Clause forms:
//
//	#tag        tag match against text/answer content and extracted tags
//	[[name]]    note-link match against the card's file path
//	foo*bar     wildcard match against the file path
//	anything    substring match against file path, then text/answer
type clause interface {
	matches(c *card.Card) bool
}

// Filter is a parsed group filter expression.
type Filter struct {
	clauses []clause
}

// tagPattern extracts inline tags from card content.
var tagPattern = regexp.MustCompile(`#[^\s#]+`)

// ParseFilter splits the expression on commas and parses each clause.
// Clauses are lowercased and trimmed; empty clauses are dropped, so an
// empty expression matches no cards.
func ParseFilter(expr string) Filter {
	var f Filter
	for _, raw := range strings.Split(expr, ",") {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		f.clauses = append(f.clauses, parseClause(raw))
	}
	return f
}

func parseClause(raw string) clause {
	switch {
	case strings.HasPrefix(raw, "#"):
		return tagClause{raw: raw, tag: raw[1:]}
	case strings.HasPrefix(raw, "[[") && strings.HasSuffix(raw, "]]") && len(raw) > 4:
		return linkClause{name: raw[2 : len(raw)-2]}
	case strings.Contains(raw, "*"):
		return wildcardClause{re: compileWildcard(raw)}
	default:
		return substringClause{text: raw}
	}
}

// Matches reports whether any clause matches the card.
func (f Filter) Matches(c *card.Card) bool {
	for _, cl := range f.clauses {
		if cl.matches(c) {
			return true
		}
	}
	return false
}

// Empty reports whether the filter has no clauses.
func (f Filter) Empty() bool {
	return len(f.clauses) == 0
}

type tagClause struct {
	raw string // the full clause including '#'
	tag string // the token after '#'
}

func (t tagClause) matches(c *card.Card) bool {
	content := strings.ToLower(c.Text + "\n" + c.Answer)
	if strings.Contains(content, t.raw) {
		return true
	}
	for _, found := range tagPattern.FindAllString(content, -1) {
		token := found[1:]
		if token == t.tag || strings.Contains(token, t.tag) {
			return true
		}
	}
	return false
}

type linkClause struct {
	name string
}

func (l linkClause) matches(c *card.Card) bool {
	return strings.Contains(strings.ToLower(c.FilePath), l.name)
}

type wildcardClause struct {
	re *regexp.Regexp
}

func (w wildcardClause) matches(c *card.Card) bool {
	return w.re != nil && w.re.MatchString(c.FilePath)
}

// compileWildcard turns a glob-ish clause into a case-insensitive
// regular expression: every metacharacter is escaped, then '*' becomes
// '.*'.
func compileWildcard(raw string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(raw)
	pattern := "(?i)" + strings.ReplaceAll(escaped, `\*`, ".*")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

type substringClause struct {
	text string
}

func (s substringClause) matches(c *card.Card) bool {
	if strings.Contains(strings.ToLower(c.FilePath), s.text) {
		return true
	}
	return strings.Contains(strings.ToLower(c.Text), s.text) ||
		strings.Contains(strings.ToLower(c.Answer), s.text)
}
