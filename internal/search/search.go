// Package search turns free-text queries into product suggestions and a single
// best match.
//
// One matching rule serves every entry point: an entry matches when its
// normalized searchable text contains the normalized query as a substring.
// Suggestions come back in index order, not ranked.
package search

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/aryannaik/printrun-vault/internal/index"
)

const (
	// MinQueryLen is the shortest normalized query (in runes) that matches
	// anything.
	MinQueryLen = 2
	// MaxSuggestions caps a suggestion list.
	MaxSuggestions = 8
)

// Normalize case-folds s, trims it and collapses inner whitespace to single
// spaces.
func Normalize(s string) string {
	// A Caser carries state; a fresh one per call keeps this goroutine safe.
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// SearchText is the text an entry is matched against.
func SearchText(e index.Entry) string {
	parts := []string{
		e.DisplayName,
		e.Keywords,
		e.Year.String(),
		e.Sport.String(),
		e.Manufacturer.String(),
		e.Product.String(),
		e.Code,
	}
	return Normalize(strings.Join(parts, " "))
}

// Matches reports whether entry matches query.
func Matches(entry index.Entry, query string) bool {
	q := Normalize(query)
	if !longEnough(q) {
		return false
	}
	return strings.Contains(SearchText(entry), q)
}

func longEnough(normalized string) bool {
	return utf8.RuneCountInString(normalized) >= MinQueryLen
}

// Catalog is a product list with its match text precomputed. It is immutable
// and safe for concurrent use.
type Catalog struct {
	entries []index.Entry
	text    []string
	names   []string
}

func NewCatalog(entries []index.Entry) *Catalog {
	c := &Catalog{
		entries: entries,
		text:    make([]string, len(entries)),
		names:   make([]string, len(entries)),
	}
	for i, e := range entries {
		c.text[i] = SearchText(e)
		c.names[i] = Normalize(e.DisplayName)
	}
	return c
}

// Len returns the number of entries in the catalog.
func (c *Catalog) Len() int { return len(c.entries) }

// Suggest returns up to MaxSuggestions matching entries in index order. The
// scan stops as soon as the list is full.
func (c *Catalog) Suggest(query string) []index.Entry {
	return c.SuggestN(query, MaxSuggestions)
}

// SuggestN is Suggest with a caller-chosen cap; limit <= 0 means MaxSuggestions.
func (c *Catalog) SuggestN(query string, limit int) []index.Entry {
	if limit <= 0 {
		limit = MaxSuggestions
	}
	q := Normalize(query)
	if !longEnough(q) {
		return nil
	}

	var hits []index.Entry
	for i, text := range c.text {
		if !strings.Contains(text, q) {
			continue
		}
		hits = append(hits, c.entries[i])
		if len(hits) == limit {
			break
		}
	}
	return hits
}

// Resolve picks the single best entry for a committed query: the first entry
// whose display name equals the query, else the first entry that matches it.
// ok is false when nothing qualifies.
func (c *Catalog) Resolve(query string) (entry index.Entry, ok bool) {
	q := Normalize(query)
	if q == "" {
		return index.Entry{}, false
	}

	for i, name := range c.names {
		if name == q {
			return c.entries[i], true
		}
	}

	if !longEnough(q) {
		return index.Entry{}, false
	}
	for i, text := range c.text {
		if strings.Contains(text, q) {
			return c.entries[i], true
		}
	}
	return index.Entry{}, false
}

// ByCode returns the entry with the given code.
func (c *Catalog) ByCode(code string) (index.Entry, bool) {
	for _, e := range c.entries {
		if e.Code == code {
			return e, true
		}
	}
	return index.Entry{}, false
}
