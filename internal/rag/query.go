package rag

import (
	"regexp"
	"strings"

	"github.com/edgard/tipsai/internal/vectorstore"
)

var (
	authorPattern   = regexp.MustCompile(`(?i)\b(?:autor|author):(\S+)`)
	dateFromPattern = regexp.MustCompile(`(?i)\b(?:de|from_date):(\d{4}-\d{2}-\d{2})`)
	dateToPattern   = regexp.MustCompile(`(?i)\b(?:ate|até|to_date):(\d{4}-\d{2}-\d{2})`)
)

// ParsedQuery is a search query split into free text and filters. Empty
// fields mean the filter is absent.
type ParsedQuery struct {
	Text     string
	Author   string
	DateFrom string
	DateTo   string
}

// ParseSearchQuery extracts the first autor:, de: and ate: tokens (or their
// author:, from_date: and to_date: spellings) from raw. The rest, with
// whitespace collapsed, is the semantic query.
func ParseSearchQuery(raw string) ParsedQuery {
	var q ParsedQuery
	remaining := raw
	remaining, q.Author = extract(authorPattern, remaining)
	remaining, q.DateFrom = extract(dateFromPattern, remaining)
	remaining, q.DateTo = extract(dateToPattern, remaining)
	q.Text = strings.Join(strings.Fields(remaining), " ")
	return q
}

func extract(re *regexp.Regexp, s string) (string, string) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, ""
	}
	return s[:loc[0]] + " " + s[loc[1]:], s[loc[2]:loc[3]]
}

// HasFilters reports whether any filter token was present.
func (q ParsedQuery) HasFilters() bool {
	return q.Author != "" || q.DateFrom != "" || q.DateTo != ""
}

// Filter builds the vector store filter for q.
func (q ParsedQuery) Filter() vectorstore.Filter {
	var parts []vectorstore.Filter
	if q.Author != "" {
		parts = append(parts, vectorstore.AuthorContains(q.Author))
	}
	if q.DateFrom != "" || q.DateTo != "" {
		parts = append(parts, vectorstore.DateRange(q.DateFrom, q.DateTo))
	}
	return vectorstore.And(parts...)
}
