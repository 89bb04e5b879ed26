package vectorstore

import (
	"fmt"
	"strings"
)

// endOfDay widens a bare YYYY-MM-DD upper bound to cover the whole day.
const endOfDay = "T23:59:59"

type filterKind int

const (
	kindNone filterKind = iota
	kindAuthor
	kindDateRange
	kindAnd
)

// Filter restricts a search by chunk metadata. The zero value matches
// everything. Build filters with AuthorContains, DateRange and And; each
// adapter translates them into its own query language.
type Filter struct {
	kind     filterKind
	author   string
	from     string
	to       string
	children []Filter
}

// AuthorContains matches chunks with an author containing s, ignoring case.
// An empty s yields the empty filter.
func AuthorContains(s string) Filter {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}
	}
	return Filter{kind: kindAuthor, author: s}
}

// DateRange matches chunks whose start time falls within [from, to], both
// inclusive. Bounds are ISO dates or timestamps; either may be empty. A bare
// date upper bound is widened to the end of that day.
func DateRange(from, to string) Filter {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return Filter{}
	}
	if len(to) == len("2006-01-02") {
		to += endOfDay
	}
	return Filter{kind: kindDateRange, from: from, to: to}
}

// And combines filters conjunctively. Empty filters are dropped and nested
// conjunctions are flattened.
func And(filters ...Filter) Filter {
	var children []Filter
	for _, f := range filters {
		switch f.kind {
		case kindNone:
		case kindAnd:
			children = append(children, f.children...)
		default:
			children = append(children, f)
		}
	}
	switch len(children) {
	case 0:
		return Filter{}
	case 1:
		return children[0]
	default:
		return Filter{kind: kindAnd, children: children}
	}
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool {
	return f.kind == kindNone
}

// Match evaluates the filter against metadata in process.
func (f Filter) Match(m Metadata) bool {
	switch f.kind {
	case kindAuthor:
		needle := strings.ToLower(f.author)
		for _, a := range m.Authors {
			if strings.Contains(strings.ToLower(a), needle) {
				return true
			}
		}
		return false
	case kindDateRange:
		if f.from != "" && m.StartTime < f.from {
			return false
		}
		if f.to != "" && m.StartTime > f.to {
			return false
		}
		return true
	case kindAnd:
		for _, c := range f.children {
			if !c.Match(m) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the filter for logs.
func (f Filter) String() string {
	switch f.kind {
	case kindAuthor:
		return fmt.Sprintf("author~%q", f.author)
	case kindDateRange:
		return fmt.Sprintf("start_time in [%s, %s]", f.from, f.to)
	case kindAnd:
		parts := make([]string, len(f.children))
		for i, c := range f.children {
			parts[i] = c.String()
		}
		return strings.Join(parts, " AND ")
	default:
		return "*"
	}
}

// sqlWhere translates the filter into a Postgres predicate over the chunks
// table, numbering bind parameters after the ones already in args.
func (f Filter) sqlWhere(args []any) (string, []any) {
	switch f.kind {
	case kindAuthor:
		args = append(args, "%"+escapeLike(f.author)+"%")
		return fmt.Sprintf(`authors::text ILIKE $%d`, len(args)), args
	case kindDateRange:
		var preds []string
		if f.from != "" {
			args = append(args, f.from)
			preds = append(preds, fmt.Sprintf("start_time >= $%d", len(args)))
		}
		if f.to != "" {
			args = append(args, f.to)
			preds = append(preds, fmt.Sprintf("start_time <= $%d", len(args)))
		}
		return strings.Join(preds, " AND "), args
	case kindAnd:
		preds := make([]string, 0, len(f.children))
		for _, c := range f.children {
			var pred string
			pred, args = c.sqlWhere(args)
			preds = append(preds, "("+pred+")")
		}
		return strings.Join(preds, " AND "), args
	default:
		return "TRUE", args
	}
}

// escapeLike escapes LIKE wildcards using the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
