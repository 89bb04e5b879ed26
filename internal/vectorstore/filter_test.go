package vectorstore

import (
	"reflect"
	"testing"
)

func TestFilterBuilders(t *testing.T) {
	t.Parallel()

	if !AuthorContains("  ").Empty() || !DateRange("", "").Empty() || !And().Empty() {
		t.Error("blank builders must produce the empty filter")
	}

	f := DateRange("2024-08-01", "2024-09-30")
	if f.from != "2024-08-01" || f.to != "2024-09-30T23:59:59" {
		t.Errorf("DateRange() = [%s, %s], want upper bound widened to end of day", f.from, f.to)
	}

	single := And(Filter{}, AuthorContains("Renan"))
	if single.kind != kindAuthor {
		t.Errorf("And() of one filter should unwrap, got kind %v", single.kind)
	}

	nested := And(AuthorContains("Renan"), And(DateRange("2024-08-01", ""), Filter{}))
	if nested.kind != kindAnd || len(nested.children) != 2 {
		t.Errorf("And() should flatten nested conjunctions, got %+v", nested)
	}
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	meta := Metadata{
		Authors:   []string{"Renan Silva", "Ana"},
		StartTime: "2024-09-30T22:15:00",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty", filter: Filter{}, want: true},
		{name: "author substring ignores case", filter: AuthorContains("renan"), want: true},
		{name: "author missing", filter: AuthorContains("Carlos"), want: false},
		{name: "inclusive end of day", filter: DateRange("2024-09-01", "2024-09-30"), want: true},
		{name: "inclusive start", filter: DateRange("2024-09-30T22:15:00", ""), want: true},
		{name: "before range", filter: DateRange("2024-10-01", ""), want: false},
		{name: "after range", filter: DateRange("", "2024-09-29"), want: false},
		{name: "conjunction", filter: And(AuthorContains("Ana"), DateRange("2024-09-01", "")), want: true},
		{name: "conjunction fails", filter: And(AuthorContains("Ana"), DateRange("", "2024-08-01")), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.filter.Match(meta); got != tt.want {
				t.Errorf("%s.Match() = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestFilterSQLWhere(t *testing.T) {
	t.Parallel()

	f := And(AuthorContains("50%_off"), DateRange("2024-08-01", "2024-08-31"))
	where, args := f.sqlWhere([]any{"vec", "collection"})

	wantWhere := `(authors::text ILIKE $3) AND (start_time >= $4 AND start_time <= $5)`
	if where != wantWhere {
		t.Errorf("sqlWhere() = %q, want %q", where, wantWhere)
	}
	wantArgs := []any{"vec", "collection", `%50\%\_off%`, "2024-08-01", "2024-08-31T23:59:59"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("sqlWhere() args = %v, want %v", args, wantArgs)
	}

	if where, _ := (Filter{}).sqlWhere(nil); where != "TRUE" {
		t.Errorf("empty sqlWhere() = %q, want TRUE", where)
	}
}
