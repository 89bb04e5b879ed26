package rag

import (
	"testing"

	"github.com/edgard/tipsai/internal/vectorstore"
)

func TestParseSearchQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want ParsedQuery
	}{
		{
			name: "author and start date",
			raw:  "autor:Renan bitcoin de:2024-08-01",
			want: ParsedQuery{Text: "bitcoin", Author: "Renan", DateFrom: "2024-08-01"},
		},
		{
			name: "no filters",
			raw:  "CoinTech2U rendimento",
			want: ParsedQuery{Text: "CoinTech2U rendimento"},
		},
		{
			name: "english spellings and case",
			raw:  "Author:ana FROM_DATE:2024-01-01 to_date:2024-02-01 staking",
			want: ParsedQuery{Text: "staking", Author: "ana", DateFrom: "2024-01-01", DateTo: "2024-02-01"},
		},
		{
			name: "accented end date",
			raw:  "etf até:2024-03-31",
			want: ParsedQuery{Text: "etf", DateTo: "2024-03-31"},
		},
		{
			name: "filters only",
			raw:  "  autor:Renan   ate:2024-05-05 ",
			want: ParsedQuery{Author: "Renan", DateTo: "2024-05-05"},
		},
		{
			name: "malformed date stays in text",
			raw:  "de:ontem halving",
			want: ParsedQuery{Text: "de:ontem halving"},
		},
		{
			name: "only first author token",
			raw:  "autor:a autor:b",
			want: ParsedQuery{Text: "autor:b", Author: "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseSearchQuery(tt.raw); got != tt.want {
				t.Errorf("ParseSearchQuery(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParsedQueryFilter(t *testing.T) {
	t.Parallel()

	meta := vectorstore.Metadata{Authors: []string{"Renan Silva"}, StartTime: "2024-08-10T10:00:00"}

	tests := []struct {
		name      string
		query     ParsedQuery
		wantEmpty bool
		wantMatch bool
	}{
		{"none", ParsedQuery{Text: "x"}, true, true},
		{"author", ParsedQuery{Author: "renan"}, false, true},
		{"author mismatch", ParsedQuery{Author: "ana"}, false, false},
		{"range", ParsedQuery{DateFrom: "2024-08-01", DateTo: "2024-08-10"}, false, true},
		{"range before", ParsedQuery{DateTo: "2024-08-09"}, false, false},
		{"both", ParsedQuery{Author: "Renan", DateFrom: "2024-08-11"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := tt.query.Filter()
			if f.Empty() != tt.wantEmpty {
				t.Errorf("Filter().Empty() = %v, want %v", f.Empty(), tt.wantEmpty)
			}
			if tt.query.HasFilters() == tt.wantEmpty {
				t.Errorf("HasFilters() = %v, want %v", tt.query.HasFilters(), !tt.wantEmpty)
			}
			if got := f.Match(meta); got != tt.wantMatch {
				t.Errorf("Filter().Match() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}
