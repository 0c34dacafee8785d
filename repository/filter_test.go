package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr string
	}{
		{name: "zero", filter: Filter{}},
		{name: "eq", filter: Eq("title", "Dune")},
		{name: "qualified column", filter: Eq("author.last_name", "Herbert")},
		{name: "nested group", filter: And(Eq("id", 1), Or(IsNull("author_id"), Gt("id", 3)))},
		{name: "empty column", filter: Filter{Op: OpEq, Value: 1}, wantErr: "column is empty"},
		{name: "injection attempt", filter: Eq("title = 1 OR 1", 1), wantErr: "malformed column"},
		{name: "dangling dot", filter: Eq("author.", 1), wantErr: "malformed column"},
		{name: "unknown op", filter: Filter{Column: "id", Op: "between"}, wantErr: "unknown filter operator"},
		{name: "contains needs string", filter: Filter{Column: "title", Op: OpContains, Value: 3}, wantErr: "needs a string"},
		{name: "empty in", filter: In("id"), wantErr: "at least one value"},
		{name: "group with column", filter: Filter{Column: "id", All: []Filter{Eq("id", 1)}}, wantErr: "cannot also compare"},
		{name: "mixed group", filter: Filter{All: []Filter{Eq("id", 1)}, Any: []Filter{Eq("id", 2)}}, wantErr: "mixes all and any"},
		{name: "invalid child", filter: Or(Eq("id", 1), Eq("bad col", 2)), wantErr: "malformed column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAndOr_DropZeroFilters(t *testing.T) {
	require.True(t, And().IsZero())
	require.True(t, Or(Filter{}, Filter{}).IsZero())

	f := And(Filter{}, Eq("id", 1))
	require.Len(t, f.All, 1)
}

func TestFilter_AppendSQL(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		wantExpr string
		wantArgs []any
	}{
		{
			name:     "bare column is table qualified",
			filter:   Eq("title", "Dune"),
			wantExpr: "?TableAlias.? = ?",
			wantArgs: []any{bun.Ident("title"), "Dune"},
		},
		{
			name:     "relation column",
			filter:   Lte("author.id", 3),
			wantExpr: "? <= ?",
			wantArgs: []any{bun.Ident("author.id"), 3},
		},
		{
			name:     "contains wraps pattern",
			filter:   Contains("title", "go"),
			wantExpr: `?TableAlias.? LIKE ? ESCAPE '\'`,
			wantArgs: []any{bun.Ident("title"), "%go%"},
		},
		{
			name:     "contains escapes wildcards",
			filter:   Contains("title", `100%_\`),
			wantExpr: `?TableAlias.? LIKE ? ESCAPE '\'`,
			wantArgs: []any{bun.Ident("title"), `%100\%\_\\%`},
		},
		{
			name:     "is null has no value",
			filter:   IsNull("author_id"),
			wantExpr: "?TableAlias.? IS NULL",
			wantArgs: []any{bun.Ident("author_id")},
		},
		{
			name:     "group",
			filter:   Or(Eq("id", 1), Gte("id", 5)),
			wantExpr: "(?TableAlias.? = ? OR ?TableAlias.? >= ?)",
			wantArgs: []any{bun.Ident("id"), 1, bun.Ident("id"), 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, args := tt.filter.appendSQL()
			require.Equal(t, tt.wantExpr, expr)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestQuery_BuildersDoNotShareState(t *testing.T) {
	base := NewQuery[testEntity](nil).Where(Eq("id", 1))
	left := base.Where(Eq("name", "left")).Include("Owner")
	right := base.Where(Eq("name", "right"))

	require.Len(t, base.filters, 1)
	require.Len(t, left.filters, 2)
	require.Len(t, right.filters, 2)
	require.Equal(t, "left", left.filters[1].Value)
	require.Equal(t, "right", right.filters[1].Value)
	require.Empty(t, base.Includes())
	require.Equal(t, []string{"Owner"}, left.Includes())
}

type testEntity struct{ ID int64 }

func (e testEntity) GetID() int64 { return e.ID }
