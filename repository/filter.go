package repository

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Op is a comparison operator of a leaf Filter.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpLike     Op = "like"
	OpContains Op = "contains"
	OpIn       Op = "in"
	OpIsNull   Op = "is_null"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var comparisonSQL = map[Op]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Filter is a predicate over an entity's columns.
// A leaf sets Column, Op and Value; a group sets All (AND) or Any (OR).
// The zero Filter matches everything.
type Filter struct {
	Column string
	Op     Op
	Value  any
	All    []Filter
	Any    []Filter
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Ne(column string, value any) Filter  { return Filter{Column: column, Op: OpNe, Value: value} }
func Gt(column string, value any) Filter  { return Filter{Column: column, Op: OpGt, Value: value} }
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Lt(column string, value any) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }

// Like matches a raw SQL LIKE pattern.
func Like(column, pattern string) Filter {
	return Filter{Column: column, Op: OpLike, Value: pattern}
}

// Contains matches values containing substr literally; LIKE wildcards in
// substr are escaped.
func Contains(column, substr string) Filter {
	return Filter{Column: column, Op: OpContains, Value: substr}
}

func In(column string, values ...any) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

func IsNull(column string) Filter {
	return Filter{Column: column, Op: OpIsNull}
}

// And matches when every filter matches. Zero filters are dropped.
func And(filters ...Filter) Filter {
	return Filter{All: nonZero(filters)}
}

// Or matches when at least one filter matches. Zero filters are dropped.
func Or(filters ...Filter) Filter {
	return Filter{Any: nonZero(filters)}
}

// IsZero reports whether f places no constraint.
func (f Filter) IsZero() bool {
	return f.Column == "" && f.Op == "" && len(f.All) == 0 && len(f.Any) == 0
}

// Validate checks the filter tree for unknown operators and malformed columns.
func (f Filter) Validate() error {
	switch {
	case f.IsZero():
		return nil
	case len(f.All) > 0 || len(f.Any) > 0:
		if f.Column != "" || f.Op != "" {
			return fmt.Errorf("repository: filter group cannot also compare column %q", f.Column)
		}
		if len(f.All) > 0 && len(f.Any) > 0 {
			return fmt.Errorf("repository: filter group mixes all and any")
		}
		for _, child := range append(f.All, f.Any...) {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}

	if err := validateColumn(f.Column); err != nil {
		return err
	}

	switch f.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIsNull:
		return nil
	case OpLike, OpContains:
		if _, ok := f.Value.(string); !ok {
			return fmt.Errorf("repository: %s on %q needs a string value", f.Op, f.Column)
		}
		return nil
	case OpIn:
		if values, ok := f.Value.([]any); !ok || len(values) == 0 {
			return fmt.Errorf("repository: in on %q needs at least one value", f.Column)
		}
		return nil
	default:
		return fmt.Errorf("repository: unknown filter operator %q", f.Op)
	}
}

// appendSQL renders f as a bun WHERE expression with its arguments.
func (f Filter) appendSQL() (string, []any) {
	if group, sep := f.group(); len(group) > 0 {
		parts := make([]string, 0, len(group))
		var args []any
		for _, child := range group {
			expr, childArgs := child.appendSQL()
			parts = append(parts, expr)
			args = append(args, childArgs...)
		}
		return "(" + strings.Join(parts, sep) + ")", args
	}

	col, colArgs := columnExpr(f.Column)
	switch f.Op {
	case OpIsNull:
		return col + " IS NULL", colArgs
	case OpIn:
		return col + " IN (?)", append(colArgs, bun.In(f.Value))
	case OpLike:
		return col + " LIKE ?", append(colArgs, f.Value)
	case OpContains:
		return col + ` LIKE ? ESCAPE '\'`, append(colArgs, "%"+likeEscaper.Replace(f.Value.(string))+"%")
	default:
		return col + " " + comparisonSQL[f.Op] + " ?", append(colArgs, f.Value)
	}
}

func (f Filter) group() ([]Filter, string) {
	if len(f.All) > 0 {
		return f.All, " AND "
	}
	if len(f.Any) > 0 {
		return f.Any, " OR "
	}
	return nil, ""
}

// columnExpr qualifies bare columns with the model's table alias so they stay
// unambiguous once relations are joined in. Dotted columns already name a relation alias.
func columnExpr(column string) (string, []any) {
	if strings.Contains(column, ".") {
		return "?", []any{bun.Ident(column)}
	}
	return "?TableAlias.?", []any{bun.Ident(column)}
}

func validateColumn(column string) error {
	if column == "" {
		return fmt.Errorf("repository: filter column is empty")
	}
	for _, part := range strings.Split(column, ".") {
		if part == "" {
			return fmt.Errorf("repository: malformed column %q", column)
		}
		for _, r := range part {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return fmt.Errorf("repository: malformed column %q", column)
			}
		}
	}
	return nil
}

func nonZero(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if !f.IsZero() {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
