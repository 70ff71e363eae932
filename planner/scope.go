package planner

import (
	"fmt"

	"flowcore/relexpr"
	"flowcore/types"
)

// column is one entry of a Scope: the table alias (if any) and output name
// an identifier resolves by, plus the scalar type/nullability a resolved
// reference needs.
type column struct {
	table    string
	name     string
	scalar   types.ScalarType
	nullable bool
}

// Scope is the name-resolution environment a FROM clause (or a Reduce's
// output) builds: an ordered list of visible columns, each reachable either
// unqualified (`name`) or table-qualified (`table.name`). It is the
// planner's analogue of ExprContext/Scope in the original's planner.
type Scope struct {
	columns []column
}

func newScope(alias string, rt relexpr.RelationType) *Scope {
	s := &Scope{columns: make([]column, len(rt.Columns))}
	for i, c := range rt.Columns {
		s.columns[i] = column{table: alias, name: c.Name, scalar: c.Scalar, nullable: c.Nullable}
	}
	return s
}

// concat builds the scope a join over s and other produces: s's columns
// followed by other's, index-compatible with a relexpr.Join over the same
// two inputs.
func (s *Scope) concat(other *Scope) *Scope {
	out := &Scope{columns: make([]column, 0, len(s.columns)+len(other.columns))}
	out.columns = append(out.columns, s.columns...)
	out.columns = append(out.columns, other.columns...)
	return out
}

// withNullable returns a copy of s with every column marked nullable,
// matching the side of an OUTER join that may be all-NULL-extended.
func (s *Scope) withNullable() *Scope {
	out := &Scope{columns: make([]column, len(s.columns))}
	for i, c := range s.columns {
		c.nullable = true
		out.columns[i] = c
	}
	return out
}

func (s *Scope) relationType() relexpr.RelationType {
	rt := relexpr.RelationType{Columns: make([]relexpr.ColumnType, len(s.columns))}
	for i, c := range s.columns {
		rt.Columns[i] = relexpr.ColumnType{Name: c.name, Scalar: c.scalar, Nullable: c.nullable}
	}
	return rt
}

// resolve looks up an identifier, optionally table-qualified, reporting an
// error on no match or an unqualified reference that is ambiguous across
// more than one table in scope.
func (s *Scope) resolve(table, name string) (int, column, error) {
	match := -1
	for i, c := range s.columns {
		if c.name != name {
			continue
		}
		if table != "" && c.table != table {
			continue
		}
		if match != -1 {
			return 0, column{}, fmt.Errorf("planner: column reference %q is ambiguous", name)
		}
		match = i
	}
	if match == -1 {
		if table != "" {
			return 0, column{}, fmt.Errorf("planner: unknown column %s.%s", table, name)
		}
		return 0, column{}, fmt.Errorf("planner: unknown column %q", name)
	}
	return match, s.columns[match], nil
}
