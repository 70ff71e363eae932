// Package relexpr defines the planner's output representation: the typed
// relational algebra (RelationExpr) and scalar algebra (ScalarExpr) that
// plan_statement and plan_view_query lower a parsed statement into. It is a
// recursive tagged variant, Go-style: an interface with an unexported marker
// method per family, and one concrete struct per variant, following the
// spec's explicit design note (§9) that this needs no inheritance and no
// macro, just a sum type.
package relexpr

import "flowcore/types"

// ColumnType describes one output column: its optional name, its scalar
// type, and whether it may hold NULL.
type ColumnType struct {
	Name     string // empty if the column has no name
	Scalar   types.ScalarType
	Nullable bool
}

// RelationType is the ordered output schema of a RelationExpr.
type RelationType struct {
	Columns []ColumnType
}

func (t RelationType) Arity() int { return len(t.Columns) }

// Equal compares two relation types structurally: same arity and, per
// column, the same scalar type and nullability (column names are ignored).
func (t RelationType) Equal(other RelationType) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i].Scalar != other.Columns[i].Scalar || t.Columns[i].Nullable != other.Columns[i].Nullable {
			return false
		}
	}
	return true
}
