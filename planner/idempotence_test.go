package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"flowcore/catalog"
)

// TestPlanningSameViewQueryTwiceYieldsEqualExpr exercises invariant 8:
// planning a statement twice against the same catalog yields equal
// dataflows. Two views over the same query text, against the same table,
// must lower to the identical RelationExpr tree regardless of the name
// each is bound under.
func TestPlanningSameViewQueryTwiceYieldsEqualExpr(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount int64 NULL)")

	first := mustPlan(t, p, "CREATE VIEW v1 AS SELECT id FROM orders WHERE amount > 0")
	second := mustPlan(t, p, "CREATE VIEW v2 AS SELECT id FROM orders WHERE amount > 0")

	v1 := first.(CreateViewPlan).Dataflow
	v2 := second.(CreateViewPlan).Dataflow

	if diff := cmp.Diff(v1.Expr, v2.Expr); diff != "" {
		t.Fatalf("re-planning the same query text produced a different RelationExpr (-v1 +v2):\n%s", diff)
	}
	require.Equal(t, v1.RelationType, v2.RelationType)
}
