package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flowcore/catalog"
	"flowcore/planner/ast"
	"flowcore/relexpr"
	"flowcore/types"
)

func newTwoTableCatalog(t *testing.T) *Planner {
	t.Helper()
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, customer_id int64 NOT NULL)")
	mustPlan(t, p, "CREATE TABLE customers (id int64 NOT NULL, name string NULL)")
	return p
}

func TestPlanInnerJoinOnNarrowsToBoolPredicate(t *testing.T) {
	p := newTwoTableCatalog(t)
	plan := mustPlan(t, p, "SELECT orders.id, customers.name FROM orders JOIN customers ON orders.customer_id = customers.id")
	sel := plan.(SelectPlan)
	require.Equal(t, 2, sel.Typ.Arity())
	proj, ok := sel.Expr.(relexpr.Project)
	require.True(t, ok)
	join, ok := proj.Input.(relexpr.Join)
	require.True(t, ok)
	require.Equal(t, types.ScalarBool, join.Predicate.ScalarType())
}

func TestPlanJoinUsingDedupesSharedColumn(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE a (id int64 NOT NULL, x int64 NULL)")
	mustPlan(t, p, "CREATE TABLE b (id int64 NOT NULL, y int64 NULL)")

	plan := mustPlan(t, p, "SELECT * FROM a JOIN b USING (id)")
	sel := plan.(SelectPlan)
	// a.id, a.x, b.y - the shared "id" column appears once under USING.
	require.Equal(t, 3, sel.Typ.Arity())
}

func TestPlanLeftOuterJoinMakesRightColumnsNullable(t *testing.T) {
	p := newTwoTableCatalog(t)
	plan := mustPlan(t, p, "SELECT customers.name FROM orders LEFT JOIN customers ON orders.customer_id = customers.id")
	sel := plan.(SelectPlan)
	require.True(t, sel.Typ.Columns[0].Nullable)
}

func TestPlanCrossJoinWithoutOnClausePlans(t *testing.T) {
	p := newTwoTableCatalog(t)
	stmt, err := ast.Parse("SELECT * FROM orders CROSS JOIN customers")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.NoError(t, err)
}

func TestPlanUnionAllPreservesDuplicates(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE t1 (id int64 NOT NULL)")
	mustPlan(t, p, "CREATE TABLE t2 (id int64 NOT NULL)")

	plan := mustPlan(t, p, "SELECT id FROM t1 UNION ALL SELECT id FROM t2")
	sel := plan.(SelectPlan)
	require.Equal(t, 1, sel.Typ.Arity())
	_, ok := sel.Expr.(relexpr.Union)
	require.True(t, ok, "UNION ALL must not be wrapped in Distinct")
}

func TestPlanUnionArityMismatchFails(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE t1 (id int64 NOT NULL, name string NULL)")
	mustPlan(t, p, "CREATE TABLE t2 (id int64 NOT NULL)")

	stmt, err := ast.Parse("SELECT id, name FROM t1 UNION SELECT id FROM t2")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanUnionTypeMismatchFails(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE t1 (id int64 NOT NULL)")
	mustPlan(t, p, "CREATE TABLE t2 (name string NOT NULL)")

	stmt, err := ast.Parse("SELECT id FROM t1 UNION SELECT name FROM t2")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanUnionCoalescesNumericColumnTypes(t *testing.T) {
	p := New(catalog.NewStore())

	plan := mustPlan(t, p, "SELECT 1 UNION SELECT 1.0")
	sel := plan.(SelectPlan)
	require.Equal(t, 1, sel.Typ.Arity())
	require.Equal(t, types.ScalarFloat64, sel.Typ.Columns[0].Scalar)
	require.False(t, sel.Typ.Columns[0].Nullable)
}

func TestPlanUnionWithoutAllWrapsInDistinct(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE t1 (id int64 NOT NULL)")
	mustPlan(t, p, "CREATE TABLE t2 (id int64 NOT NULL)")

	plan := mustPlan(t, p, "SELECT id FROM t1 UNION SELECT id FROM t2")
	sel := plan.(SelectPlan)
	require.Equal(t, 1, sel.Typ.Arity())
	distinct, ok := sel.Expr.(relexpr.Distinct)
	require.True(t, ok)
	_, ok = distinct.Input.(relexpr.Union)
	require.True(t, ok)
}

func TestPlanGroupByWithCountAggregate(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, customer_id int64 NOT NULL)")

	plan := mustPlan(t, p, "SELECT customer_id, count(*) FROM orders GROUP BY customer_id")
	sel := plan.(SelectPlan)
	require.Equal(t, 2, sel.Typ.Arity())
}

func TestPlanBareAggregateWithNoGroupByProducesOneColumn(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")

	plan := mustPlan(t, p, "SELECT count(*) FROM orders")
	sel := plan.(SelectPlan)
	require.Equal(t, 1, sel.Typ.Arity())
}

func TestPlanHavingFiltersOnAggregateResult(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, customer_id int64 NOT NULL)")

	plan := mustPlan(t, p, "SELECT customer_id, count(*) FROM orders GROUP BY customer_id HAVING count(*) > 1")
	sel := plan.(SelectPlan)
	require.Equal(t, 2, sel.Typ.Arity())
	proj, ok := sel.Expr.(relexpr.Project)
	require.True(t, ok)
	filter, ok := proj.Input.(relexpr.Filter)
	require.True(t, ok)
	_, ok = filter.Input.(relexpr.Reduce)
	require.True(t, ok)
}

func TestPlanWhereMustBeBoolean(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")

	stmt, err := ast.Parse("SELECT id FROM orders WHERE id")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanDistinctWrapsProjection(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, customer_id int64 NOT NULL)")

	plan := mustPlan(t, p, "SELECT DISTINCT customer_id FROM orders")
	sel := plan.(SelectPlan)
	require.Equal(t, 1, sel.Typ.Arity())
	distinct, ok := sel.Expr.(relexpr.Distinct)
	require.True(t, ok)
	_, ok = distinct.Input.(relexpr.Project)
	require.True(t, ok)
}
