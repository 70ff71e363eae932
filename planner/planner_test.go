package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flowcore/catalog"
	"flowcore/planner/ast"
	"flowcore/types"
)

func mustPlan(t *testing.T, p *Planner, sql string) Plan {
	t.Helper()
	stmt, err := ast.Parse(sql)
	require.NoError(t, err)
	plan, err := p.PlanStatement(stmt)
	require.NoError(t, err)
	return plan
}

func TestPlanCreateTableThenInsertAllColumnsInOrder(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")

	plan := mustPlan(t, p, "INSERT INTO orders VALUES (1, 9.5)")
	ins, ok := plan.(InsertPlan)
	require.True(t, ok)
	require.Len(t, ins.Write.Rows, 1)
	require.Equal(t, types.DatumInt64(1), ins.Write.Rows[0].Row[0])
	require.Equal(t, types.DatumFloat64(9.5), ins.Write.Rows[0].Row[1])
}

func TestPlanInsertReordersExplicitColumns(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")

	plan := mustPlan(t, p, "INSERT INTO orders (amount, id) VALUES (9.5, 1)")
	ins := plan.(InsertPlan)
	require.Equal(t, types.DatumInt64(1), ins.Write.Rows[0].Row[0])
	require.Equal(t, types.DatumFloat64(9.5), ins.Write.Rows[0].Row[1])
}

func TestPlanInsertDefaultsOmittedColumnToNull(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")

	plan := mustPlan(t, p, "INSERT INTO orders (id) VALUES (1)")
	ins := plan.(InsertPlan)
	require.True(t, ins.Write.Rows[0].Row[1].IsNull())
}

func TestPlanInsertRejectsNullIntoNotNullColumn(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")

	stmt, err := ast.Parse("INSERT INTO orders (amount) VALUES (1.0)")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanInsertRejectsUnknownColumn(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")

	stmt, err := ast.Parse("INSERT INTO orders (ghost) VALUES (1)")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanInsertCoercesIntLiteralIntoFloatColumn(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (amount float64 NOT NULL)")

	plan := mustPlan(t, p, "INSERT INTO orders VALUES (5)")
	ins := plan.(InsertPlan)
	require.Equal(t, types.DatumFloat64(5), ins.Write.Rows[0].Row[0])
}

func TestPlanInsertRejectsIntoNonTable(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")
	mustPlan(t, p, "CREATE VIEW v AS SELECT id FROM orders")

	stmt, err := ast.Parse("INSERT INTO v (id) VALUES (1)")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanDropRestrictFailsWithDependentView(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")
	mustPlan(t, p, "CREATE VIEW v AS SELECT id FROM orders")

	stmt, err := ast.Parse("DROP TABLE orders")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanDropCascadeRemovesDependentView(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")
	mustPlan(t, p, "CREATE VIEW v AS SELECT id FROM orders")

	plan := mustPlan(t, p, "DROP TABLE orders CASCADE")
	drop := plan.(DropPlan)
	names := make([]string, len(drop.Removed))
	for i, d := range drop.Removed {
		names[i] = d.Name
	}
	require.ElementsMatch(t, []string{"orders", "v"}, names)
}

func TestPlanDropIfExistsIgnoresUnknownName(t *testing.T) {
	p := New(catalog.NewStore())
	plan := mustPlan(t, p, "DROP TABLE IF EXISTS ghost")
	drop := plan.(DropPlan)
	require.Empty(t, drop.Removed)
}

func TestPlanPeekReturnsCatalogIDAndType(t *testing.T) {
	p := New(catalog.NewStore())
	created := mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)").(CreateTablePlan)

	plan := mustPlan(t, p, "PEEK orders")
	peek := plan.(PeekPlan)
	require.Equal(t, created.Dataflow.ID, peek.ID)
	require.Equal(t, 1, peek.Typ.Arity())
}

func TestPlanSelectProducesTypedRelation(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")

	plan := mustPlan(t, p, "SELECT id, amount FROM orders WHERE amount > 0")
	sel := plan.(SelectPlan)
	require.Equal(t, 2, sel.Typ.Arity())
}

func TestPlanTailIsRejected(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL)")

	stmt, err := ast.Parse("TAIL orders")
	require.NoError(t, err)
	_, err = p.PlanStatement(stmt)
	require.Error(t, err)
}

func TestPlanCreateSourceResolvesKafkaURL(t *testing.T) {
	p := New(catalog.NewStore())
	plan := mustPlan(t, p, "CREATE SOURCE clicks (id int64 NOT NULL) URL 'kafka://broker:9092/clicks'")
	cs := plan.(CreateSourcePlan)
	require.Equal(t, "broker:9092", cs.Dataflow.Connector.SeedBroker)
	require.Equal(t, "clicks", cs.Dataflow.Connector.Topic)
}

func TestPlanCreateSinkInheritsSourceRelationType(t *testing.T) {
	p := New(catalog.NewStore())
	mustPlan(t, p, "CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")
	plan := mustPlan(t, p, "CREATE SINK out FROM orders URL 'kafka://broker:9092/out'")
	cs := plan.(CreateSinkPlan)
	require.Equal(t, 2, cs.Dataflow.RelationType.Arity())
}
