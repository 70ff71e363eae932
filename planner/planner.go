// Package planner lowers a parsed statement (package ast) into either a
// catalog mutation or a typed relational plan the coordinator can execute,
// mirroring handle_command/plan_statement/plan_view_query in
// _examples/original_source/src/materialize/sql/mod.rs. A Planner owns no
// state of its own beyond the catalog it plans against; CREATE/DROP
// statements mutate that catalog directly; SELECT/PEEK/INSERT only read it.
package planner

import (
	"fmt"

	"flowcore/catalog"
	"flowcore/planner/ast"
	"flowcore/relexpr"
	"flowcore/types"
)

// Plan is the closed set of outcomes PlanStatement produces, one variant
// per statement the dispatch table accepts (spec §4.2).
type Plan interface {
	plan()
}

type CreateSourcePlan struct{ Dataflow *catalog.Dataflow }

func (CreateSourcePlan) plan() {}

type CreateSinkPlan struct{ Dataflow *catalog.Dataflow }

func (CreateSinkPlan) plan() {}

type CreateViewPlan struct{ Dataflow *catalog.Dataflow }

func (CreateViewPlan) plan() {}

type CreateTablePlan struct{ Dataflow *catalog.Dataflow }

func (CreateTablePlan) plan() {}

// DropPlan lists every dataflow actually removed, which for a CASCADE drop
// may be more than the names named in the statement.
type DropPlan struct{ Removed []*catalog.Dataflow }

func (DropPlan) plan() {}

// SelectPlan is an ad hoc, one-shot query: the coordinator evaluates Expr
// against the current state of its inputs and returns the result directly,
// with no persistent dataflow installed.
type SelectPlan struct {
	Expr relexpr.RelationExpr
	Typ  relexpr.RelationType
}

func (SelectPlan) plan() {}

// PeekPlan reads the current contents of an existing catalog object
// (table, source, or materialized view) by id, with no new computation.
type PeekPlan struct {
	ID  types.GlobalID
	Typ relexpr.RelationType
}

func (PeekPlan) plan() {}

// InsertPlan is a single write op the coordinator submits to a group
// commit, schema-checked and column-reordered against its target table.
type InsertPlan struct{ Write types.WriteOp }

func (InsertPlan) plan() {}

// Planner plans statements against a fixed catalog.
type Planner struct {
	catalog *catalog.Store
}

func New(cat *catalog.Store) *Planner {
	return &Planner{catalog: cat}
}

// PlanStatement is the statement dispatch table spec §4.2 specifies:
// CREATE SOURCE|SINK|VIEW|TABLE, DROP, SELECT, PEEK, and INSERT are
// planned; TAIL and any other statement are rejected.
func (p *Planner) PlanStatement(stmt ast.Statement) (Plan, error) {
	switch v := stmt.(type) {
	case ast.CreateSource:
		return p.planCreateSource(v)
	case ast.CreateSink:
		return p.planCreateSink(v)
	case ast.CreateView:
		return p.planCreateView(v)
	case ast.CreateTable:
		return p.planCreateTable(v)
	case ast.Drop:
		return p.planDrop(v)
	case ast.Select:
		return p.planSelect(v)
	case ast.Peek:
		return p.planPeek(v)
	case ast.Insert:
		return p.planInsert(v)
	case ast.Tail:
		return nil, fmt.Errorf("planner: TAIL is not supported")
	default:
		return nil, fmt.Errorf("planner: unsupported statement %T", stmt)
	}
}

func columnsToRelationType(cols []ast.ColumnDef) (relexpr.RelationType, error) {
	rt := relexpr.RelationType{Columns: make([]relexpr.ColumnType, len(cols))}
	for i, c := range cols {
		scalar, err := parseScalarTypeName(c.Type)
		if err != nil {
			return relexpr.RelationType{}, err
		}
		rt.Columns[i] = relexpr.ColumnType{Name: c.Name, Scalar: scalar, Nullable: c.Nullable}
	}
	return rt, nil
}

func (p *Planner) planCreateSource(v ast.CreateSource) (Plan, error) {
	rt, err := columnsToRelationType(v.Columns)
	if err != nil {
		return nil, err
	}
	broker, topic, err := ParseKafkaURL(v.URL)
	if err != nil {
		return nil, err
	}
	d := &catalog.Dataflow{
		Name:         v.Name,
		Kind:         catalog.KindSource,
		RelationType: rt,
		Connector:    &catalog.ConnectorDesc{Kind: catalog.ConnectorKafka, SeedBroker: broker, Topic: topic},
	}
	if err := p.catalog.Insert(d); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return CreateSourcePlan{Dataflow: d}, nil
}

func (p *Planner) planCreateSink(v ast.CreateSink) (Plan, error) {
	from, err := p.catalog.Get(v.From)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	broker, topic, err := ParseKafkaURL(v.URL)
	if err != nil {
		return nil, err
	}
	d := &catalog.Dataflow{
		Name:         v.Name,
		Kind:         catalog.KindSink,
		RelationType: from.RelationType,
		Connector:    &catalog.ConnectorDesc{Kind: catalog.ConnectorKafka, SeedBroker: broker, Topic: topic},
	}
	if err := p.catalog.Insert(d); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return CreateSinkPlan{Dataflow: d}, nil
}

func (p *Planner) planCreateView(v ast.CreateView) (Plan, error) {
	expr, rt, err := planQuery(p.catalog, v.Query)
	if err != nil {
		return nil, err
	}
	d := &catalog.Dataflow{
		Name:         v.Name,
		Kind:         catalog.KindView,
		RelationType: rt,
		Expr:         expr,
	}
	if err := p.catalog.Insert(d); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return CreateViewPlan{Dataflow: d}, nil
}

func (p *Planner) planCreateTable(v ast.CreateTable) (Plan, error) {
	rt, err := columnsToRelationType(v.Columns)
	if err != nil {
		return nil, err
	}
	d := &catalog.Dataflow{Name: v.Name, Kind: catalog.KindTable, RelationType: rt}
	if err := p.catalog.Insert(d); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return CreateTablePlan{Dataflow: d}, nil
}

func (p *Planner) planDrop(v ast.Drop) (Plan, error) {
	mode := catalog.Restrict
	if v.Mode == ast.DropCascade {
		mode = catalog.Cascade
	}
	var removed []*catalog.Dataflow
	for _, name := range v.Names {
		var these []*catalog.Dataflow
		if err := p.catalog.Remove(name, mode, &these); err != nil {
			if v.IfExists {
				continue
			}
			return nil, fmt.Errorf("planner: %w", err)
		}
		removed = append(removed, these...)
	}
	return DropPlan{Removed: removed}, nil
}

// planSelect returns a SelectPlan directly rather than wrapping the query as
// a transient materialized view and emitting PeekTransient; the caller
// dispatches a SelectPlan to dispatch.KindPeekTransient itself (see
// cmd/coordinatord's executeStatement). No transient dataflow is actually
// registered in the catalog for it.
func (p *Planner) planSelect(v ast.Select) (Plan, error) {
	expr, rt, err := planQuery(p.catalog, v.Query)
	if err != nil {
		return nil, err
	}
	return SelectPlan{Expr: expr, Typ: rt}, nil
}

func (p *Planner) planPeek(v ast.Peek) (Plan, error) {
	d, err := p.catalog.Get(v.Name)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return PeekPlan{ID: d.ID, Typ: d.RelationType}, nil
}

func (p *Planner) planInsert(v ast.Insert) (Plan, error) {
	d, err := p.catalog.Get(v.Table)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if !d.IsTable() {
		return nil, fmt.Errorf("planner: %q is not a table", v.Table)
	}
	schema := d.RelationType

	colIndex := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		colIndex[c.Name] = i
	}
	targetOrder := make([]int, 0, len(schema.Columns))
	if len(v.Columns) > 0 {
		for _, name := range v.Columns {
			idx, ok := colIndex[name]
			if !ok {
				return nil, fmt.Errorf("planner: unknown column %q on table %q", name, v.Table)
			}
			targetOrder = append(targetOrder, idx)
		}
	} else {
		for i := range schema.Columns {
			targetOrder = append(targetOrder, i)
		}
	}

	ctx := planCtx{scope: &Scope{}, aggBase: -1}
	rows := make([]types.RowDiff, 0, len(v.Rows))
	for _, values := range v.Rows {
		if len(values) != len(targetOrder) {
			return nil, fmt.Errorf("planner: INSERT has %d values but %d target columns", len(values), len(targetOrder))
		}
		row := make(types.Row, len(schema.Columns))
		for i := range row {
			row[i] = types.DatumNull{}
		}
		for i, e := range values {
			planned, err := planExpr(ctx, e)
			if err != nil {
				return nil, err
			}
			datum, err := evalConstant(planned.Expr)
			if err != nil {
				return nil, err
			}
			target := schema.Columns[targetOrder[i]]
			casted, err := coerceDatum(datum, target.Scalar)
			if err != nil {
				return nil, fmt.Errorf("planner: column %q: %w", target.Name, err)
			}
			if casted.IsNull() && !target.Nullable {
				return nil, fmt.Errorf("planner: NULL not allowed in column %q", target.Name)
			}
			row[targetOrder[i]] = casted
		}
		rows = append(rows, types.RowDiff{Row: row, Diff: 1})
	}
	return InsertPlan{Write: types.WriteOp{ID: d.ID, Rows: rows}}, nil
}
