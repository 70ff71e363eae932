package planner

import (
	"fmt"

	"flowcore/catalog"
	"flowcore/planner/ast"
	"flowcore/relexpr"
	"flowcore/types"
)

// planQuery lowers a SELECT body into a typed relational plan, following
// plan_view_query's pipeline (spec §4.2): FROM, WHERE, aggregate
// extraction, GROUP BY, HAVING, projection, DISTINCT. A Query with Set set
// instead lowers through planSetOp (UNION).
func planQuery(cat *catalog.Store, q ast.Query) (relexpr.RelationExpr, relexpr.RelationType, error) {
	if q.Set != nil {
		return planSetOp(cat, q.Set)
	}

	from, scope, err := planFrom(cat, q.From)
	if err != nil {
		return nil, relexpr.RelationType{}, err
	}
	ctx := planCtx{scope: scope, aggBase: -1}

	if q.Where != nil {
		pred, err := planExpr(ctx, q.Where)
		if err != nil {
			return nil, relexpr.RelationType{}, err
		}
		if t := pred.Expr.ScalarType(); t != types.ScalarBool && t != types.ScalarNull {
			return nil, relexpr.RelationType{}, fmt.Errorf("planner: WHERE clause must be boolean, got %s", t)
		}
		from = relexpr.Filter{Input: from, Predicates: []relexpr.ScalarExpr{pred.Expr}}
	}

	var aggs []extractedAgg
	projection := make([]ast.SelectItem, len(q.Projection))
	for i, item := range q.Projection {
		if item.Expr == nil {
			projection[i] = item
			continue
		}
		rewritten, err := extractAggregates(item.Expr, &aggs)
		if err != nil {
			return nil, relexpr.RelationType{}, err
		}
		projection[i] = ast.SelectItem{Expr: rewritten, Alias: item.Alias}
	}
	var having ast.Expr
	if q.Having != nil {
		having, err = extractAggregates(q.Having, &aggs)
		if err != nil {
			return nil, relexpr.RelationType{}, err
		}
	}

	if len(q.GroupBy) > 0 || len(aggs) > 0 {
		from, ctx, err = planGroupBy(from, scope, q.GroupBy, aggs)
		if err != nil {
			return nil, relexpr.RelationType{}, err
		}
	}

	if having != nil {
		pred, err := planExpr(ctx, having)
		if err != nil {
			return nil, relexpr.RelationType{}, err
		}
		if t := pred.Expr.ScalarType(); t != types.ScalarBool && t != types.ScalarNull {
			return nil, relexpr.RelationType{}, fmt.Errorf("planner: HAVING clause must be boolean, got %s", t)
		}
		from = relexpr.Filter{Input: from, Predicates: []relexpr.ScalarExpr{pred.Expr}}
	}

	from, outScope, err := planProjection(from, ctx, projection)
	if err != nil {
		return nil, relexpr.RelationType{}, err
	}

	if q.Distinct {
		from = relexpr.Distinct{Input: from}
	}

	return from, outScope.relationType(), nil
}

// planGroupBy builds the Reduce node a GROUP BY (or a bare aggregate with
// no GROUP BY, grouping everything into one bucket) lowers to: group-key
// expressions that are plain column references go straight into GroupKey,
// anything else is computed by a Map first. The returned planCtx's scope
// is group-key columns followed by aggregate-result columns, in that
// order, with aggBase marking where the aggregate columns start.
func planGroupBy(from relexpr.RelationExpr, scope *Scope, groupBy []ast.Expr, aggs []extractedAgg) (relexpr.RelationExpr, planCtx, error) {
	preCtx := planCtx{scope: scope, aggBase: -1}

	groupKey := make([]int, 0, len(groupBy))
	groupCols := make([]column, 0, len(groupBy))
	var extra []relexpr.ScalarExpr

	for _, g := range groupBy {
		if id, ok := g.(ast.Ident); ok {
			idx, col, err := scope.resolve(id.Table, id.Column)
			if err != nil {
				return nil, planCtx{}, err
			}
			groupKey = append(groupKey, idx)
			groupCols = append(groupCols, col)
			continue
		}
		planned, err := planExpr(preCtx, g)
		if err != nil {
			return nil, planCtx{}, err
		}
		idx := len(scope.columns) + len(extra)
		extra = append(extra, planned.Expr)
		groupKey = append(groupKey, idx)
		groupCols = append(groupCols, column{scalar: planned.Expr.ScalarType(), nullable: planned.Nullable})
	}
	if len(extra) > 0 {
		from = relexpr.Map{Input: from, Scalars: extra}
	}

	aggExprs := make([]relexpr.AggregateExpr, len(aggs))
	aggCols := make([]column, len(aggs))
	for i, a := range aggs {
		var argExpr relexpr.ScalarExpr
		var argType types.ScalarType
		var argNullable bool
		if a.Arg == nil {
			argExpr = relexpr.Literal{Value: types.DatumNull{}, Typ: types.ScalarNull, IsNull: true}
			argType = types.ScalarNull
		} else {
			planned, err := planExpr(preCtx, a.Arg)
			if err != nil {
				return nil, planCtx{}, err
			}
			argExpr = planned.Expr
			argType = planned.Expr.ScalarType()
			argNullable = planned.Nullable
		}
		_ = argNullable
		resultType, nullable := aggregateResultType(a.Func, argType)
		aggExprs[i] = relexpr.AggregateExpr{Func: a.Func, Expr: argExpr, Distinct: a.Distinct, Result: resultType}
		aggCols[i] = column{name: aggregateColumnName(a.Func), scalar: resultType, nullable: nullable}
	}

	reduce := relexpr.Reduce{Input: from, GroupKey: groupKey, Aggregates: aggExprs}
	newScope := &Scope{columns: append(append([]column{}, groupCols...), aggCols...)}
	return reduce, planCtx{scope: newScope, aggBase: len(groupKey)}, nil
}

// inferColumnName picks the output name an unaliased projection item gets:
// an Ident keeps its own name, a function call is named after the
// function, anything else is left unnamed.
func inferColumnName(e ast.Expr) string {
	switch v := e.(type) {
	case ast.Ident:
		return v.Column
	case ast.FuncCall:
		return v.Name
	default:
		return ""
	}
}

// planProjection lowers the SELECT list: wildcards expand to every (or
// every table-qualified) column in scope; plain column references project
// directly; everything else is computed by a Map and then projected.
func planProjection(from relexpr.RelationExpr, ctx planCtx, items []ast.SelectItem) (relexpr.RelationExpr, *Scope, error) {
	var mapScalars []relexpr.ScalarExpr
	var outputs []int
	outScope := &Scope{}
	nextMapIdx := len(ctx.scope.columns)

	for _, item := range items {
		switch {
		case item.Wildcard:
			for i, c := range ctx.scope.columns {
				outputs = append(outputs, i)
				outScope.columns = append(outScope.columns, c)
			}
		case item.QualifiedWildcardTable != "":
			found := false
			for i, c := range ctx.scope.columns {
				if c.table != item.QualifiedWildcardTable {
					continue
				}
				found = true
				outputs = append(outputs, i)
				outScope.columns = append(outScope.columns, c)
			}
			if !found {
				return nil, nil, fmt.Errorf("planner: unknown table %q in %s.*", item.QualifiedWildcardTable, item.QualifiedWildcardTable)
			}
		default:
			planned, err := planExpr(ctx, item.Expr)
			if err != nil {
				return nil, nil, err
			}
			if col, ok := planned.Expr.(relexpr.Column); ok && item.Alias == "" {
				outputs = append(outputs, col.Index)
				outScope.columns = append(outScope.columns, ctx.scope.columns[col.Index])
				continue
			}
			name := item.Alias
			if name == "" {
				name = inferColumnName(item.Expr)
			}
			idx := nextMapIdx
			nextMapIdx++
			mapScalars = append(mapScalars, planned.Expr)
			outputs = append(outputs, idx)
			outScope.columns = append(outScope.columns, column{name: name, scalar: planned.Expr.ScalarType(), nullable: planned.Nullable})
		}
	}

	result := from
	if len(mapScalars) > 0 {
		result = relexpr.Map{Input: from, Scalars: mapScalars}
	}
	return relexpr.Project{Input: result, Outputs: outputs}, outScope, nil
}

// planSetOp lowers a UNION: both sides must share an arity; each column
// pair is coalesced to a common scalar type (coalesceTypes) and the side not
// already of that type is cast to it (castSetOpSide). The output is nullable
// wherever either side is, named from the left side, and wrapped in Distinct
// unless UNION ALL was requested (spec §4.2).
func planSetOp(cat *catalog.Store, set *ast.SetOp) (relexpr.RelationExpr, relexpr.RelationType, error) {
	lExpr, lType, err := planQuery(cat, *set.Left)
	if err != nil {
		return nil, relexpr.RelationType{}, err
	}
	rExpr, rType, err := planQuery(cat, *set.Right)
	if err != nil {
		return nil, relexpr.RelationType{}, err
	}
	if lType.Arity() != rType.Arity() {
		return nil, relexpr.RelationType{}, fmt.Errorf("planner: UNION arms have different arities (%d vs %d)", lType.Arity(), rType.Arity())
	}
	cols := make([]relexpr.ColumnType, lType.Arity())
	lCasts := make(map[int]types.ScalarType)
	rCasts := make(map[int]types.ScalarType)
	for i := range cols {
		lc, rc := lType.Columns[i], rType.Columns[i]
		target, err := coalesceTypes(lc.Scalar, rc.Scalar)
		if err != nil {
			return nil, relexpr.RelationType{}, fmt.Errorf("planner: UNION column %d: %w", i, err)
		}
		if lc.Scalar != target {
			lCasts[i] = target
		}
		if rc.Scalar != target {
			rCasts[i] = target
		}
		cols[i] = relexpr.ColumnType{Name: lc.Name, Scalar: target, Nullable: lc.Nullable || rc.Nullable}
	}
	lExpr = castSetOpSide(lExpr, lType.Columns, lCasts)
	rExpr = castSetOpSide(rExpr, rType.Columns, rCasts)
	result := relexpr.RelationExpr(relexpr.Union{Left: lExpr, Right: rExpr})
	if !set.All {
		result = relexpr.Distinct{Input: result}
	}
	return result, relexpr.RelationType{Columns: cols}, nil
}

// castSetOpSide widens the columns of a UNION arm named in casts (index ->
// target scalar type) to line up with the other arm's coalesced type, the
// same Map-then-Project shape planOuterJoin uses to extend a side with
// derived columns: the cast values are appended as trailing Map columns,
// then Project puts each one back at its original column's position.
func castSetOpSide(expr relexpr.RelationExpr, cols []relexpr.ColumnType, casts map[int]types.ScalarType) relexpr.RelationExpr {
	if len(casts) == 0 {
		return expr
	}
	arity := len(cols)
	scalars := make([]relexpr.ScalarExpr, 0, len(casts))
	replacement := make(map[int]int, len(casts))
	for i := 0; i < arity; i++ {
		target, ok := casts[i]
		if !ok {
			continue
		}
		scalars = append(scalars, relexpr.Cast{
			Arg:    relexpr.Column{Index: i, Typ: cols[i].Scalar, Nullable: cols[i].Nullable},
			Result: target,
		})
		replacement[i] = arity + len(scalars) - 1
	}
	outputs := make([]int, arity)
	for i := 0; i < arity; i++ {
		if idx, ok := replacement[i]; ok {
			outputs[i] = idx
		} else {
			outputs[i] = i
		}
	}
	return relexpr.Project{
		Input:   relexpr.Map{Input: expr, Scalars: scalars},
		Outputs: outputs,
	}
}
