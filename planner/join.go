package planner

import (
	"fmt"

	"flowcore/catalog"
	"flowcore/planner/ast"
	"flowcore/relexpr"
	"flowcore/types"
)

// trueScalar is the literal-true predicate a CROSS join, and the join
// between comma-separated FROM items, carries as its Join predicate.
func trueScalar() relexpr.ScalarExpr {
	return relexpr.Literal{Value: types.DatumBool(true), Typ: types.ScalarBool, IsNull: false}
}

// planFrom lowers a full FROM clause: every comma-separated TableWithJoins
// cross-joined together, left to right, after each has had its own join
// chain lowered.
func planFrom(cat *catalog.Store, from []ast.TableWithJoins) (relexpr.RelationExpr, *Scope, error) {
	if len(from) == 0 {
		return relexpr.Constant{Rows: []relexpr.ConstantRow{{Diff: 1}}, Typ: relexpr.RelationType{}}, &Scope{}, nil
	}
	expr, scope, err := planTableWithJoins(cat, from[0])
	if err != nil {
		return nil, nil, err
	}
	for _, twj := range from[1:] {
		rexpr, rscope, err := planTableWithJoins(cat, twj)
		if err != nil {
			return nil, nil, err
		}
		expr = relexpr.Join{Left: expr, Right: rexpr, Predicate: trueScalar()}
		scope = scope.concat(rscope)
	}
	return expr, scope, nil
}

func planTableFactor(cat *catalog.Store, tf ast.TableFactor) (relexpr.RelationExpr, *Scope, error) {
	if tf.Dual {
		return relexpr.Constant{Rows: []relexpr.ConstantRow{{Diff: 1}}, Typ: relexpr.RelationType{}}, &Scope{}, nil
	}
	d, err := cat.Get(tf.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("planner: %w", err)
	}
	alias := tf.Alias
	if alias == "" {
		alias = tf.Name
	}
	return relexpr.Get{Name: tf.Name}, newScope(alias, d.RelationType), nil
}

// planTableWithJoins lowers one base table plus its chained joins,
// following spec §4.2's join lowering rules: CROSS and INNER...ON are
// plain Join nodes; INNER...USING/NATURAL additionally AND-chain equality
// over the shared column names and project the right side's duplicate
// columns away; OUTER joins wrap the inner join in the anti-join Union
// construction planOuterJoin builds.
func planTableWithJoins(cat *catalog.Store, twj ast.TableWithJoins) (relexpr.RelationExpr, *Scope, error) {
	expr, scope, err := planTableFactor(cat, twj.Table)
	if err != nil {
		return nil, nil, err
	}
	for _, j := range twj.Joins {
		rexpr, rscope, err := planTableFactor(cat, j.Table)
		if err != nil {
			return nil, nil, err
		}
		expr, scope, err = planJoin(expr, scope, rexpr, rscope, j)
		if err != nil {
			return nil, nil, err
		}
	}
	return expr, scope, nil
}

func planJoin(left relexpr.RelationExpr, lscope *Scope, right relexpr.RelationExpr, rscope *Scope, j ast.Join) (relexpr.RelationExpr, *Scope, error) {
	switch j.Kind {
	case ast.JoinCross:
		return relexpr.Join{Left: left, Right: right, Predicate: trueScalar()}, lscope.concat(rscope), nil

	case ast.JoinInnerOn:
		combined := lscope.concat(rscope)
		pred, err := planExpr(planCtx{scope: combined, aggBase: -1}, j.On)
		if err != nil {
			return nil, nil, err
		}
		return relexpr.Join{Left: left, Right: right, Predicate: pred.Expr}, combined, nil

	case ast.JoinInnerUsing, ast.JoinInnerNatural:
		names := j.Using
		if j.Kind == ast.JoinInnerNatural {
			names = commonColumnNames(lscope, rscope)
		}
		return planUsingJoin(left, lscope, right, rscope, names)

	case ast.JoinLeftOuter, ast.JoinRightOuter, ast.JoinFullOuter:
		return planOuterJoin(left, lscope, right, rscope, j)

	default:
		return nil, nil, fmt.Errorf("planner: unsupported join kind")
	}
}

func commonColumnNames(l, r *Scope) []string {
	rnames := make(map[string]bool, len(r.columns))
	for _, c := range r.columns {
		rnames[c.name] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, c := range l.columns {
		if rnames[c.name] && !seen[c.name] {
			seen[c.name] = true
			out = append(out, c.name)
		}
	}
	return out
}

// planUsingJoin lowers `JOIN ... USING (a, b)` / NATURAL JOIN: an AND-chain
// of left.col = right.col equalities over names, then a Project that drops
// the right side's copy of each shared column (spec §4.2: "projection of
// duplicated columns").
func planUsingJoin(left relexpr.RelationExpr, lscope *Scope, right relexpr.RelationExpr, rscope *Scope, names []string) (relexpr.RelationExpr, *Scope, error) {
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("planner: USING/NATURAL join has no common columns")
	}
	combined := lscope.concat(rscope)
	var pred relexpr.ScalarExpr
	dropRight := make(map[int]bool)
	for _, name := range names {
		li, _, err := lscope.resolve("", name)
		if err != nil {
			return nil, nil, err
		}
		ri, _, err := rscope.resolve("", name)
		if err != nil {
			return nil, nil, err
		}
		rIdx := len(lscope.columns) + ri
		// Built directly over column indices rather than through
		// planExpr's name resolution, since both sides share the bare
		// name `name` and an Ident lookup would be ambiguous.
		eqExpr := relexpr.CallBinary{
			Func:   relexpr.BinaryEq,
			Left:   relexpr.Column{Index: li, Typ: combined.columns[li].scalar, Nullable: combined.columns[li].nullable},
			Right:  relexpr.Column{Index: rIdx, Typ: combined.columns[rIdx].scalar, Nullable: combined.columns[rIdx].nullable},
			Result: types.ScalarBool,
		}
		if pred == nil {
			pred = eqExpr
		} else {
			pred = relexpr.CallVariadic{Func: relexpr.VariadicAnd, Args: []relexpr.ScalarExpr{pred, eqExpr}, Result: types.ScalarBool}
		}
		dropRight[rIdx] = true
	}

	joined := relexpr.Join{Left: left, Right: right, Predicate: pred}
	outputs := make([]int, 0, len(combined.columns)-len(dropRight))
	outScope := &Scope{}
	for i, c := range combined.columns {
		if dropRight[i] {
			continue
		}
		outputs = append(outputs, i)
		outScope.columns = append(outScope.columns, c)
	}
	return relexpr.Project{Input: joined, Outputs: outputs}, outScope, nil
}

// planOuterJoin lowers LEFT/RIGHT/FULL OUTER JOIN via the anti-join
// construction relexpr.Negate's doc comment describes: the inner join plus,
// for each side that must be preserved unmatched, that side's rows with no
// match (Threshold(Union(side, Negate(Project(inner, side's columns)))))
// extended with NULLs for the other side's columns.
func planOuterJoin(left relexpr.RelationExpr, lscope *Scope, right relexpr.RelationExpr, rscope *Scope, j ast.Join) (relexpr.RelationExpr, *Scope, error) {
	combined := lscope.concat(rscope)
	var pred relexpr.ScalarExpr
	if j.On != nil {
		p, err := planExpr(planCtx{scope: combined, aggBase: -1}, j.On)
		if err != nil {
			return nil, nil, err
		}
		pred = p.Expr
	} else {
		pred = trueScalar()
	}
	inner := relexpr.Join{Left: left, Right: right, Predicate: pred}

	lArity, rArity := len(lscope.columns), len(rscope.columns)

	leftIndices := make([]int, lArity)
	for i := range leftIndices {
		leftIndices[i] = i
	}
	rightIndices := make([]int, rArity)
	for i := range rightIndices {
		rightIndices[i] = lArity + i
	}

	extendLeft := func() relexpr.RelationExpr {
		matched := relexpr.Project{Input: inner, Outputs: leftIndices}
		anti := relexpr.Threshold{Input: relexpr.Union{Left: left, Right: relexpr.Negate{Input: matched}}}
		return relexpr.Map{Input: anti, Scalars: nullScalars(rscope)}
	}
	extendRight := func() relexpr.RelationExpr {
		matched := relexpr.Project{Input: inner, Outputs: rightIndices}
		anti := relexpr.Threshold{Input: relexpr.Union{Left: right, Right: relexpr.Negate{Input: matched}}}
		prefixed := relexpr.Map{Input: anti, Scalars: nullScalars(lscope)}
		// prefixed carries right's columns first, then the NULL left
		// extension; reorder to left-then-right to match the rest of the
		// output schema.
		return relexpr.Project{Input: prefixed, Outputs: reorderRightAnti(lArity, rArity)}
	}

	switch j.Kind {
	case ast.JoinLeftOuter:
		result := relexpr.Union{Left: inner, Right: extendLeft()}
		return result, lscope.concat(rscope.withNullable()), nil
	case ast.JoinRightOuter:
		result := relexpr.Union{Left: inner, Right: extendRight()}
		return result, lscope.withNullable().concat(rscope), nil
	case ast.JoinFullOuter:
		result := relexpr.Union{Left: relexpr.Union{Left: inner, Right: extendLeft()}, Right: extendRight()}
		return result, lscope.withNullable().concat(rscope.withNullable()), nil
	default:
		return nil, nil, fmt.Errorf("planner: not an outer join")
	}
}

func nullScalars(s *Scope) []relexpr.ScalarExpr {
	out := make([]relexpr.ScalarExpr, len(s.columns))
	for i, c := range s.columns {
		out[i] = relexpr.Literal{Value: types.DatumNull{}, Typ: c.scalar, IsNull: true}
	}
	return out
}

func reorderRightAnti(lArity, rArity int) []int {
	// extendRight's Map appends lArity NULL columns after the rArity real
	// right columns; reorder to [NULL..lArity, right..rArity] so the
	// output matches left-then-right column order.
	outputs := make([]int, 0, lArity+rArity)
	for i := 0; i < lArity; i++ {
		outputs = append(outputs, rArity+i)
	}
	for i := 0; i < rArity; i++ {
		outputs = append(outputs, i)
	}
	return outputs
}

