package planner

import (
	"fmt"
	"strings"

	"flowcore/planner/ast"
	"flowcore/relexpr"
	"flowcore/types"
)

// extractedAgg is one aggregate function call lifted out of a projection or
// HAVING expression, recorded before GROUP BY planning builds the Reduce
// node it becomes a column of. Grounded in AggregateFuncVisitor's role in
// _examples/original_source/src/materialize/sql/mod.rs: walk the
// expression, collect every aggregate call, and leave behind a reference
// the rest of planning treats as an ordinary column.
type extractedAgg struct {
	Func     relexpr.AggregateFunc
	Arg      ast.Expr // nil for count(*)
	Distinct bool
}

func aggregateFuncFor(name string, star bool) (relexpr.AggregateFunc, bool) {
	switch {
	case name == "count" && star:
		return relexpr.AggCountAll, true
	case name == "count":
		return relexpr.AggCount, true
	case name == "sum":
		return relexpr.AggSum, true
	case name == "min":
		return relexpr.AggMin, true
	case name == "max":
		return relexpr.AggMax, true
	case name == "avg":
		return relexpr.AggAvg, true
	default:
		return 0, false
	}
}

// extractAggregates rewrites e, replacing every aggregate function call
// with an ast.AggregateRef into *aggs (shared across an entire projection
// list plus HAVING, so references are stable once all items have been
// walked).
func extractAggregates(e ast.Expr, aggs *[]extractedAgg) (ast.Expr, error) {
	switch v := e.(type) {
	case ast.Ident, ast.IntLiteral, ast.FloatLiteral, ast.StringLiteral, ast.BoolLiteral, ast.NullLiteral:
		return e, nil

	case ast.UnaryOp:
		inner, err := extractAggregates(v.Expr, aggs)
		if err != nil {
			return nil, err
		}
		v.Expr = inner
		return v, nil

	case ast.BinaryOp:
		l, err := extractAggregates(v.Left, aggs)
		if err != nil {
			return nil, err
		}
		r, err := extractAggregates(v.Right, aggs)
		if err != nil {
			return nil, err
		}
		v.Left, v.Right = l, r
		return v, nil

	case ast.Between:
		var err error
		if v.Expr, err = extractAggregates(v.Expr, aggs); err != nil {
			return nil, err
		}
		if v.Low, err = extractAggregates(v.Low, aggs); err != nil {
			return nil, err
		}
		if v.High, err = extractAggregates(v.High, aggs); err != nil {
			return nil, err
		}
		return v, nil

	case ast.InList:
		var err error
		if v.Expr, err = extractAggregates(v.Expr, aggs); err != nil {
			return nil, err
		}
		for i, item := range v.List {
			if v.List[i], err = extractAggregates(item, aggs); err != nil {
				return nil, err
			}
			_ = item
		}
		return v, nil

	case ast.Case:
		var err error
		if v.Operand != nil {
			if v.Operand, err = extractAggregates(v.Operand, aggs); err != nil {
				return nil, err
			}
		}
		for i := range v.Whens {
			if v.Whens[i].When, err = extractAggregates(v.Whens[i].When, aggs); err != nil {
				return nil, err
			}
			if v.Whens[i].Then, err = extractAggregates(v.Whens[i].Then, aggs); err != nil {
				return nil, err
			}
		}
		if v.Else != nil {
			if v.Else, err = extractAggregates(v.Else, aggs); err != nil {
				return nil, err
			}
		}
		return v, nil

	case ast.Cast:
		inner, err := extractAggregates(v.Expr, aggs)
		if err != nil {
			return nil, err
		}
		v.Expr = inner
		return v, nil

	case ast.FuncCall:
		if fn, ok := aggregateFuncFor(v.Name, v.Star); ok {
			var arg ast.Expr
			if !v.Star {
				if len(v.Args) != 1 {
					return nil, fmt.Errorf("planner: aggregate %s takes exactly one argument", v.Name)
				}
				arg = v.Args[0]
			}
			idx := len(*aggs)
			*aggs = append(*aggs, extractedAgg{Func: fn, Arg: arg, Distinct: v.Distinct})
			return ast.AggregateRef{Index: idx}, nil
		}
		args := make([]ast.Expr, len(v.Args))
		for i, a := range v.Args {
			rewritten, err := extractAggregates(a, aggs)
			if err != nil {
				return nil, err
			}
			args[i] = rewritten
		}
		v.Args = args
		return v, nil

	default:
		return nil, fmt.Errorf("planner: unsupported expression %T in aggregate extraction", e)
	}
}

// aggregateResultType computes a Reduce column's scalar type and
// nullability for one extracted aggregate, given the scalar type of its
// (already-planned) argument — count/count(*) are never null; sum/min/max
// carry the argument's type but go NULL on an empty group; avg always
// widens to float64 and is likewise nullable on an empty group.
func aggregateResultType(fn relexpr.AggregateFunc, argType types.ScalarType) (types.ScalarType, bool) {
	switch fn {
	case relexpr.AggCountAll, relexpr.AggCount:
		return types.ScalarInt64, false
	case relexpr.AggSum, relexpr.AggMin, relexpr.AggMax:
		return argType, true
	case relexpr.AggAvg:
		return types.ScalarFloat64, true
	default:
		return types.ScalarNull, true
	}
}

func aggregateColumnName(fn relexpr.AggregateFunc) string {
	return strings.TrimSuffix(fn.String(), "(*)")
}
