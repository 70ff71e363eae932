package planner

import (
	"fmt"

	"flowcore/planner/ast"
	"flowcore/relexpr"
	"flowcore/types"
)

// typedScalar pairs a planned scalar expression with the nullability the
// planner tracked for it; relexpr.ScalarExpr itself carries only a type
// (ScalarType()), never a Nullable flag, so every planning function threads
// nullability alongside the expression instead.
type typedScalar struct {
	Expr     relexpr.ScalarExpr
	Nullable bool
}

// planCtx is the scope an expression plans against: the input row's column
// list, plus, once a GROUP BY has introduced a Reduce, the index of the
// first aggregate-result column (aggBase) that ast.AggregateRef resolves
// against. aggBase is -1 before any Reduce exists.
type planCtx struct {
	scope   *Scope
	aggBase int
}

// typePrecedence orders the numeric-coercion ladder spec §4.2 fixes:
// Null < Int32 < Int64 < Float32 < Float64. Non-numeric types (and Bool,
// String, Bytes, ...) never coalesce with anything but themselves or Null,
// so they report a negative precedence.
func typePrecedence(t types.ScalarType) int {
	switch t {
	case types.ScalarNull:
		return 0
	case types.ScalarInt32:
		return 1
	case types.ScalarInt64:
		return 2
	case types.ScalarFloat32:
		return 3
	case types.ScalarFloat64:
		return 4
	default:
		return -1
	}
}

// coalesceTypes picks the common type two scalar expressions of types a and
// b must both be cast to, following the precedence ladder. Equal types need
// no coalescing; Null coalesces to the other side's type unconditionally.
func coalesceTypes(a, b types.ScalarType) (types.ScalarType, error) {
	if a == b {
		return a, nil
	}
	if a == types.ScalarNull {
		return b, nil
	}
	if b == types.ScalarNull {
		return a, nil
	}
	pa, pb := typePrecedence(a), typePrecedence(b)
	if pa < 0 || pb < 0 {
		return 0, fmt.Errorf("planner: cannot coalesce types %s and %s", a, b)
	}
	if pa >= pb {
		return a, nil
	}
	return b, nil
}

// validCast reports whether from can be cast to to, per the fixed table
// spec §4.2 gives: NULL to any type, Int32 to Float32/Float64, Int64 to
// Int32/Float32/Float64, Float32 to Int64/Float64, and Float64 to Int64.
// The table has no Int32 to Int64 entry.
func validCast(from, to types.ScalarType) bool {
	switch {
	case from == to:
		return true
	case from == types.ScalarNull:
		return true
	case from == types.ScalarInt32 && to == types.ScalarFloat32,
		from == types.ScalarInt32 && to == types.ScalarFloat64,
		from == types.ScalarInt64 && to == types.ScalarInt32,
		from == types.ScalarInt64 && to == types.ScalarFloat32,
		from == types.ScalarInt64 && to == types.ScalarFloat64,
		from == types.ScalarFloat32 && to == types.ScalarInt64,
		from == types.ScalarFloat32 && to == types.ScalarFloat64,
		from == types.ScalarFloat64 && to == types.ScalarInt64:
		return true
	default:
		return false
	}
}

// castTo wraps e in a Cast to target if needed, erroring if no entry in
// validCast covers the pair. A Null-typed e is left untouched: NULL casts
// to any type without a node (spec §4.2).
func castTo(e relexpr.ScalarExpr, target types.ScalarType) (relexpr.ScalarExpr, error) {
	from := e.ScalarType()
	if from == target || from == types.ScalarNull {
		return e, nil
	}
	if !validCast(from, target) {
		return nil, fmt.Errorf("planner: no cast from %s to %s", from, target)
	}
	return relexpr.Cast{Arg: e, Result: target}, nil
}

// coalesceAndCast plans both sides of a binary operator to a shared type,
// casting whichever side needs it.
func coalesceAndCast(l, r typedScalar) (relexpr.ScalarExpr, relexpr.ScalarExpr, types.ScalarType, error) {
	target, err := coalesceTypes(l.Expr.ScalarType(), r.Expr.ScalarType())
	if err != nil {
		return nil, nil, 0, err
	}
	le, err := castTo(l.Expr, target)
	if err != nil {
		return nil, nil, 0, err
	}
	re, err := castTo(r.Expr, target)
	if err != nil {
		return nil, nil, 0, err
	}
	return le, re, target, nil
}

func literalScalar(v types.Datum, typ types.ScalarType, isNull bool) typedScalar {
	return typedScalar{Expr: relexpr.Literal{Value: v, Typ: typ, IsNull: isNull}, Nullable: isNull}
}

// planExpr lowers a parsed scalar expression into relexpr.ScalarExpr,
// mirroring plan_expr's dispatch over sqlparser-rs's Expr in
// _examples/original_source/src/materialize/sql/mod.rs (unary/binary ops,
// BETWEEN, IN, CASE, CAST, and the handful of supported functions).
func planExpr(ctx planCtx, e ast.Expr) (typedScalar, error) {
	switch v := e.(type) {
	case ast.Ident:
		idx, col, err := ctx.scope.resolve(v.Table, v.Column)
		if err != nil {
			return typedScalar{}, err
		}
		return typedScalar{Expr: relexpr.Column{Index: idx, Typ: col.scalar, Nullable: col.nullable}, Nullable: col.nullable}, nil

	case ast.AggregateRef:
		if ctx.aggBase < 0 {
			return typedScalar{}, fmt.Errorf("planner: aggregate reference outside of an aggregate query")
		}
		idx := ctx.aggBase + v.Index
		col := ctx.scope.columns[idx]
		return typedScalar{Expr: relexpr.Column{Index: idx, Typ: col.scalar, Nullable: col.nullable}, Nullable: col.nullable}, nil

	case ast.IntLiteral:
		return literalScalar(types.DatumInt64(v.Value), types.ScalarInt64, false), nil
	case ast.FloatLiteral:
		return literalScalar(types.DatumFloat64(v.Value), types.ScalarFloat64, false), nil
	case ast.StringLiteral:
		return literalScalar(types.DatumString(v.Value), types.ScalarString, false), nil
	case ast.BoolLiteral:
		return literalScalar(types.DatumBool(v.Value), types.ScalarBool, false), nil
	case ast.NullLiteral:
		return literalScalar(types.DatumNull{}, types.ScalarNull, true), nil

	case ast.UnaryOp:
		return planUnaryOp(ctx, v)
	case ast.BinaryOp:
		return planBinaryOp(ctx, v)
	case ast.Between:
		return planBetween(ctx, v)
	case ast.InList:
		return planInList(ctx, v)
	case ast.Case:
		return planCase(ctx, v)
	case ast.Cast:
		inner, err := planExpr(ctx, v.Expr)
		if err != nil {
			return typedScalar{}, err
		}
		target, err := parseScalarTypeName(v.Type)
		if err != nil {
			return typedScalar{}, err
		}
		casted, err := castTo(inner.Expr, target)
		if err != nil {
			return typedScalar{}, err
		}
		return typedScalar{Expr: casted, Nullable: inner.Nullable}, nil
	case ast.FuncCall:
		return planFuncCall(ctx, v)
	default:
		return typedScalar{}, fmt.Errorf("planner: unsupported expression %T", e)
	}
}

func planUnaryOp(ctx planCtx, v ast.UnaryOp) (typedScalar, error) {
	arg, err := planExpr(ctx, v.Expr)
	if err != nil {
		return typedScalar{}, err
	}
	switch v.Op {
	case "NOT":
		if arg.Expr.ScalarType() != types.ScalarBool && arg.Expr.ScalarType() != types.ScalarNull {
			return typedScalar{}, fmt.Errorf("planner: NOT requires a boolean operand, got %s", arg.Expr.ScalarType())
		}
		return typedScalar{Expr: relexpr.CallUnary{Func: relexpr.UnaryNot, Arg: arg.Expr, Result: types.ScalarBool}, Nullable: arg.Nullable}, nil
	case "+":
		if !isNumeric(arg.Expr.ScalarType()) {
			return typedScalar{}, fmt.Errorf("planner: unary + requires a numeric operand, got %s", arg.Expr.ScalarType())
		}
		return typedScalar{Expr: relexpr.CallUnary{Func: relexpr.UnaryPos, Arg: arg.Expr, Result: arg.Expr.ScalarType()}, Nullable: arg.Nullable}, nil
	case "-":
		if !isNumeric(arg.Expr.ScalarType()) {
			return typedScalar{}, fmt.Errorf("planner: unary - requires a numeric operand, got %s", arg.Expr.ScalarType())
		}
		return typedScalar{Expr: relexpr.CallUnary{Func: relexpr.UnaryNeg, Arg: arg.Expr, Result: arg.Expr.ScalarType()}, Nullable: arg.Nullable}, nil
	case "ISNULL":
		return typedScalar{Expr: relexpr.CallUnary{Func: relexpr.UnaryIsNull, Arg: arg.Expr, Result: types.ScalarBool}, Nullable: false}, nil
	case "ISNOTNULL":
		return typedScalar{Expr: relexpr.CallUnary{Func: relexpr.UnaryIsNotNull, Arg: arg.Expr, Result: types.ScalarBool}, Nullable: false}, nil
	default:
		return typedScalar{}, fmt.Errorf("planner: unknown unary operator %q", v.Op)
	}
}

func isNumeric(t types.ScalarType) bool {
	switch t {
	case types.ScalarInt32, types.ScalarInt64, types.ScalarFloat32, types.ScalarFloat64:
		return true
	default:
		return false
	}
}

func planBinaryOp(ctx planCtx, v ast.BinaryOp) (typedScalar, error) {
	l, err := planExpr(ctx, v.Left)
	if err != nil {
		return typedScalar{}, err
	}
	r, err := planExpr(ctx, v.Right)
	if err != nil {
		return typedScalar{}, err
	}

	switch v.Op {
	case "AND", "OR":
		for _, s := range []typedScalar{l, r} {
			if t := s.Expr.ScalarType(); t != types.ScalarBool && t != types.ScalarNull {
				return typedScalar{}, fmt.Errorf("planner: %s requires boolean operands, got %s", v.Op, t)
			}
		}
		fn := relexpr.VariadicAnd
		if v.Op == "OR" {
			fn = relexpr.VariadicOr
		}
		return typedScalar{
			Expr:     relexpr.CallVariadic{Func: fn, Args: []relexpr.ScalarExpr{l.Expr, r.Expr}, Result: types.ScalarBool},
			Nullable: l.Nullable || r.Nullable,
		}, nil

	case "<", "<=", ">", ">=", "=", "<>":
		le, re, _, err := coalesceAndCast(l, r)
		if err != nil {
			return typedScalar{}, err
		}
		return typedScalar{Expr: relexpr.CallBinary{Func: comparisonFunc(v.Op), Left: le, Right: re, Result: types.ScalarBool}, Nullable: l.Nullable || r.Nullable}, nil

	case "+", "-", "*", "/", "%":
		if !isNumeric(l.Expr.ScalarType()) || !isNumeric(r.Expr.ScalarType()) {
			return typedScalar{}, fmt.Errorf("planner: arithmetic operator %q requires numeric operands", v.Op)
		}
		le, re, target, err := coalesceAndCast(l, r)
		if err != nil {
			return typedScalar{}, err
		}
		nullable := l.Nullable || r.Nullable
		if v.Op == "/" || v.Op == "%" {
			// Integer division/modulo are nullable even on non-nullable
			// operands: a zero divisor yields NULL rather than an error.
			nullable = true
		}
		return typedScalar{Expr: relexpr.CallBinary{Func: arithmeticFunc(v.Op), Left: le, Right: re, Result: target}, Nullable: nullable}, nil

	default:
		return typedScalar{}, fmt.Errorf("planner: unknown binary operator %q", v.Op)
	}
}

func comparisonFunc(op string) relexpr.BinaryFunc {
	switch op {
	case "<":
		return relexpr.BinaryLt
	case "<=":
		return relexpr.BinaryLte
	case ">":
		return relexpr.BinaryGt
	case ">=":
		return relexpr.BinaryGte
	case "=":
		return relexpr.BinaryEq
	default:
		return relexpr.BinaryNotEq
	}
}

func arithmeticFunc(op string) relexpr.BinaryFunc {
	switch op {
	case "+":
		return relexpr.BinaryAdd
	case "-":
		return relexpr.BinarySub
	case "*":
		return relexpr.BinaryMul
	case "/":
		return relexpr.BinaryDiv
	default:
		return relexpr.BinaryMod
	}
}

// planBetween lowers `e BETWEEN low AND high` to `e >= low AND e <= high`
// (negated to `e < low OR e > high` for NOT BETWEEN).
func planBetween(ctx planCtx, v ast.Between) (typedScalar, error) {
	if v.Negated {
		return planExpr(ctx, ast.BinaryOp{
			Op:   "OR",
			Left: ast.BinaryOp{Op: "<", Left: v.Expr, Right: v.Low},
			Right: ast.BinaryOp{Op: ">", Left: v.Expr, Right: v.High},
		})
	}
	return planExpr(ctx, ast.BinaryOp{
		Op:   "AND",
		Left: ast.BinaryOp{Op: ">=", Left: v.Expr, Right: v.Low},
		Right: ast.BinaryOp{Op: "<=", Left: v.Expr, Right: v.High},
	})
}

// planInList left-folds `e IN (a, b, c)` into `FALSE OR e=a OR e=b OR e=c`,
// matching plan_expr's ScalarExpr::literal(false) seed in the original.
// NOT IN wraps the whole fold in NOT.
func planInList(ctx planCtx, v ast.InList) (typedScalar, error) {
	var acc ast.Expr = ast.BoolLiteral{Value: false}
	for _, item := range v.List {
		acc = ast.BinaryOp{Op: "OR", Left: acc, Right: ast.BinaryOp{Op: "=", Left: v.Expr, Right: item}}
	}
	if v.Negated {
		acc = ast.UnaryOp{Op: "NOT", Expr: acc}
	}
	return planExpr(ctx, acc)
}

// planCase right-folds a CASE expression into a chain of If nodes: the
// ELSE (or NULL) seeds the fold, and each WHEN/THEN wraps the prior result
// as its own Else, applied from the last arm to the first. A simple CASE
// (`CASE operand WHEN x THEN ...`) rewrites each WHEN to `operand = x`
// first.
func planCase(ctx planCtx, v ast.Case) (typedScalar, error) {
	var acc exprOrIf = leafExpr{E: ast.NullLiteral{}}
	if v.Else != nil {
		acc = leafExpr{E: v.Else}
	}
	for i := len(v.Whens) - 1; i >= 0; i-- {
		when := v.Whens[i].When
		if v.Operand != nil {
			when = ast.BinaryOp{Op: "=", Left: v.Operand, Right: when}
		}
		acc = ifExpr{Cond: when, Then: leafExpr{E: v.Whens[i].Then}, Else: acc}
	}
	return planIf(ctx, acc)
}

// exprOrIf lets the CASE fold below mix ordinary parsed expressions
// (leafExpr) with the ifExpr nodes the fold itself builds, without ifExpr
// needing to satisfy ast.Expr's unexported marker method.
type exprOrIf interface{ exprOrIf() }

type leafExpr struct{ E ast.Expr }

func (leafExpr) exprOrIf() {}

// ifExpr is an internal-only planner node for the Case fold above.
type ifExpr struct {
	Cond ast.Expr
	Then, Else exprOrIf
}

func (ifExpr) exprOrIf() {}

func planIf(ctx planCtx, v exprOrIf) (typedScalar, error) {
	if leaf, ok := v.(leafExpr); ok {
		return planExpr(ctx, leaf.E)
	}
	n := v.(ifExpr)
	cond, err := planExpr(ctx, n.Cond)
	if err != nil {
		return typedScalar{}, err
	}
	if t := cond.Expr.ScalarType(); t != types.ScalarBool && t != types.ScalarNull {
		return typedScalar{}, fmt.Errorf("planner: CASE WHEN condition must be boolean, got %s", t)
	}
	then, err := planIf(ctx, n.Then)
	if err != nil {
		return typedScalar{}, err
	}
	els, err := planIf(ctx, n.Else)
	if err != nil {
		return typedScalar{}, err
	}
	thenExpr, elseExpr, target, err := coalesceAndCast(then, els)
	if err != nil {
		return typedScalar{}, err
	}
	return typedScalar{
		Expr:     relexpr.If{Cond: cond.Expr, Then: thenExpr, Else: elseExpr, Result: target},
		Nullable: then.Nullable || els.Nullable,
	}, nil
}

func parseScalarTypeName(name string) (types.ScalarType, error) {
	switch name {
	case "int32":
		return types.ScalarInt32, nil
	case "int64":
		return types.ScalarInt64, nil
	case "float32":
		return types.ScalarFloat32, nil
	case "float64":
		return types.ScalarFloat64, nil
	case "bool":
		return types.ScalarBool, nil
	case "string":
		return types.ScalarString, nil
	default:
		return 0, fmt.Errorf("planner: unknown type name %q", name)
	}
}

// planFuncCall handles the three scalar functions spec §4.2 names:
// abs, coalesce, and nullif. Aggregate function names reaching here means
// extractAggregates was never run over this expression tree — a planner
// bug, not a user error — so those report distinctly from an unknown name.
func planFuncCall(ctx planCtx, v ast.FuncCall) (typedScalar, error) {
	switch v.Name {
	case "abs":
		if len(v.Args) != 1 {
			return typedScalar{}, fmt.Errorf("planner: abs takes exactly one argument")
		}
		arg, err := planExpr(ctx, v.Args[0])
		if err != nil {
			return typedScalar{}, err
		}
		if !isNumeric(arg.Expr.ScalarType()) {
			return typedScalar{}, fmt.Errorf("planner: abs requires a numeric argument, got %s", arg.Expr.ScalarType())
		}
		return typedScalar{Expr: relexpr.CallUnary{Func: relexpr.UnaryAbs, Arg: arg.Expr, Result: arg.Expr.ScalarType()}, Nullable: arg.Nullable}, nil

	case "coalesce":
		if len(v.Args) == 0 {
			return typedScalar{}, fmt.Errorf("planner: coalesce requires at least one argument")
		}
		args := make([]typedScalar, len(v.Args))
		for i, a := range v.Args {
			planned, err := planExpr(ctx, a)
			if err != nil {
				return typedScalar{}, err
			}
			args[i] = planned
		}
		target := args[0].Expr.ScalarType()
		allNullable := true
		for _, a := range args[1:] {
			coalesced, err := coalesceTypes(target, a.Expr.ScalarType())
			if err != nil {
				return typedScalar{}, err
			}
			target = coalesced
		}
		exprs := make([]relexpr.ScalarExpr, len(args))
		for i, a := range args {
			casted, err := castTo(a.Expr, target)
			if err != nil {
				return typedScalar{}, err
			}
			exprs[i] = casted
			allNullable = allNullable && a.Nullable
		}
		return typedScalar{Expr: relexpr.CallVariadic{Func: relexpr.VariadicCoalesce, Args: exprs, Result: target}, Nullable: allNullable}, nil

	case "nullif":
		if len(v.Args) != 2 {
			return typedScalar{}, fmt.Errorf("planner: nullif takes exactly two arguments")
		}
		return planIf(ctx, ifExpr{
			Cond: ast.BinaryOp{Op: "=", Left: v.Args[0], Right: v.Args[1]},
			Then: leafExpr{E: ast.NullLiteral{}},
			Else: leafExpr{E: v.Args[0]},
		})

	case "count", "sum", "min", "max", "avg":
		return typedScalar{}, fmt.Errorf("planner: aggregate function %q used outside of GROUP BY extraction", v.Name)

	default:
		return typedScalar{}, fmt.Errorf("planner: unknown function %q", v.Name)
	}
}
