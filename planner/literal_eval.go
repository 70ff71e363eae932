package planner

import (
	"fmt"

	"flowcore/relexpr"
	"flowcore/types"
)

// evalConstant folds a scalar expression built entirely from literals (plus
// the unary +/-/abs and casts a literal can pass through) down to a single
// Datum. INSERT ... VALUES rows must be constant at plan time since the
// storage layer only ever stores concrete rows, never expression trees.
func evalConstant(e relexpr.ScalarExpr) (types.Datum, error) {
	switch v := e.(type) {
	case relexpr.Literal:
		if v.IsNull {
			return types.DatumNull{}, nil
		}
		return v.Value, nil
	case relexpr.Cast:
		inner, err := evalConstant(v.Arg)
		if err != nil {
			return nil, err
		}
		return castDatum(inner, v.Result)
	case relexpr.CallUnary:
		inner, err := evalConstant(v.Arg)
		if err != nil {
			return nil, err
		}
		switch v.Func {
		case relexpr.UnaryPos:
			return inner, nil
		case relexpr.UnaryNeg:
			return negateDatum(inner)
		case relexpr.UnaryAbs:
			return absDatum(inner)
		default:
			return nil, fmt.Errorf("planner: INSERT values must be constant expressions")
		}
	default:
		return nil, fmt.Errorf("planner: INSERT values must be constant expressions")
	}
}

func castDatum(d types.Datum, target types.ScalarType) (types.Datum, error) {
	if d.IsNull() {
		return types.DatumNull{}, nil
	}
	if d.Type() == target {
		return d, nil
	}
	switch target {
	case types.ScalarInt32:
		switch v := d.(type) {
		case types.DatumInt64:
			return types.DatumInt32(v), nil
		case types.DatumFloat32:
			return types.DatumInt32(v), nil
		case types.DatumFloat64:
			return types.DatumInt32(v), nil
		}
	case types.ScalarInt64:
		switch v := d.(type) {
		case types.DatumInt32:
			return types.DatumInt64(v), nil
		case types.DatumFloat32:
			return types.DatumInt64(v), nil
		case types.DatumFloat64:
			return types.DatumInt64(v), nil
		}
	case types.ScalarFloat32:
		switch v := d.(type) {
		case types.DatumInt32:
			return types.DatumFloat32(v), nil
		case types.DatumInt64:
			return types.DatumFloat32(v), nil
		case types.DatumFloat64:
			return types.DatumFloat32(v), nil
		}
	case types.ScalarFloat64:
		switch v := d.(type) {
		case types.DatumInt32:
			return types.DatumFloat64(v), nil
		case types.DatumInt64:
			return types.DatumFloat64(v), nil
		case types.DatumFloat32:
			return types.DatumFloat64(v), nil
		}
	}
	return nil, fmt.Errorf("planner: cannot cast %s to %s", d.Type(), target)
}

// coerceDatum is castDatum relaxed for assignment context (INSERT target
// columns): a NULL datum is always accepted regardless of target type, and
// an exact type match is a no-op, same as castDatum but named for its call
// site.
func coerceDatum(d types.Datum, target types.ScalarType) (types.Datum, error) {
	return castDatum(d, target)
}

func negateDatum(d types.Datum) (types.Datum, error) {
	switch v := d.(type) {
	case types.DatumInt32:
		return types.DatumInt32(-v), nil
	case types.DatumInt64:
		return types.DatumInt64(-v), nil
	case types.DatumFloat32:
		return types.DatumFloat32(-v), nil
	case types.DatumFloat64:
		return types.DatumFloat64(-v), nil
	default:
		return nil, fmt.Errorf("planner: cannot negate %s", d.Type())
	}
}

func absDatum(d types.Datum) (types.Datum, error) {
	switch v := d.(type) {
	case types.DatumInt32:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case types.DatumInt64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case types.DatumFloat32:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case types.DatumFloat64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("planner: cannot take abs of %s", d.Type())
	}
}
