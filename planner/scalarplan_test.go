package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flowcore/relexpr"
	"flowcore/types"
)

func TestCoalesceTypesEqualNeedsNoWidening(t *testing.T) {
	got, err := coalesceTypes(types.ScalarInt64, types.ScalarInt64)
	require.NoError(t, err)
	require.Equal(t, types.ScalarInt64, got)
}

func TestCoalesceTypesNullTakesOtherSide(t *testing.T) {
	got, err := coalesceTypes(types.ScalarNull, types.ScalarFloat32)
	require.NoError(t, err)
	require.Equal(t, types.ScalarFloat32, got)

	got, err = coalesceTypes(types.ScalarString, types.ScalarNull)
	require.NoError(t, err)
	require.Equal(t, types.ScalarString, got)
}

func TestCoalesceTypesWidensToHigherPrecedence(t *testing.T) {
	got, err := coalesceTypes(types.ScalarInt32, types.ScalarFloat64)
	require.NoError(t, err)
	require.Equal(t, types.ScalarFloat64, got)
}

func TestCoalesceTypesRejectsIncompatiblePair(t *testing.T) {
	_, err := coalesceTypes(types.ScalarString, types.ScalarBool)
	require.Error(t, err)
}

func TestValidCastAllowsLadderAndNamedNarrowings(t *testing.T) {
	require.True(t, validCast(types.ScalarInt32, types.ScalarFloat64))
	require.True(t, validCast(types.ScalarInt64, types.ScalarInt32))
	require.True(t, validCast(types.ScalarFloat64, types.ScalarInt64))
	require.True(t, validCast(types.ScalarNull, types.ScalarString))
	require.True(t, validCast(types.ScalarBool, types.ScalarBool))
}

func TestValidCastRejectsUnrelatedTypes(t *testing.T) {
	require.False(t, validCast(types.ScalarString, types.ScalarInt64))
	require.False(t, validCast(types.ScalarBool, types.ScalarInt64))
}

func TestCastToLeavesNullUntouched(t *testing.T) {
	lit := relexpr.Literal{Value: types.DatumNull{}, Typ: types.ScalarNull, IsNull: true}
	e, err := castTo(lit, types.ScalarString)
	require.NoError(t, err)
	require.Equal(t, relexpr.ScalarExpr(lit), e)
}

func TestCastToWrapsInCastNode(t *testing.T) {
	lit := relexpr.Literal{Value: types.DatumInt64(5), Typ: types.ScalarInt64}
	e, err := castTo(lit, types.ScalarFloat64)
	require.NoError(t, err)
	cast, ok := e.(relexpr.Cast)
	require.True(t, ok)
	require.Equal(t, types.ScalarFloat64, cast.Result)
}

func TestCastToRejectsInvalidPair(t *testing.T) {
	lit := relexpr.Literal{Value: types.DatumString("x"), Typ: types.ScalarString}
	_, err := castTo(lit, types.ScalarInt64)
	require.Error(t, err)
}

func TestCoalesceAndCastPicksWiderSideAndCastsTheOther(t *testing.T) {
	l := typedScalar{Expr: relexpr.Literal{Value: types.DatumInt32(1), Typ: types.ScalarInt32}}
	r := typedScalar{Expr: relexpr.Literal{Value: types.DatumFloat64(2), Typ: types.ScalarFloat64}}
	le, re, target, err := coalesceAndCast(l, r)
	require.NoError(t, err)
	require.Equal(t, types.ScalarFloat64, target)
	_, leIsCast := le.(relexpr.Cast)
	require.True(t, leIsCast)
	require.Equal(t, r.Expr, re)
}
