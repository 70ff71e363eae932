package types

import (
	"fmt"
	"time"
)

// ScalarType enumerates the scalar types a Datum can carry, and the
// nullability-independent "shape" a ColumnType declares. Order here matters
// for nothing; the coalescing precedence lives in planner.typePrecedence,
// not in this enum's declaration order.
type ScalarType int

const (
	ScalarNull ScalarType = iota
	ScalarBool
	ScalarInt32
	ScalarInt64
	ScalarFloat32
	ScalarFloat64
	ScalarString
	ScalarBytes
	ScalarDate
	ScalarTime
	ScalarTimestamp
	ScalarDecimal
)

func (s ScalarType) String() string {
	switch s {
	case ScalarNull:
		return "null"
	case ScalarBool:
		return "bool"
	case ScalarInt32:
		return "int32"
	case ScalarInt64:
		return "int64"
	case ScalarFloat32:
		return "float32"
	case ScalarFloat64:
		return "float64"
	case ScalarString:
		return "string"
	case ScalarBytes:
		return "bytes"
	case ScalarDate:
		return "date"
	case ScalarTime:
		return "time"
	case ScalarTimestamp:
		return "timestamp"
	case ScalarDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Datum is a single value of one of the scalar types enumerated above. It is
// a closed set (no external implementations) so that planner and storage
// code can safely type-switch over every variant.
type Datum interface {
	Type() ScalarType
	IsNull() bool
	String() string
	datum()
}

type DatumNull struct{}

func (DatumNull) Type() ScalarType { return ScalarNull }
func (DatumNull) IsNull() bool     { return true }
func (DatumNull) String() string   { return "NULL" }
func (DatumNull) datum()           {}

type DatumBool bool

func (DatumBool) Type() ScalarType { return ScalarBool }
func (DatumBool) IsNull() bool     { return false }
func (d DatumBool) String() string { return fmt.Sprintf("%t", bool(d)) }
func (DatumBool) datum()           {}

type DatumInt32 int32

func (DatumInt32) Type() ScalarType { return ScalarInt32 }
func (DatumInt32) IsNull() bool     { return false }
func (d DatumInt32) String() string { return fmt.Sprintf("%d", int32(d)) }
func (DatumInt32) datum()           {}

type DatumInt64 int64

func (DatumInt64) Type() ScalarType { return ScalarInt64 }
func (DatumInt64) IsNull() bool     { return false }
func (d DatumInt64) String() string { return fmt.Sprintf("%d", int64(d)) }
func (DatumInt64) datum()           {}

type DatumFloat32 float32

func (DatumFloat32) Type() ScalarType { return ScalarFloat32 }
func (DatumFloat32) IsNull() bool     { return false }
func (d DatumFloat32) String() string { return fmt.Sprintf("%v", float32(d)) }
func (DatumFloat32) datum()           {}

type DatumFloat64 float64

func (DatumFloat64) Type() ScalarType { return ScalarFloat64 }
func (DatumFloat64) IsNull() bool     { return false }
func (d DatumFloat64) String() string { return fmt.Sprintf("%v", float64(d)) }
func (DatumFloat64) datum()           {}

type DatumString string

func (DatumString) Type() ScalarType { return ScalarString }
func (DatumString) IsNull() bool     { return false }
func (d DatumString) String() string { return string(d) }
func (DatumString) datum()           {}

type DatumBytes []byte

func (DatumBytes) Type() ScalarType { return ScalarBytes }
func (DatumBytes) IsNull() bool     { return false }
func (d DatumBytes) String() string { return fmt.Sprintf("%x", []byte(d)) }
func (DatumBytes) datum()           {}

type DatumDate time.Time

func (DatumDate) Type() ScalarType { return ScalarDate }
func (DatumDate) IsNull() bool     { return false }
func (d DatumDate) String() string { return time.Time(d).Format("2006-01-02") }
func (DatumDate) datum()           {}

type DatumTime time.Duration

func (DatumTime) Type() ScalarType { return ScalarTime }
func (DatumTime) IsNull() bool     { return false }
func (d DatumTime) String() string { return time.Duration(d).String() }
func (DatumTime) datum()           {}

type DatumTimestamp time.Time

func (DatumTimestamp) Type() ScalarType { return ScalarTimestamp }
func (DatumTimestamp) IsNull() bool     { return false }
func (d DatumTimestamp) String() string { return time.Time(d).Format(time.RFC3339Nano) }
func (DatumTimestamp) datum()           {}

// DatumDecimal is a fixed-point decimal represented as an unscaled integer
// and a scale (value == Unscaled / 10^Scale), avoiding a dependency on a
// third-party decimal type for a single Datum variant.
type DatumDecimal struct {
	Unscaled int64
	Scale    int
}

func (DatumDecimal) Type() ScalarType { return ScalarDecimal }
func (DatumDecimal) IsNull() bool     { return false }
func (d DatumDecimal) String() string {
	return fmt.Sprintf("%d.%0*d", d.Unscaled/pow10(d.Scale), d.Scale, d.Unscaled%pow10(d.Scale))
}
func (DatumDecimal) datum() {}

func pow10(n int) int64 {
	r := int64(1)
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}
