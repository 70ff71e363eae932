package types

import "strings"

// Row is an ordered tuple of Datum values, following the teacher's
// RowData.Value []interface{} slot model (storage/row.go) but closed over
// the Datum interface instead of bare interface{}.
type Row []Datum

func (r Row) String() string {
	parts := make([]string, len(r))
	for i, d := range r {
		parts[i] = d.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i].String() != other[i].String() || r[i].Type() != other[i].Type() {
			return false
		}
	}
	return true
}

// Diff is a signed multiplicity: positive inserts, negative retracts.
type Diff int64

// RowDiff is a row paired with its multiplicity, the unit the planner
// produces for INSERT and the unit consolidation operates over.
type RowDiff struct {
	Row  Row
	Diff Diff
}

// Update is a RowDiff pinned to the timestamp at which it became visible.
type Update struct {
	Row       Row
	Diff      Diff
	Timestamp Timestamp
}

// Consolidate sums diffs for identical rows and drops rows whose net diff is
// zero, matching send_builtin_table_updates' per-bucket consolidation
// (spec §4.1, invariant 7).
func Consolidate(rows []RowDiff) []RowDiff {
	type key = string
	order := make([]key, 0, len(rows))
	sums := make(map[key]Diff, len(rows))
	reprRow := make(map[key]Row, len(rows))
	for _, rd := range rows {
		k := rd.Row.String()
		if _, seen := sums[k]; !seen {
			order = append(order, k)
			reprRow[k] = rd.Row
		}
		sums[k] += rd.Diff
	}
	out := make([]RowDiff, 0, len(order))
	for _, k := range order {
		if d := sums[k]; d != 0 {
			out = append(out, RowDiff{Row: reprRow[k], Diff: d})
		}
	}
	return out
}
