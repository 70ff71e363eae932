package types

// WriteOp is a batch of row changes targeting a single catalog object,
// produced by the planner for an INSERT and consumed by the coordinator's
// group commit.
type WriteOp struct {
	ID   GlobalID
	Rows []RowDiff
}
