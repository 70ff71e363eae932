// Package dispatch stands in for the external dataflow execution engine
// (SPEC_FULL.md §4.1, "Dataflow dispatch"): CreateDataflow/DropDataflows/
// PeekExisting/PeekTransient/Insert commands the planner produces are
// marshaled as a google.golang.org/protobuf/types/known/anypb.Any and sent
// over a single generic gRPC method, grounded in the teacher's
// network/detector/qtable.go grpc.Dial/conn.Invoke wiring but built by hand
// against a grpc.ServiceDesc rather than protoc-generated stubs, since no
// .proto toolchain runs as part of this module. The engine itself remains
// genuinely external — the server side here only acknowledges commands.
package dispatch

import "flowcore/types"

// Kind discriminates the wire envelope's payload, the one piece of
// information the generic handler needs before it can hand a Command back
// to an EngineServer implementation.
type Kind string

const (
	KindCreateDataflow Kind = "create_dataflow"
	KindDropDataflows  Kind = "drop_dataflows"
	KindPeekExisting   Kind = "peek_existing"
	KindPeekTransient  Kind = "peek_transient"
	KindInsert         Kind = "insert"
)

// Command is the wire shape dispatched to the engine. It carries only the
// identifying information a dataflow engine's control plane needs (which
// dataflow, which ids, how many rows) rather than full relational-plan
// trees — the engine's own compute graph construction is out of scope, so
// there is nothing on the other end that would consume more than this.
type Command struct {
	Kind Kind `json:"kind"`

	DataflowID   types.GlobalID   `json:"dataflow_id,omitempty"`
	DataflowName string           `json:"dataflow_name,omitempty"`
	DroppedIDs   []types.GlobalID `json:"dropped_ids,omitempty"`
	RowCount     int              `json:"row_count,omitempty"`
}

// Ack is the engine's response to a Command: either accepted, or rejected
// with a reason. A rejection is not itself a fatal condition at the
// dispatch layer — callers decide whether it warrants a retry, a client
// error, or (per §7) a panic, the same three-tier split as every other
// external interface the coordinator touches.
type Ack struct {
	OK  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}
