// Package catalog is the name→Dataflow mapping both the coordinator and the
// planner consult: it tracks every source, sink, view, and table the
// session has created, with cascade-aware removal and dependency checks
// (spec §4.3). It is deliberately in-memory only — persistence of the
// catalog is an explicit Non-goal (spec §1).
package catalog

import (
	"flowcore/relexpr"
	"flowcore/types"
)

// GlobalID is the catalog's object identifier; re-exported from types so
// that callers outside this package never need to import types just to
// name an id. See types.GlobalID for the generation scheme.
type GlobalID = types.GlobalID

// Kind tags which of the four Dataflow variants an entry is.
type Kind int

const (
	KindSource Kind = iota
	KindView
	KindSink
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindView:
		return "view"
	case KindSink:
		return "sink"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// ConnectorKind distinguishes the external systems a Source/Sink talks to.
// Only Kafka is modeled concretely (spec §4.2's URL grammar); others are
// named so a Dataflow can at least record what it declared to be.
type ConnectorKind int

const (
	ConnectorKafka ConnectorKind = iota
	ConnectorFile
)

// ConnectorDesc describes the external endpoint of a Source or Sink. For
// Kafka connectors, SeedBroker/Topic are what planner.ParseKafkaURL
// resolves from a `kafka://host[:port]/topic` URL.
type ConnectorDesc struct {
	Kind       ConnectorKind
	SeedBroker string
	Topic      string
	Path       string // for ConnectorFile
}

// Dataflow is a catalog entry: a tagged variant over Source | View | Sink |
// Table (spec §3). Every variant carries a name and a declared
// RelationType; View additionally carries the RelationExpr it was planned
// from, and Source/Sink carry a ConnectorDesc.
type Dataflow struct {
	ID           GlobalID
	Name         string
	Kind         Kind
	RelationType relexpr.RelationType
	Connector    *ConnectorDesc       // non-nil for Source/Sink
	Expr         relexpr.RelationExpr // non-nil for View
}

// IsTable reports whether this entry is a local source the planner will
// accept as an INSERT target (spec §4.2's statement dispatch table).
func (d *Dataflow) IsTable() bool { return d.Kind == KindTable }

// IsStorageCollection reports whether this entry has a persistent
// write frontier tracked by the storage controller — true for sources and
// tables, false for views (computed on read) and sinks (write-only).
func (d *Dataflow) IsStorageCollection() bool {
	return d.Kind == KindTable || d.Kind == KindSource
}
