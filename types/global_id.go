package types

import (
	"fmt"
	"sync/atomic"
)

// GlobalID is an opaque, stable identifier for a catalog object (table,
// view, source, sink). It is handed out by catalog.Store.Insert and never
// reused for the lifetime of the process, mirroring the teacher's
// auto-incrementing Key type (storage/row.go) generalized from per-table
// primary keys to a single global namespace shared by every catalog object.
type GlobalID uint64

func (id GlobalID) String() string {
	return fmt.Sprintf("u%d", uint64(id))
}

var globalIDCounter uint64

// NextGlobalID hands out a fresh, process-unique GlobalID. Catalog objects
// created by CREATE SOURCE/SINK/VIEW/TABLE each get one on insert.
func NextGlobalID() GlobalID {
	return GlobalID(atomic.AddUint64(&globalIDCounter, 1))
}
