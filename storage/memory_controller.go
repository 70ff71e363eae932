package storage

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/tidwall/wal"

	"flowcore/types"
)

// walRecord is the on-disk shape of one durable batch, grounded in the
// teacher's RedoLogEntry/TxnLogEntry pairing (storage/log_manager.go) but
// collapsed to a single record per Append call rather than one record per
// row, since group commit already batches at that granularity.
type walRecord struct {
	Timestamp types.Timestamp `json:"ts"`
	Updates   []Update        `json:"updates"`
}

// MemoryController is the default Controller: every collection's current
// contents live in an in-process map, with the update stream additionally
// appended to a tidwall/wal log for crash durability. Grounded in the
// teacher's LogManager (storage/log_manager.go), generalized from one log
// per shard to one log for the whole controller and from per-row entries to
// per-batch entries.
type MemoryController struct {
	mu sync.Mutex

	frontiers map[types.GlobalID]types.Timestamp
	rows      map[types.GlobalID][]types.RowDiff

	log    *wal.Log
	lsn    uint64
	onFail FatalErrorHandler
}

// NewMemoryController opens (or creates) a WAL under dir and returns a
// ready controller. An empty dir disables durability entirely, keeping only
// the in-memory maps — useful for unit tests that don't want a filesystem
// dependency.
func NewMemoryController(dir string) (*MemoryController, error) {
	c := &MemoryController{
		frontiers: make(map[types.GlobalID]types.Timestamp),
		rows:      make(map[types.GlobalID][]types.RowDiff),
	}
	if dir == "" {
		return c, nil
	}
	log, err := wal.Open(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open wal at %q: %w", dir, err)
	}
	c.log = log
	last, err := log.LastIndex()
	if err != nil {
		return nil, fmt.Errorf("storage: read wal index: %w", err)
	}
	c.lsn = last
	return c, nil
}

func (c *MemoryController) RegisterCollection(id types.GlobalID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frontiers[id]; ok {
		return nil
	}
	c.frontiers[id] = 0
	return nil
}

func (c *MemoryController) WriteFrontier(id types.GlobalID) (types.Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.frontiers[id]
	if !ok {
		return 0, ErrUnknownCollection
	}
	return ts, nil
}

func (c *MemoryController) OnFatalError(h FatalErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFail = h
}

// Append validates and applies batch as specified by storage.Controller:
// synchronous rejection for an unknown collection or a non-advancing
// timestamp, otherwise the whole batch is applied atomically under the
// controller's single mutex. WAL write failures are reported to the
// installed FatalErrorHandler rather than returned, matching the
// asynchronous-failure half of the contract — this controller's only
// synchronous failures are the two validation cases above.
func (c *MemoryController) Append(ctx context.Context, batch Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if batch.AdvanceTo <= batch.Timestamp {
		return ErrTimestampNotAhead
	}
	for _, u := range batch.Updates {
		front, ok := c.frontiers[u.ID]
		if !ok {
			return ErrUnknownCollection
		}
		if batch.Timestamp < front {
			return ErrTimestampNotAhead
		}
	}

	if c.log != nil {
		rec := walRecord{Timestamp: batch.Timestamp, Updates: batch.Updates}
		buf, err := json.Marshal(rec)
		if err != nil {
			c.fail(fmt.Errorf("storage: marshal wal record: %w", err))
			return nil
		}
		c.lsn++
		if err := c.log.Write(c.lsn, buf); err != nil {
			c.fail(fmt.Errorf("storage: wal write: %w", err))
			return nil
		}
	}

	for _, u := range batch.Updates {
		c.rows[u.ID] = types.Consolidate(append(c.rows[u.ID], u.Rows...))
		c.frontiers[u.ID] = batch.AdvanceTo
	}
	return nil
}

// fail reports err to the installed handler without holding c.mu across the
// call, matching the teacher's habit of doing log I/O outside its latch
// (localBatchSyncLogger in storage/log_manager.go locks only around the
// buffer swap, not the actual write).
func (c *MemoryController) fail(err error) {
	h := c.onFail
	if h == nil {
		return
	}
	go h(err)
}

// Snapshot returns a copy of collection id's current consolidated rows, for
// tests and for PeekExisting's read path.
func (c *MemoryController) Snapshot(id types.GlobalID) []types.RowDiff {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.rows[id]
	out := make([]types.RowDiff, len(rows))
	copy(out, rows)
	return out
}

func (c *MemoryController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return nil
	}
	return c.log.Close()
}

var _ Controller = (*MemoryController)(nil)
