package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"flowcore/types"
)

// PostgresController durably commits each batch in one transaction over two
// tables: flowcore_updates gets one row per row diff, keyed by
// (collection_id, seq), and flowcore_frontiers holds one write-frontier row
// per collection. Grounded in the teacher's SQLDB (storage/postgres.go):
// same pgxpool.ParseConfig/ConnectConfig setup, but with the OCC/2PL
// validation machinery dropped entirely — that belongs to the
// multi-coordinator distributed consensus this write path explicitly
// excludes (spec §1 Non-goals).
type PostgresController struct {
	pool *pgxpool.Pool

	mu        sync.Mutex
	frontiers map[types.GlobalID]types.Timestamp
	onFail    FatalErrorHandler
}

// NewPostgresController connects to dsn and ensures the append log and
// frontier tables exist. A malformed DSN, an unreachable server or a failed
// CREATE TABLE is returned as an error; nothing here panics.
func NewPostgresController(ctx context.Context, dsn string) (*PostgresController, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect to postgres: %w", err)
	}
	c := &PostgresController{
		pool:      pool,
		frontiers: make(map[types.GlobalID]types.Timestamp),
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS flowcore_updates (
			collection_id BIGINT NOT NULL,
			seq           BIGINT NOT NULL,
			ts            BIGINT NOT NULL,
			row_value     TEXT   NOT NULL,
			diff          BIGINT NOT NULL,
			PRIMARY KEY (collection_id, seq)
		)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: create append log table: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS flowcore_frontiers (
			collection_id BIGINT PRIMARY KEY,
			write_ts      BIGINT NOT NULL
		)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: create frontier table: %w", err)
	}
	return c, nil
}

func (c *PostgresController) RegisterCollection(id types.GlobalID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frontiers[id]; ok {
		return nil
	}
	if _, err := c.pool.Exec(context.Background(),
		`INSERT INTO flowcore_frontiers (collection_id, write_ts) VALUES ($1, 0)
		 ON CONFLICT (collection_id) DO NOTHING`, int64(id)); err != nil {
		return fmt.Errorf("storage: register collection: %w", err)
	}
	c.frontiers[id] = 0
	return nil
}

func (c *PostgresController) WriteFrontier(id types.GlobalID) (types.Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.frontiers[id]
	if !ok {
		return 0, ErrUnknownCollection
	}
	return ts, nil
}

func (c *PostgresController) OnFatalError(h FatalErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFail = h
}

// Append mirrors MemoryController's contract: synchronous rejection for an
// unknown collection or non-advancing timestamp, one atomic transaction for
// the whole batch otherwise, with transaction-commit failure reported to
// the installed FatalErrorHandler rather than returned, since by that point
// the caller has already moved on to believing the append succeeded.
func (c *PostgresController) Append(ctx context.Context, batch Batch) error {
	if batch.AdvanceTo <= batch.Timestamp {
		return ErrTimestampNotAhead
	}
	c.mu.Lock()
	for _, u := range batch.Updates {
		front, ok := c.frontiers[u.ID]
		if !ok {
			c.mu.Unlock()
			return ErrUnknownCollection
		}
		if batch.Timestamp < front {
			c.mu.Unlock()
			return ErrTimestampNotAhead
		}
	}
	c.mu.Unlock()

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		c.fail(fmt.Errorf("storage: begin postgres append tx: %w", err))
		return nil
	}
	ok := c.appendWithinTx(ctx, tx, batch)
	if !ok {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		c.fail(fmt.Errorf("storage: commit postgres append tx: %w", err))
		return nil
	}

	c.mu.Lock()
	for _, u := range batch.Updates {
		c.frontiers[u.ID] = batch.AdvanceTo
	}
	c.mu.Unlock()
	return nil
}

func (c *PostgresController) appendWithinTx(ctx context.Context, tx pgx.Tx, batch Batch) bool {
	for _, u := range batch.Updates {
		for i, rd := range u.Rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO flowcore_updates (collection_id, seq, ts, row_value, diff)
				VALUES ($1, $2, $3, $4, $5)`,
				int64(u.ID), int64(batch.Timestamp)<<32|int64(i), int64(batch.Timestamp), rd.Row.String(), int64(rd.Diff))
			if err != nil {
				c.fail(fmt.Errorf("storage: insert update row: %w", err))
				_ = tx.Rollback(ctx)
				return false
			}
		}
		if _, err := tx.Exec(ctx,
			`UPDATE flowcore_frontiers SET write_ts = $2 WHERE collection_id = $1`,
			int64(u.ID), int64(batch.AdvanceTo)); err != nil {
			c.fail(fmt.Errorf("storage: advance frontier row: %w", err))
			_ = tx.Rollback(ctx)
			return false
		}
	}
	return true
}

func (c *PostgresController) fail(err error) {
	c.mu.Lock()
	h := c.onFail
	c.mu.Unlock()
	if h == nil {
		return
	}
	go h(err)
}

func (c *PostgresController) Close() error {
	c.pool.Close()
	return nil
}

var _ Controller = (*PostgresController)(nil)
