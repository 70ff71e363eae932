package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pingcap/go-ycsb/pkg/generator"

	"flowcore/coordinator"
	"flowcore/dispatch"
	"flowcore/planner"
	"flowcore/planner/ast"
	"flowcore/types"
)

// Config parameterizes a load-generation run, mirroring the teacher's
// YCSB-derived knobs (configs.NumberOfRecordsPerShard, YCSBDataSkewness)
// but scoped to this module's single table/single coordinator rather than
// a sharded cluster.
type Config struct {
	Table       string
	NumRecords  int64
	Skew        float64
	Clients     int
	Duration    time.Duration
	ReportEvery time.Duration
}

// DefaultConfig matches the teacher's defaults closely enough to produce a
// comparable access-skew shape, scaled down since this module drives one
// table rather than many shards.
func DefaultConfig(table string) Config {
	return Config{
		Table:       table,
		NumRecords:  100000,
		Skew:        0.99,
		Clients:     8,
		Duration:    30 * time.Second,
		ReportEvery: 5 * time.Second,
	}
}

// client drives one goroutine's worth of INSERTs against a shared key
// range, grounded on the teacher's YCSBClient (benchmark/ycsb.go): a
// per-client *rand.Rand seeded off its index, and a *generator.Zipfian over
// the same numeric range shared by every client so the population's hot
// keys concentrate consistently across goroutines.
type client struct {
	id   int
	r    *rand.Rand
	zip  *generator.Zipfian
	p    *planner.Planner
	coord *coordinator.Coordinator
	session *coordinator.Session
	engine *dispatch.EngineClient
	stats *Stats
	cfg  Config
}

func newClient(id int, cfg Config, p *planner.Planner, coord *coordinator.Coordinator, engine *dispatch.EngineClient, stats *Stats) *client {
	return &client{
		id:      id,
		r:       rand.New(rand.NewSource(int64(id)*11 + 31)),
		zip:     generator.NewZipfianWithRange(0, cfg.NumRecords-2, cfg.Skew),
		p:       p,
		coord:   coord,
		session: &coordinator.Session{ConnID: fmt.Sprintf("loadgen-%d", id)},
		engine:  engine,
		stats:   stats,
		cfg:     cfg,
	}
}

// run issues INSERTs until ctx is cancelled, parsing and planning each one
// through the same ast/planner pipeline a real client statement would go
// through rather than constructing a types.WriteOp directly — this is what
// "load generator" means for this module: SQL in, group-commit out.
func (c *client) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		key := uint64(c.zip.Next(c.r))
		stmt := fmt.Sprintf("INSERT INTO %s (id, val) VALUES (%d, '%s')", c.cfg.Table, key, randSeq(c.r, 8))

		start := time.Now()
		err := c.execute(ctx, stmt)
		c.stats.Record(time.Since(start), err)
	}
}

func (c *client) execute(ctx context.Context, stmt string) error {
	parsed, err := ast.Parse(stmt)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	plan, err := c.p.PlanStatement(parsed)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	insert, ok := plan.(planner.InsertPlan)
	if !ok {
		return fmt.Errorf("unexpected plan type %T for INSERT statement", plan)
	}

	tx := make(coordinator.ClientTransmitter, 1)
	c.coord.SubmitWrite(&coordinator.PendingWriteTxn{
		Writes: []types.WriteOp{insert.Write},
		PendingTxn: coordinator.PendingTxn{
			Tx:      tx,
			Session: c.session,
		},
	})
	select {
	case resp := <-tx:
		if resp.Err != nil {
			return resp.Err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.engine == nil {
		return nil
	}
	ack, err := c.engine.Dispatch(ctx, dispatch.Command{
		Kind:       dispatch.KindInsert,
		DataflowID: insert.Write.ID,
		RowCount:   len(insert.Write.Rows),
	})
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if !ack.OK {
		return fmt.Errorf("dispatch: engine rejected command: %s", ack.Err)
	}
	return nil
}

// Run launches cfg.Clients goroutines against table until cfg.Duration
// elapses, printing a Stats snapshot every cfg.ReportEvery, and returns the
// final snapshot once every client has stopped.
func Run(ctx context.Context, cfg Config, p *planner.Planner, coord *coordinator.Coordinator, engine *dispatch.EngineClient) Snapshot {
	stats := NewStats()
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	done := make(chan struct{})
	for i := 0; i < cfg.Clients; i++ {
		c := newClient(i, cfg, p, coord, engine, stats)
		go func() {
			c.run(runCtx)
			done <- struct{}{}
		}()
	}

	ticker := time.NewTicker(cfg.ReportEvery)
	defer ticker.Stop()
	finished := 0
	for finished < cfg.Clients {
		select {
		case <-done:
			finished++
		case <-ticker.C:
			stats.Log()
		}
	}
	return stats.Log()
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randSeq mirrors the teacher's randSeq (benchmark/ycsb.go) but takes an
// explicit *rand.Rand instead of the package-level generator, since every
// client here owns its own source.
func randSeq(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}
