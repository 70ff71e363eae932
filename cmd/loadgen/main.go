// Command loadgen drives a synthetic Zipfian-keyed INSERT workload against
// an in-process coordinator, independent of cmd/coordinatord, the way the
// teacher's benchmark package is its own binary rather than a mode of
// fc-server. It creates one table, then runs benchmark.Run against it for
// a configured duration, reporting latency percentiles periodically.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"flowcore/benchmark"
	"flowcore/catalog"
	"flowcore/configs"
	"flowcore/coordinator"
	"flowcore/dispatch"
	"flowcore/locks"
	"flowcore/planner"
	"flowcore/planner/ast"
	"flowcore/storage"
	"flowcore/types"
)

func main() {
	table := flag.String("table", "loadgen_table", "name of the table to create and insert into")
	records := flag.Int64("records", 100000, "size of the key range the Zipfian generator draws from")
	skew := flag.Float64("skew", 0.99, "Zipfian skew constant (theta); higher concentrates more on hot keys")
	clients := flag.Int("clients", 8, "number of concurrent inserting client goroutines")
	duration := flag.Duration("duration", 30*time.Second, "how long to run the workload")
	reportEvery := flag.Duration("report-every", 5*time.Second, "interval between latency snapshots")
	walDir := flag.String("wal-dir", "./data/loadgen-wal", "directory for the memory controller's WAL")
	dispatchAddr := flag.String("dispatch-addr", "127.0.0.1:7071", "listen address for the loopback dispatch server")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	controller, err := storage.NewMemoryController(*walDir)
	if err != nil {
		fatalf("initializing storage: %v", err)
	}
	defer controller.Close()

	clock := configs.NewClock()
	writeLock := locks.NewWriteLock()
	cat := catalog.NewStore()
	coord := coordinator.New(clock, writeLock, cat, controller, func(err error) {
		configs.CheckError(err)
	})
	go coord.Run(ctx)

	gs := grpc.NewServer()
	dispatch.Register(gs, dispatch.Loopback{})
	lis, err := net.Listen("tcp", *dispatchAddr)
	if err != nil {
		fatalf("listening on %s: %v", *dispatchAddr, err)
	}
	go gs.Serve(lis)
	defer gs.GracefulStop()

	engine, err := dispatch.Dial(*dispatchAddr)
	if err != nil {
		fatalf("dialing dispatch server: %v", err)
	}
	defer engine.Close()

	p := planner.New(cat)
	if err := createTable(p, *table); err != nil {
		fatalf("creating table %q: %v", *table, err)
	}
	if err := controller.RegisterCollection(mustID(cat, *table)); err != nil {
		fatalf("registering collection: %v", err)
	}

	cfg := benchmark.Config{
		Table:       *table,
		NumRecords:  *records,
		Skew:        *skew,
		Clients:     *clients,
		Duration:    *duration,
		ReportEvery: *reportEvery,
	}
	fmt.Printf("running %d client(s) against %q for %s (records=%d skew=%.2f)\n",
		cfg.Clients, cfg.Table, cfg.Duration, cfg.NumRecords, cfg.Skew)
	final := benchmark.Run(ctx, cfg, p, coord, engine)
	fmt.Printf("final: successes=%d failures=%d p50=%s p90=%s p99=%s avg=%s\n",
		final.Successes, final.Failures, final.P50, final.P90, final.P99, final.Avg)
}

func createTable(p *planner.Planner, table string) error {
	stmt, err := ast.Parse(fmt.Sprintf("CREATE TABLE %s (id int64 NOT NULL, val string NULL)", table))
	if err != nil {
		return err
	}
	_, err = p.PlanStatement(stmt)
	return err
}

func mustID(cat *catalog.Store, name string) types.GlobalID {
	d, err := cat.Get(name)
	if err != nil {
		fatalf("looking up %q after create: %v", name, err)
	}
	return d.ID
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
