// Command coordinatord runs the commit coordinator, catalog, and SQL
// planner as a single standalone process: a thin REPL reads statements
// from stdin (or a script file), plans each one against the in-process
// catalog, and drives writes through the coordinator's group-commit path,
// dispatching catalog mutations and query/insert notifications to the
// (stand-in, local) dataflow engine over gRPC. Flag/config-file wiring
// follows the teacher's fc-server/main.go: flags override an optional
// .properties file, which overrides the configs package defaults.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"google.golang.org/grpc"

	"flowcore/catalog"
	"flowcore/configs"
	"flowcore/connector"
	"flowcore/coordinator"
	"flowcore/dispatch"
	"flowcore/locks"
	"flowcore/planner"
	"flowcore/planner/ast"
	"flowcore/storage"
	"flowcore/types"
)

var (
	configFile     string
	storageBackend string
	walDir         string
	dispatchAddr   string
	scriptPath     string
	debug          bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "optional .properties file overlaying configs defaults")
	flag.StringVar(&storageBackend, "storage", "", "storage backend: memory, postgres, or mongo (overrides config file)")
	flag.StringVar(&walDir, "wal-dir", "", "directory for the memory controller's WAL (overrides config file)")
	flag.StringVar(&dispatchAddr, "dispatch-addr", "", "listen address for the local dataflow-engine dispatch server (overrides config file)")
	flag.StringVar(&scriptPath, "script", "", "read statements from this file instead of stdin")
	flag.BoolVar(&debug, "debug", false, "enable debug logging (configs.ShowDebugInfo)")
}

func main() {
	flag.Parse()
	if err := configs.LoadFile(configFile); err != nil {
		fatalf("loading config file %q: %v", configFile, err)
	}
	if storageBackend != "" {
		configs.StorageBackend = storageBackend
	}
	if walDir != "" {
		configs.WALDirectory = walDir
	}
	if dispatchAddr != "" {
		configs.EngineDispatchAddr = dispatchAddr
	}
	if debug {
		configs.ShowDebugInfo = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	controller, err := newController(ctx)
	if err != nil {
		fatalf("initializing storage backend %q: %v", configs.StorageBackend, err)
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
	lis, err := listenDispatch(configs.EngineDispatchAddr)
	if err != nil {
		fatalf("listening on %s: %v", configs.EngineDispatchAddr, err)
	}
	go gs.Serve(lis)
	defer gs.GracefulStop()

	engine, err := dispatch.Dial(configs.EngineDispatchAddr)
	if err != nil {
		fatalf("dialing dispatch server: %v", err)
	}
	defer engine.Close()

	go runFrontierAdvancer(ctx, coord, clock)

	p := planner.New(cat)
	session := &coordinator.Session{ConnID: "coordinatord-cli"}

	in := os.Stdin
	if scriptPath != "" {
		f, err := os.Open(scriptPath)
		if err != nil {
			fatalf("opening script %q: %v", scriptPath, err)
		}
		defer f.Close()
		in = f
	}
	runREPL(ctx, in, p, coord, session, engine, controller)
}

func listenDispatch(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func newController(ctx context.Context) (storage.Controller, error) {
	switch configs.StorageBackend {
	case "", "memory":
		return storage.NewMemoryController(configs.WALDirectory)
	case "postgres":
		return storage.NewPostgresController(ctx, configs.PostgresDSN)
	case "mongo":
		return storage.NewMongoController(ctx, configs.MongoURI, "flowcore")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", configs.StorageBackend)
	}
}

// runFrontierAdvancer periodically asks the coordinator to advance every
// table/source's write frontier, the same steady background tick
// queue_local_input_advances exists to drive in the original design.
func runFrontierAdvancer(ctx context.Context, coord *coordinator.Coordinator, clock *configs.Clock) {
	ticker := time.NewTicker(configs.GroupCommitSleepCap)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			coord.QueueLocalInputAdvances(clock.PeekLocalTS())
		}
	}
}

// runREPL reads one statement per non-empty, non-comment line from in,
// plans it, and executes its side effects. This is deliberately not a
// real SQL session protocol (out of scope per spec.md §1) — it exists so
// cmd/coordinatord is a runnable program exercising the planner and
// coordinator end to end.
func runREPL(ctx context.Context, in io.Reader, p *planner.Planner, coord *coordinator.Coordinator, session *coordinator.Session, engine *dispatch.EngineClient, controller storage.Controller) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if err := executeStatement(ctx, line, p, coord, session, engine, controller); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		fatalf("reading input: %v", err)
	}
}

func executeStatement(ctx context.Context, sql string, p *planner.Planner, coord *coordinator.Coordinator, session *coordinator.Session, engine *dispatch.EngineClient, controller storage.Controller) error {
	stmt, err := ast.Parse(sql)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	plan, err := p.PlanStatement(stmt)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	switch v := plan.(type) {
	case planner.CreateSourcePlan:
		return dispatchCreate(ctx, engine, controller, v.Dataflow)
	case planner.CreateSinkPlan:
		return dispatchCreate(ctx, engine, controller, v.Dataflow)
	case planner.CreateViewPlan:
		return dispatchCreate(ctx, engine, controller, v.Dataflow)
	case planner.CreateTablePlan:
		return dispatchCreate(ctx, engine, controller, v.Dataflow)
	case planner.DropPlan:
		ids := make([]types.GlobalID, len(v.Removed))
		for i, d := range v.Removed {
			ids[i] = d.ID
		}
		ack, err := engine.Dispatch(ctx, dispatch.Command{Kind: dispatch.KindDropDataflows, DroppedIDs: ids})
		return reportAck(ack, err)
	case planner.InsertPlan:
		return submitInsert(ctx, coord, session, v, engine)
	case planner.SelectPlan:
		ack, err := engine.Dispatch(ctx, dispatch.Command{Kind: dispatch.KindPeekTransient})
		if err := reportAck(ack, err); err != nil {
			return err
		}
		fmt.Printf("select: %d column(s)\n", len(v.Typ.Columns))
		return nil
	case planner.PeekPlan:
		ack, err := engine.Dispatch(ctx, dispatch.Command{Kind: dispatch.KindPeekExisting, DataflowID: v.ID})
		if err := reportAck(ack, err); err != nil {
			return err
		}
		fmt.Printf("peek: %d column(s)\n", len(v.Typ.Columns))
		return nil
	default:
		return fmt.Errorf("unhandled plan type %T", plan)
	}
}

// dispatchCreate notifies the (stand-in) dataflow engine of a new catalog
// entry and, for tables and sources, registers it with the storage
// controller so a later INSERT or frontier advance has a collection to
// target — views and sinks have no write frontier of their own
// (catalog.Dataflow.IsStorageCollection). Sources and sinks additionally
// get their Kafka connector bootstrapped (dialed and immediately closed —
// this REPL holds no long-lived per-dataflow connection of its own) so a
// misconfigured broker/topic surfaces at CREATE time rather than silently
// later.
func dispatchCreate(ctx context.Context, engine *dispatch.EngineClient, controller storage.Controller, d *catalog.Dataflow) error {
	if d.IsStorageCollection() {
		if err := controller.RegisterCollection(d.ID); err != nil {
			return fmt.Errorf("registering collection %q: %w", d.Name, err)
		}
	}
	if d.Connector != nil {
		if err := bootstrapConnector(d); err != nil {
			return err
		}
	}
	ack, err := engine.Dispatch(ctx, dispatch.Command{
		Kind:         dispatch.KindCreateDataflow,
		DataflowID:   d.ID,
		DataflowName: d.Name,
	})
	if err := reportAck(ack, err); err != nil {
		return err
	}
	fmt.Printf("created %s %q (id=%s)\n", d.Kind, d.Name, d.ID)
	return nil
}

// bootstrapConnector dials d's Kafka connector once to validate the
// resolved broker/topic, following the same source-vs-sink client shape
// connector.DialSource/DialSink build for later use by the (external)
// ingestion/egestion path this module does not itself run.
func bootstrapConnector(d *catalog.Dataflow) error {
	if d.Connector.Kind != catalog.ConnectorKafka {
		return nil
	}
	var (
		cl  *kgo.Client
		err error
	)
	if d.Kind == catalog.KindSink {
		cl, err = connector.DialSink(d.Connector.SeedBroker, d.Connector.Topic)
	} else {
		cl, err = connector.DialSource(d.Connector.SeedBroker, d.Connector.Topic)
	}
	if err != nil {
		return fmt.Errorf("connector: %w", err)
	}
	cl.Close()
	return nil
}

// submitInsert submits plan's write to the coordinator's group-commit path
// and waits for it to be acknowledged.
func submitInsert(ctx context.Context, coord *coordinator.Coordinator, session *coordinator.Session, plan planner.InsertPlan, engine *dispatch.EngineClient) error {
	tx := make(coordinator.ClientTransmitter, 1)
	coord.SubmitWrite(&coordinator.PendingWriteTxn{
		Writes: []types.WriteOp{plan.Write},
		PendingTxn: coordinator.PendingTxn{
			Tx:      tx,
			Session: session,
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
	ack, err := engine.Dispatch(ctx, dispatch.Command{
		Kind:       dispatch.KindInsert,
		DataflowID: plan.Write.ID,
		RowCount:   len(plan.Write.Rows),
	})
	if err := reportAck(ack, err); err != nil {
		return err
	}
	fmt.Printf("inserted %d row(s)\n", len(plan.Write.Rows))
	return nil
}

func reportAck(ack dispatch.Ack, err error) error {
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if !ack.OK {
		return fmt.Errorf("dispatch: engine rejected command: %s", ack.Err)
	}
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
