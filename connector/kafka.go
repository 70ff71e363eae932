// Package connector builds franz-go clients from a resolved
// catalog.ConnectorDesc, the bootstrap step between planner.ParseKafkaURL
// and an actual source/sink dataflow: CREATE SOURCE/SINK only resolves and
// validates a URL (planner/kafka_url.go); dialing the broker is this
// package's job, kept separate so planning a statement never touches the
// network.
package connector

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DialSource builds a client consuming topic from seedBroker, the producer
// side of a CREATE SOURCE's ingestion: it hands rows off to the caller,
// which is responsible for turning each fetched record into a
// types.WriteOp and submitting it through the coordinator the same way an
// INSERT statement does.
func DialSource(seedBroker, topic string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(seedBroker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup("flowcore-source"),
	)
	if err != nil {
		return nil, fmt.Errorf("connector: dialing source broker %s: %w", seedBroker, err)
	}
	return cl, nil
}

// DialSink builds a client producing to topic on seedBroker, for a CREATE
// SINK's continuous output of a view's computed rows.
func DialSink(seedBroker, topic string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(seedBroker),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connector: dialing sink broker %s: %w", seedBroker, err)
	}
	return cl, nil
}

// ProduceJSON sends one JSON-encoded row to a sink client, synchronously,
// mirroring the teacher's preference for a single synchronous round trip
// per unit of work over a fire-and-forget async producer.
func ProduceJSON(ctx context.Context, cl *kgo.Client, topic string, payload []byte) error {
	rec := &kgo.Record{Topic: topic, Value: payload}
	results := cl.ProduceSync(ctx, rec)
	return results.FirstErr()
}
