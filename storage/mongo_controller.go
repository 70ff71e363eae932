package storage

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"flowcore/types"
)

// mongoFrontierDoc and mongoUpdateDoc are the two collections a
// MongoController keeps: one document per collection id tracking its write
// frontier, and one document per (collection id, batch) recording the
// row diffs applied at that timestamp. Grounded in the teacher's
// YCSBDataMongo (storage/mongo.go), generalized from one fixed "key/value"
// shape to the RowDiff shape the rest of this module shares.
type mongoFrontierDoc struct {
	CollectionID uint64 `bson:"_id"`
	WriteTS      uint64 `bson:"writeTs"`
}

type mongoUpdateDoc struct {
	CollectionID uint64   `bson:"collectionId"`
	Timestamp    uint64   `bson:"ts"`
	Rows         []string `bson:"rows"`
	Diffs        []int64  `bson:"diffs"`
}

// MongoController is a document-store-backed Controller, intended for
// sink-style fan-out where the downstream consumer of a collection's update
// stream is itself Mongo-shaped. Grounded in the teacher's MongoDB
// (storage/mongo.go): same mongo.Connect/Ping/database-per-deployment setup,
// generalized from a single fixed "YCSB" collection to one frontier
// collection plus one update-log collection shared across every registered
// dataflow id.
type MongoController struct {
	client     *mongo.Client
	frontierDB *mongo.Collection
	updatesDB  *mongo.Collection

	mu        sync.Mutex
	frontiers map[types.GlobalID]types.Timestamp
	onFail    FatalErrorHandler
}

// NewMongoController connects to uri and prepares database dbName the same
// way the teacher's init does: connect, ping the primary, then resolve the
// two collections this controller uses (creating them implicitly on first
// write, Mongo's usual style).
func NewMongoController(ctx context.Context, uri, dbName string) (*MongoController, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("storage: connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("storage: ping mongo primary: %w", err)
	}
	db := client.Database(fmt.Sprintf("flowcore_%s", dbName))
	return &MongoController{
		client:     client,
		frontierDB: db.Collection("frontiers"),
		updatesDB:  db.Collection("updates"),
		frontiers:  make(map[types.GlobalID]types.Timestamp),
	}, nil
}

func (c *MongoController) RegisterCollection(id types.GlobalID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frontiers[id]; ok {
		return nil
	}
	_, err := c.frontierDB.UpdateByID(context.Background(), uint64(id),
		bson.M{"$setOnInsert": mongoFrontierDoc{CollectionID: uint64(id), WriteTS: 0}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("storage: register collection: %w", err)
	}
	c.frontiers[id] = 0
	return nil
}

func (c *MongoController) WriteFrontier(id types.GlobalID) (types.Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.frontiers[id]
	if !ok {
		return 0, ErrUnknownCollection
	}
	return ts, nil
}

func (c *MongoController) OnFatalError(h FatalErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFail = h
}

// Append validates synchronously, then issues one insert per touched
// collection plus a frontier bump; a write failure past validation is
// reported to the installed FatalErrorHandler, matching every other
// Controller in this package.
func (c *MongoController) Append(ctx context.Context, batch Batch) error {
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

	for _, u := range batch.Updates {
		doc := mongoUpdateDoc{
			CollectionID: uint64(u.ID),
			Timestamp:    uint64(batch.Timestamp),
			Rows:         make([]string, len(u.Rows)),
			Diffs:        make([]int64, len(u.Rows)),
		}
		for i, rd := range u.Rows {
			doc.Rows[i] = rd.Row.String()
			doc.Diffs[i] = int64(rd.Diff)
		}
		if _, err := c.updatesDB.InsertOne(ctx, doc); err != nil {
			c.fail(fmt.Errorf("storage: insert update document: %w", err))
			return nil
		}
		if _, err := c.frontierDB.UpdateByID(ctx, uint64(u.ID),
			bson.M{"$set": bson.M{"writeTs": uint64(batch.AdvanceTo)}}); err != nil {
			c.fail(fmt.Errorf("storage: advance frontier document: %w", err))
			return nil
		}
	}

	c.mu.Lock()
	for _, u := range batch.Updates {
		c.frontiers[u.ID] = batch.AdvanceTo
	}
	c.mu.Unlock()
	return nil
}

func (c *MongoController) fail(err error) {
	c.mu.Lock()
	h := c.onFail
	c.mu.Unlock()
	if h == nil {
		return
	}
	go h(err)
}

func (c *MongoController) Close() error {
	return c.client.Disconnect(context.Background())
}

var _ Controller = (*MongoController)(nil)
