// Package store persists aggregation results to MongoDB. One document is
// written per completed aggregation cycle.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 30 * time.Second

// Manager owns the MongoDB client for the process lifetime.
type Manager struct {
	client *mongo.Client
}

// NewManager connects to the cluster at uri and verifies the connection
// with a ping.
func NewManager(ctx context.Context, uri string) (*Manager, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("connected to MongoDB cluster")
	return &Manager{client: client}, nil
}

// Close disconnects the client.
func (m *Manager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ops returns collection-level operations for database/collection.
func (m *Manager) Ops(database, collection string) *Ops {
	return &Ops{coll: m.client.Database(database).Collection(collection)}
}

// Ops handles operations against one collection.
type Ops struct {
	coll *mongo.Collection
}

// InsertMany inserts documents into the collection.
func (o *Ops) InsertMany(ctx context.Context, docs []any) error {
	if _, err := o.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}
	return nil
}

// InsertOne inserts a single document into the collection.
func (o *Ops) InsertOne(ctx context.Context, doc any) error {
	if _, err := o.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// UpdateMany applies a $set update to every document matching filter.
func (o *Ops) UpdateMany(ctx context.Context, filter, update bson.M) error {
	if _, err := o.coll.UpdateMany(ctx, filter, bson.M{"$set": update}); err != nil {
		return fmt.Errorf("failed to update documents: %w", err)
	}
	return nil
}

// DeleteMany removes every document matching filter.
func (o *Ops) DeleteMany(ctx context.Context, filter bson.M) error {
	if _, err := o.coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Find returns every document matching filter.
func (o *Ops) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	cursor, err := o.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}
	return results, nil
}
