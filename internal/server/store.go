package server

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lattelab/reliamap/pkg/errors"
	"github.com/lattelab/reliamap/pkg/relmap"
)

// Snapshot is a stored reliability map payload with provenance.
type Snapshot struct {
	ID        string      `json:"id" bson:"_id"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
	Map       *relmap.Map `json:"map" bson:"map"`
}

// SnapshotStore persists reliability map snapshots.
type SnapshotStore interface {
	// Save stores a snapshot.
	Save(ctx context.Context, s Snapshot) error

	// Latest returns the most recently created snapshot.
	Latest(ctx context.Context) (*Snapshot, error)

	// Get returns a snapshot by id.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// List returns up to limit snapshots, newest first.
	List(ctx context.Context, limit int) ([]Snapshot, error)

	// Close releases store resources.
	Close(ctx context.Context) error
}

// ErrNoSnapshots is returned by Latest when the store is empty.
var ErrNoSnapshots = errors.New(errors.ErrCodeSnapshotNotFound, "no snapshots stored")

// =============================================================================
// In-memory store
// =============================================================================

// MemoryStore is an in-process SnapshotStore used when MongoDB is not
// configured.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a snapshot in memory, newest first.
func (s *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append([]Snapshot{snap}, s.snapshots...)
	return nil
}

// Latest returns the newest snapshot.
func (s *MemoryStore) Latest(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return nil, ErrNoSnapshots
	}
	snap := s.snapshots[0]
	return &snap, nil
}

// Get returns a snapshot by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snapshots {
		if snap.ID == id {
			snap := snap
			return &snap, nil
		}
	}
	return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %q not found", id)
}

// List returns up to limit snapshots, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.snapshots)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Snapshot, n)
	copy(out, s.snapshots[:n])
	return out, nil
}

// Close does nothing for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

var _ SnapshotStore = (*MemoryStore)(nil)

// =============================================================================
// MongoDB store
// =============================================================================

const snapshotCollection = "snapshots"

// MongoStore is a SnapshotStore backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB at uri and verifies the connection
// with a ping.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongodb")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(snapshotCollection),
	}, nil
}

// Save stores a snapshot, replacing any existing document with the same id.
func (s *MongoStore) Save(ctx context.Context, snap Snapshot) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": snap.ID}, snap, opts)
	return err
}

// Latest returns the newest snapshot by creation time.
func (s *MongoStore) Latest(ctx context.Context) (*Snapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var snap Snapshot
	err := s.coll.FindOne(ctx, bson.M{}, opts).Decode(&snap)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoSnapshots
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get returns a snapshot by id.
func (s *MongoStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&snap)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns up to limit snapshots, newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Snapshot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var snapshots []Snapshot
	if err := cur.All(ctx, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Close disconnects the MongoDB client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ SnapshotStore = (*MongoStore)(nil)
