package eventlog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// MongoStore keeps one document per record, replaced on the (thing_name, timestamp) key.
type MongoStore struct {
	// client is set when the store owns the connection.
	client *mongo.Client
	// collection holds the records.
	collection *mongo.Collection
}

// NewMongoStore wraps an existing collection.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{
		collection: collection,
	}
}

// OpenMongo connects to MongoDB and ensures the unique key index.
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	store := NewMongoStore(client.Database(database).Collection(collection))
	store.client = client

	if err = store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)

		return nil, err
	}

	return store, nil
}

// EnsureIndexes creates the unique index on the record key.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: gas.DeviceIDAttribute, Value: 1},
			{Key: gas.TimestampAttribute, Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create event index: %w", err)
	}

	return nil
}

// Append replaces the document at the record key, inserting it when absent.
func (s *MongoStore) Append(ctx context.Context, record *gas.EventRecord) error {
	_, err := s.collection.ReplaceOne(ctx,
		keyFilter(record.DeviceID, record.Timestamp),
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace event record: %w", err)
	}

	return nil
}

// Get reads the record at (deviceID, timestamp).
func (s *MongoStore) Get(ctx context.Context, deviceID string, timestamp int64) (*gas.EventRecord, error) {
	var record gas.EventRecord

	err := s.collection.FindOne(ctx, keyFilter(deviceID, timestamp)).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(deviceID, timestamp)
		}

		return nil, fmt.Errorf("find event record: %w", err)
	}

	return &record, nil
}

// Close disconnects the client when the store owns it.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	return s.client.Disconnect(ctx)
}

// keyFilter renders the record key document.
func keyFilter(deviceID string, timestamp int64) bson.D {
	return bson.D{
		{Key: gas.DeviceIDAttribute, Value: deviceID},
		{Key: gas.TimestampAttribute, Value: timestamp},
	}
}
