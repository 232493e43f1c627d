package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollectionDoc is one collection snapshot stored as a single document
type MongoCollectionDoc struct {
	Name          string    `bson:"_id"`
	SchemaVersion int       `bson:"schemaVersion"`
	Records       []bson.D  `bson:"records"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

// MongoMedium keeps each collection in one document of the "collections" collection.
// ReplaceOne on a single document is atomic.
type MongoMedium struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Medium = (*MongoMedium)(nil)

// NewMongoMedium uses db.Collection("collections"); client is disconnected on Close
func NewMongoMedium(client *mongo.Client, db *mongo.Database) *MongoMedium {
	return &MongoMedium{
		client:     client,
		collection: db.Collection("collections"),
	}
}

func (m *MongoMedium) Load(ctx context.Context, name string) (*Snapshot, error) {
	var doc MongoCollectionDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return doc.toSnapshot()
}

func (m *MongoMedium) Replace(ctx context.Context, name string, snapshot *Snapshot) error {
	doc, err := mongoDocFromSnapshot(name, snapshot)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now()

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": name}, doc, opts); err != nil {
		return fmt.Errorf("failed to save collection %s: %w", name, err)
	}
	return nil
}

func (m *MongoMedium) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (d *MongoCollectionDoc) toSnapshot() (*Snapshot, error) {
	snapshot := &Snapshot{SchemaVersion: d.SchemaVersion, Records: make([]json.RawMessage, 0, len(d.Records))}
	for i, record := range d.Records {
		data, err := bson.MarshalExtJSON(record, false, false)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s record %d: %w", d.Name, i, err)
		}
		snapshot.Records = append(snapshot.Records, data)
	}
	return snapshot, nil
}

func mongoDocFromSnapshot(name string, snapshot *Snapshot) (*MongoCollectionDoc, error) {
	doc := &MongoCollectionDoc{
		Name:          name,
		SchemaVersion: snapshot.SchemaVersion,
		Records:       make([]bson.D, 0, len(snapshot.Records)),
	}
	for i, raw := range snapshot.Records {
		var record bson.D
		if err := bson.UnmarshalExtJSON(raw, false, &record); err != nil {
			return nil, fmt.Errorf("failed to convert %s record %d: %w", name, i, err)
		}
		doc.Records = append(doc.Records, record)
	}
	return doc, nil
}
