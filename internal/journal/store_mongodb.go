package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"tmphost/internal/storage"
)

type mongoRecorder struct {
	collection *mongo.Collection
	storage    storage.Storage
}

func newMongoRecorder(st storage.Storage) (*mongoRecorder, error) {
	database, ok := st.MongoDatabase().(*mongo.Database)
	if !ok || database == nil {
		return nil, fmt.Errorf("mongodb database handle is required")
	}

	collection := database.Collection("journal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "identity", Value: 1}}},
		{Keys: bson.D{{Key: "event", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		// Indexes may already exist; recording still works without them.
		slog.Warn("failed to create some journal indexes", "error", err)
	}

	return &mongoRecorder{collection: collection, storage: st}, nil
}

func (r *mongoRecorder) Record(ctx context.Context, e *Entry) error {
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

func (r *mongoRecorder) Close() error {
	return r.storage.Close()
}
