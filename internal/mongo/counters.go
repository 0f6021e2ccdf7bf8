package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"canteen/internal/repository"
)

type counterDocument struct {
	Batch string `bson:"_id"`
	Value int64  `bson:"value"`
}

// CounterRepo один документ на партию: {_id: batch, value: N}
type CounterRepo struct {
	collection *mongo.Collection
}

func NewCounterRepo(db *mongo.Database) *CounterRepo {
	return &CounterRepo{collection: db.Collection(countersCollection)}
}

var _ repository.CounterRepository = (*CounterRepo)(nil)

func (r *CounterRepo) Get(ctx context.Context, batch string) (int64, error) {
	var doc counterDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": batch}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cannot read counter: %w", mapWriteError(err))
	}
	return doc.Value, nil
}

func (r *CounterRepo) Set(ctx context.Context, batch string, value int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": batch},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cannot write counter: %w", mapWriteError(err))
	}
	return nil
}
