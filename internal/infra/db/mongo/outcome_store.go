package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "spothire/internal/domain/booking"
)

// OutcomeStore persists processed payment-outcome keys behind a unique
// index, so exactly one delivery of an outcome wins under at-least-once
// semantics. Insert-then-check keeps Record a single round trip.
type OutcomeStore struct {
	col *mongo.Collection
}

func NewOutcomeStore(db *mongo.Database) *OutcomeStore {
	col := db.Collection("app_payment_outcomes")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &OutcomeStore{col: col}
}

func (s *OutcomeStore) Record(ctx context.Context, key string, receivedAt time.Time) (bool, error) {
	doc := bson.M{"key": key, "received_at": receivedAt.UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

var _ domainbooking.ProcessedOutcomes = (*OutcomeStore)(nil)
