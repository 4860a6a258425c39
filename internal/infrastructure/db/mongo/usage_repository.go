package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

const usageCollection = "usage_records"

// UsageRepository is the append-only usage audit collection.
type UsageRepository struct {
	coll *mongo.Collection
}

func NewUsageRepository(db *mongo.Database) *UsageRepository {
	return &UsageRepository{coll: db.Collection(usageCollection)}
}

type usageDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	AccountID     string             `bson:"account_id"`
	Timestamp     time.Time          `bson:"timestamp"`
	PromptSummary string             `bson:"prompt_summary"`
}

// Insert persists one usage record.
func (r *UsageRepository) Insert(ctx context.Context, record *domain.UsageRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	out, err := r.coll.InsertOne(ctx, usageDocument{
		AccountID:     record.AccountID,
		Timestamp:     record.Timestamp.UTC(),
		PromptSummary: record.PromptSummary,
	})
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	if oid, ok := out.InsertedID.(primitive.ObjectID); ok {
		record.ID = oid.Hex()
	}
	return nil
}

// ListByAccount returns a page of an account's records, newest first.
func (r *UsageRepository) ListByAccount(ctx context.Context, accountID string, page, limit int) ([]*domain.UsageRecord, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"account_id": accountID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count usage: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		page = max(page, 1)
		opts.SetSkip(int64((page - 1) * limit)).SetLimit(int64(limit))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list usage: %w", err)
	}
	defer cur.Close(ctx)

	var docs []usageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode usage: %w", err)
	}

	out := make([]*domain.UsageRecord, len(docs))
	for i, d := range docs {
		out[i] = &domain.UsageRecord{
			ID:            d.ID.Hex(),
			AccountID:     d.AccountID,
			Timestamp:     d.Timestamp.UTC(),
			PromptSummary: d.PromptSummary,
		}
	}
	return out, total, nil
}

// Count returns the number of generations ever recorded.
func (r *UsageRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.coll.EstimatedDocumentCount(ctx)
}

func (r *UsageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}
