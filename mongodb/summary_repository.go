package mongodb

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/presence/domain"
)

// DailySummaryRepositoryMongo implements domain.DailySummaryRepository.
// Summaries are written by an out-of-band rollup job; this repository only
// reads them, and callers fall back to the daily_users scan when the
// collection is empty.
type DailySummaryRepositoryMongo struct {
	collection *mongo.Collection
}

// NewDailySummaryRepositoryMongo creates the repository and ensures its
// index.
func NewDailySummaryRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.DailySummaryRepository, error) {
	repo := &DailySummaryRepositoryMongo{
		collection: db.Collection(DailySummaryCollection),
	}

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "day", Value: -1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn().Err(err).Msg("Issue creating index for daily_summary collection (might already exist)")
	}

	return repo, nil
}

// RecentSummaries returns up to limit summaries, most recent day first. An
// empty result signals the caller to use the fallback path.
func (r *DailySummaryRepositoryMongo) RecentSummaries(ctx context.Context, limit int) ([]*domain.DailySummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "day", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Error().Err(err).Msg("Error listing daily summaries from MongoDB")
		return nil, err
	}
	defer cursor.Close(ctx)

	var summaries []*domain.DailySummary
	if err := cursor.All(ctx, &summaries); err != nil {
		log.Error().Err(err).Msg("Error decoding daily summaries from MongoDB")
		return nil, err
	}
	return summaries, nil
}

var _ domain.DailySummaryRepository = (*DailySummaryRepositoryMongo)(nil)
