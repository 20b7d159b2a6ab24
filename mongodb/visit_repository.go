package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/presence/domain"
)

const visitsCounterID = "visits"

// VisitRepositoryMongo implements domain.VisitRepository over two
// collections: a per-day counter in daily_visits and a lifetime scalar in
// counters.
type VisitRepositoryMongo struct {
	dailyVisits *mongo.Collection
	counters    *mongo.Collection
}

// NewVisitRepositoryMongo creates the repository and ensures its indexes.
func NewVisitRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.VisitRepository, error) {
	repo := &VisitRepositoryMongo{
		dailyVisits: db.Collection(DailyVisitsCollection),
		counters:    db.Collection(CountersCollection),
	}

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "day", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := repo.dailyVisits.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn().Err(err).Msg("Issue creating index for daily_visits collection (might already exist)")
	}

	return repo, nil
}

// IncrementVisit bumps the lifetime visits total and the given day's count.
// Both documents are created on first use.
func (r *VisitRepositoryMongo) IncrementVisit(ctx context.Context, day string) error {
	now := time.Now().UTC()

	_, err := r.counters.UpdateOne(ctx,
		bson.M{"_id": visitsCounterID},
		bson.M{
			"$inc":         bson.M{"total": 1},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to increment lifetime visit counter")
		return err
	}

	_, err = r.dailyVisits.UpdateOne(ctx,
		bson.M{"day": day},
		bson.M{
			"$inc":         bson.M{"count": 1},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		log.Warn().Err(err).Str("day", day).Msg("Failed to increment daily visit counter")
		return err
	}
	return nil
}

// CountByDay returns the visit count recorded for day, zero when the day
// has no document.
func (r *VisitRepositoryMongo) CountByDay(ctx context.Context, day string) (int64, error) {
	var doc struct {
		Count int64 `bson:"count"`
	}
	err := r.dailyVisits.FindOne(ctx, bson.M{"day": day}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		log.Error().Err(err).Str("day", day).Msg("Error reading daily visit count from MongoDB")
		return 0, err
	}
	return doc.Count, nil
}

// Days returns every day with a visit counter.
func (r *VisitRepositoryMongo) Days(ctx context.Context) ([]string, error) {
	res := r.dailyVisits.Distinct(ctx, "day", bson.M{})
	var days []string
	if err := res.Decode(&days); err != nil {
		log.Error().Err(err).Msg("Error listing visit days from MongoDB")
		return nil, err
	}
	return days, nil
}

// TotalVisits returns the lifetime visit total, zero when never incremented.
func (r *VisitRepositoryMongo) TotalVisits(ctx context.Context) (int64, error) {
	var doc struct {
		Total int64 `bson:"total"`
	}
	err := r.counters.FindOne(ctx, bson.M{"_id": visitsCounterID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		log.Error().Err(err).Msg("Error reading lifetime visit counter from MongoDB")
		return 0, err
	}
	return doc.Total, nil
}

var _ domain.VisitRepository = (*VisitRepositoryMongo)(nil)
