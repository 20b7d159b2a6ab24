package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/presence/domain"
)

// DailyUserRepositoryMongo implements domain.DailyUserRepository using
// MongoDB. Uniqueness per (client_id, day) is enforced by a unique compound
// index, so concurrent inserts for the same pair resolve to exactly one
// stored record.
type DailyUserRepositoryMongo struct {
	collection *mongo.Collection
}

// NewDailyUserRepositoryMongo creates the repository and ensures its
// indexes.
func NewDailyUserRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.DailyUserRepository, error) {
	repo := &DailyUserRepositoryMongo{
		collection: db.Collection(DailyUsersCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "day", Value: 1}},
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for daily_users collection (might already exist)")
	} else {
		log.Info().Msg("Indexes for daily_users collection ensured.")
	}

	return repo, nil
}

// RecordIfNew inserts the (clientID, day) fact with insert-if-not-exists
// semantics. $setOnInsert keeps the original created_at when the pair
// already exists; losing the duplicate-key race is not an error.
func (r *DailyUserRepositoryMongo) RecordIfNew(ctx context.Context, clientID, day string) (bool, error) {
	filter := bson.M{"client_id": clientID, "day": day}
	update := bson.M{"$setOnInsert": bson.M{"created_at": time.Now().UTC()}}

	res, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("upserting daily user: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// CountByDay returns the number of distinct identities recorded for day.
func (r *DailyUserRepositoryMongo) CountByDay(ctx context.Context, day string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"day": day})
	if err != nil {
		log.Error().Err(err).Str("day", day).Msg("Error counting daily users from MongoDB")
		return 0, err
	}
	return count, nil
}

// CountDistinctClientIDs returns the all-time number of distinct identities.
func (r *DailyUserRepositoryMongo) CountDistinctClientIDs(ctx context.Context) (int64, error) {
	res := r.collection.Distinct(ctx, "client_id", bson.M{})
	var ids []string
	if err := res.Decode(&ids); err != nil {
		log.Error().Err(err).Msg("Error listing distinct client IDs from MongoDB")
		return 0, err
	}
	return int64(len(ids)), nil
}

// Days returns every calendar day with at least one daily-user record.
func (r *DailyUserRepositoryMongo) Days(ctx context.Context) ([]string, error) {
	res := r.collection.Distinct(ctx, "day", bson.M{})
	var days []string
	if err := res.Decode(&days); err != nil {
		log.Error().Err(err).Msg("Error listing daily-user days from MongoDB")
		return nil, err
	}
	return days, nil
}

var _ domain.DailyUserRepository = (*DailyUserRepositoryMongo)(nil)
