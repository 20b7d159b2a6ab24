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

// SessionRepositoryMongo implements domain.SessionRepository using MongoDB.
type SessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSessionRepositoryMongo creates the repository and ensures its indexes.
func NewSessionRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.SessionRepository, error) {
	repo := &SessionRepositoryMongo{
		collection: db.Collection(SessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "client_id", Value: 1}},
		},
		{
			// One session per connection identifier within a process
			// lifetime; the unique index makes a re-finalize a no-op
			// at the store level.
			Keys:    bson.D{{Key: "conn_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "start_at", Value: 1}},
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for sessions collection (might already exist)")
	} else {
		log.Info().Msg("Indexes for sessions collection ensured.")
	}

	return repo, nil
}

// StoreSession inserts one finalized session record. A duplicate conn_id
// means the session was already recorded and is reported as an error for
// the caller to log.
func (r *SessionRepositoryMongo) StoreSession(ctx context.Context, record *domain.SessionRecord) error {
	if record.ID == "" {
		record.ID = NewObjectID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("session for this connection already recorded")
		}
		log.Error().Err(err).Msg("Error storing session record in MongoDB")
		return err
	}
	return nil
}

// AggregateDurations computes average/total/count over session durations
// matching the filter. No matching records yields all-zero stats, not an
// error.
func (r *SessionRepositoryMongo) AggregateDurations(ctx context.Context, filter domain.SessionFilter) (domain.DurationStats, error) {
	match := bson.M{}
	if filter.ClientID != "" {
		match["client_id"] = filter.ClientID
	}
	if filter.Scope == domain.SessionScopeToday && filter.Day != "" {
		dayStart, err := time.Parse(domain.DayLayout, filter.Day)
		if err != nil {
			return domain.DurationStats{}, err
		}
		match["start_at"] = bson.M{
			"$gte": dayStart,
			"$lt":  dayStart.Add(24 * time.Hour),
		}
	}

	pipeline := mongo.Pipeline{}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":      nil,
		"avg_ms":   bson.M{"$avg": "$duration_ms"},
		"total_ms": bson.M{"$sum": "$duration_ms"},
		"count":    bson.M{"$sum": 1},
	}}})

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		log.Error().Err(err).Msg("Error aggregating session durations from MongoDB")
		return domain.DurationStats{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		AvgMs   float64 `bson:"avg_ms"`
		TotalMs int64   `bson:"total_ms"`
		Count   int64   `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		log.Error().Err(err).Msg("Error decoding session duration aggregation")
		return domain.DurationStats{}, err
	}
	if len(rows) == 0 {
		return domain.DurationStats{}, nil
	}
	return domain.DurationStats{
		AverageMs: rows[0].AvgMs,
		TotalMs:   rows[0].TotalMs,
		Count:     rows[0].Count,
	}, nil
}

var _ domain.SessionRepository = (*SessionRepositoryMongo)(nil)
