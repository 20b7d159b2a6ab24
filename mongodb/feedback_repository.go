package mongodb

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/presence/domain"
)

// FeedbackRepositoryMongo implements domain.FeedbackRepository using
// MongoDB.
type FeedbackRepositoryMongo struct {
	collection *mongo.Collection
}

// NewFeedbackRepositoryMongo creates the repository and ensures its index.
func NewFeedbackRepositoryMongo(ctx context.Context, db *mongo.Database) (domain.FeedbackRepository, error) {
	repo := &FeedbackRepositoryMongo{
		collection: db.Collection(FeedbacksCollection),
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn().Err(err).Msg("Issue creating index for feedbacks collection (might already exist)")
	}

	return repo, nil
}

// StoreFeedback inserts one feedback submission.
func (r *FeedbackRepositoryMongo) StoreFeedback(ctx context.Context, fb *domain.Feedback) error {
	if fb.ID == "" {
		fb.ID = NewObjectID()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, fb); err != nil {
		log.Error().Err(err).Msg("Error storing feedback in MongoDB")
		return err
	}
	return nil
}

// ListFeedback returns up to limit submissions, newest first.
func (r *FeedbackRepositoryMongo) ListFeedback(ctx context.Context, limit int) ([]*domain.Feedback, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		log.Error().Err(err).Msg("Error listing feedback from MongoDB")
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []*domain.Feedback
	if err := cursor.All(ctx, &items); err != nil {
		log.Error().Err(err).Msg("Error decoding feedback from MongoDB")
		return nil, err
	}
	return items, nil
}

// CountFeedback returns the total number of stored submissions.
func (r *FeedbackRepositoryMongo) CountFeedback(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Error counting feedback in MongoDB")
		return 0, err
	}
	return count, nil
}

var _ domain.FeedbackRepository = (*FeedbackRepositoryMongo)(nil)
