package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/presence/domain"
)

// ErrInvalidFeedback reports a submission that matches neither accepted
// payload shape.
var ErrInvalidFeedback = errors.New("feedback requires name, phone and feedback, or id and feedback")

const defaultFeedbackListLimit = 100

// FeedbackSubmission is the wire payload for a feedback POST. Two shapes
// are accepted: the current name/phone/feedback form and the older
// id/feedback form.
type FeedbackSubmission struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	ID        string `json:"id"`
	Feedback  string `json:"feedback"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"createdAt"`
}

// FeedbackService validates and stores feedback submissions. Out of the
// presence core; plain CRUD over the feedback repository.
type FeedbackService struct {
	feedback domain.FeedbackRepository // nil when no store is configured
	now      func() time.Time
}

// NewFeedbackService creates the service. A nil repository accepts
// submissions but drops them with a warning, mirroring the degraded-write
// policy of the rest of the system.
func NewFeedbackService(feedback domain.FeedbackRepository) *FeedbackService {
	return &FeedbackService{
		feedback: feedback,
		now:      time.Now,
	}
}

// Submit validates the payload shape and stores the submission. Returns the
// stored record.
func (s *FeedbackService) Submit(ctx context.Context, sub *FeedbackSubmission) (*domain.Feedback, error) {
	var fb *domain.Feedback
	switch {
	case sub.Name != "" && sub.Phone != "" && sub.Feedback != "":
		fb = &domain.Feedback{
			Name:      sub.Name,
			Phone:     sub.Phone,
			Message:   sub.Feedback,
			Timestamp: sub.Timestamp,
		}
	case sub.ID != "" && sub.Feedback != "":
		fb = &domain.Feedback{
			ClientID:  sub.ID,
			Message:   sub.Feedback,
			Timestamp: sub.Timestamp,
		}
	default:
		return nil, ErrInvalidFeedback
	}

	if fb.Timestamp == "" {
		fb.Timestamp = s.now().UTC().Format(time.RFC3339)
	}
	fb.CreatedAt = s.now().UTC()

	if s.feedback == nil {
		log.Warn().Msg("Feedback store not available, submission not persisted")
		return fb, nil
	}
	if err := s.feedback.StoreFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// List returns recent submissions, newest first, along with the total count.
func (s *FeedbackService) List(ctx context.Context, limit int) ([]*domain.Feedback, int64, error) {
	if s.feedback == nil {
		return nil, 0, ErrStoreUnavailable
	}
	if limit <= 0 {
		limit = defaultFeedbackListLimit
	}
	items, err := s.feedback.ListFeedback(ctx, limit)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.feedback.CountFeedback(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}
