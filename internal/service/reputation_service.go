package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shinyyama/goodfinds-backend/internal/cache"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
)

const (
	MinRating        = 1
	MaxRating        = 5
	maxCommentLength = 1000
)

// Reputation is the public view of a user's aggregate as a poster.
type Reputation struct {
	UserUID     string
	Reputation  float64
	ReviewCount int64
	// Display is Reputation rounded to one decimal place.
	Display string
}

type ReputationService interface {
	// RecordReview stores review and folds its rating into the poster's aggregate using tx.
	// It is only called from pickup confirmation, once per (reviewer, listing).
	RecordReview(ctx context.Context, tx repository.Store, review *model.Review) error
	Get(ctx context.Context, uid string) (*Reputation, error)
	ListReviewsForPoster(ctx context.Context, posterUID string) ([]model.Review, error)
	// Refresh re-reads uid's aggregate and caches it. Call it after the fold commits.
	Refresh(ctx context.Context, uid string)
}

type reputationService struct {
	store repository.Store
	cache cache.ReputationCache
}

func NewReputationService(store repository.Store, c cache.ReputationCache) ReputationService {
	if c == nil {
		c = cache.NewNoopReputationCache()
	}
	return &reputationService{store: store, cache: c}
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return invalidInput("rating must be an integer between %d and %d", MinRating, MaxRating)
	}
	return nil
}

func (s *reputationService) RecordReview(ctx context.Context, tx repository.Store, review *model.Review) error {
	if review == nil {
		return invalidInput("review is required")
	}
	if err := ValidateRating(review.Rating); err != nil {
		return err
	}
	if review.PosterUID == "" || review.ReviewerUID == "" || review.PostID == "" {
		return invalidInput("review must name reviewer, poster and post")
	}
	if review.PosterUID == review.ReviewerUID {
		return invalidInput("users cannot review themselves")
	}
	if review.Comment != nil {
		c := strings.TrimSpace(*review.Comment)
		if len(c) > maxCommentLength {
			return invalidInput("comment must be at most %d characters", maxCommentLength)
		}
		if c == "" {
			review.Comment = nil
		} else {
			review.Comment = &c
		}
	}
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if err := tx.Reviews().Create(ctx, review); err != nil {
		return err
	}
	return tx.Reputations().AddRating(ctx, review.PosterUID, review.Rating)
}

func (s *reputationService) Get(ctx context.Context, uid string) (*Reputation, error) {
	if uid == "" {
		return nil, invalidInput("user id is required")
	}
	rep, ok, err := s.cache.Get(ctx, uid)
	if err != nil {
		logging.LogError("service", "reputationService.Get", "cache read", uid, err)
	}
	if !ok {
		rep, err = s.store.Reputations().Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, rep); err != nil {
			logging.LogError("service", "reputationService.Get", "cache write", uid, err)
		}
	}
	return toReputation(rep), nil
}

func toReputation(rep *model.UserReputation) *Reputation {
	mean := rep.Mean()
	return &Reputation{
		UserUID:     rep.UserUID,
		Reputation:  mean.InexactFloat64(),
		ReviewCount: rep.ReviewCount,
		Display:     mean.StringFixed(1),
	}
}

func (s *reputationService) ListReviewsForPoster(ctx context.Context, posterUID string) ([]model.Review, error) {
	if posterUID == "" {
		return nil, invalidInput("poster id is required")
	}
	return s.store.Reviews().ListByPoster(ctx, posterUID)
}

func (s *reputationService) Refresh(ctx context.Context, uid string) {
	rep, err := s.store.Reputations().Get(ctx, uid)
	if err == nil {
		err = s.cache.Set(ctx, rep)
	}
	if err == nil {
		return
	}
	logging.LogError("service", "reputationService.Refresh", "cache refresh", uid, err)
	if err := s.cache.Delete(ctx, uid); err != nil {
		logging.LogError("service", "reputationService.Refresh", "cache delete", uid, err)
	}
}
