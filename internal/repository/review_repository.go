package repository

import (
	"context"

	"github.com/shinyyama/goodfinds-backend/internal/model"
	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, r *model.Review) error
	ListByPoster(ctx context.Context, posterUID string) ([]model.Review, error)
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, rev *model.Review) error {
	return r.db.WithContext(ctx).Create(rev).Error
}

func (r *reviewRepository) ListByPoster(ctx context.Context, posterUID string) ([]model.Review, error) {
	var list []model.Review
	if err := r.db.WithContext(ctx).
		Where("poster_uid = ?", posterUID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
