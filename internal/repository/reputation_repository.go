package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/goodfinds-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReputationRepository interface {
	AddRating(ctx context.Context, uid string, rating int) error
	Get(ctx context.Context, uid string) (*model.UserReputation, error)
}

type reputationRepository struct {
	db *gorm.DB
}

func NewReputationRepository(db *gorm.DB) ReputationRepository {
	return &reputationRepository{db: db}
}

// AddRating lazily creates the aggregate row and folds one rating into it with a single
// arithmetic update, so concurrent folds for the same user serialize on the row.
func (r *reputationRepository) AddRating(ctx context.Context, uid string, rating int) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserReputation{UserUID: uid}).Error; err != nil {
		return err
	}
	res := db.Model(&model.UserReputation{}).
		Where("user_uid = ?", uid).
		Updates(map[string]interface{}{
			"rating_sum":   gorm.Expr("rating_sum + ?", rating),
			"review_count": gorm.Expr("review_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Get returns a zero aggregate for users that never received a review.
func (r *reputationRepository) Get(ctx context.Context, uid string) (*model.UserReputation, error) {
	var rep model.UserReputation
	err := r.db.WithContext(ctx).Where("user_uid = ?", uid).First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.UserReputation{UserUID: uid}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
