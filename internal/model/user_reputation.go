package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserReputation stores the exact running sum and count of ratings a user received as a poster.
type UserReputation struct {
	UserUID     string    `gorm:"column:user_uid;primaryKey;size:128"`
	RatingSum   int64     `gorm:"column:rating_sum;not null;default:0"`
	ReviewCount int64     `gorm:"column:review_count;not null;default:0"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (UserReputation) TableName() string {
	return "user_reputations"
}

// Mean is the exact average rating; zero when there are no reviews.
func (u UserReputation) Mean() decimal.Decimal {
	if u.ReviewCount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(u.RatingSum).Div(decimal.NewFromInt(u.ReviewCount))
}
