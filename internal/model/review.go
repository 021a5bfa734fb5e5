package model

import "time"

type Review struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ReviewerUID string    `gorm:"column:reviewer_uid;size:128;not null;uniqueIndex:uk_reviews_reviewer_post"`
	PosterUID   string    `gorm:"column:poster_uid;size:128;not null;index"`
	PostID      string    `gorm:"column:post_id;size:36;not null;uniqueIndex:uk_reviews_reviewer_post"`
	Rating      int       `gorm:"column:rating;not null"`
	Comment     *string   `gorm:"column:comment;type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Review) TableName() string {
	return "reviews"
}
