package model

import "time"

type ListingImage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ListingID string    `gorm:"column:listing_id;size:36;not null;index:idx_listing_images_listing_id"`
	Position  int       `gorm:"column:position;not null;default:0"`
	ImageURL  string    `gorm:"column:image_url;size:512;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ListingImage) TableName() string {
	return "listing_images"
}
