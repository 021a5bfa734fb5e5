package model

import "time"

// ListingMissingReport records a claimer who flagged a pickup as a no-show.
// The listing stays hidden from that reporter's feed for as long as it exists.
type ListingMissingReport struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ListingID   string    `gorm:"column:listing_id;size:36;not null;uniqueIndex:uk_missing_listing_reporter"`
	ReporterUID string    `gorm:"column:reporter_uid;size:128;not null;uniqueIndex:uk_missing_listing_reporter"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (ListingMissingReport) TableName() string {
	return "listing_missing_reports"
}
