package model

import "time"

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusClaimed   ListingStatus = "claimed"
	// ListingStatusRemoved is never stored; removed listings are deleted.
	ListingStatusRemoved ListingStatus = "removed"
)

type Listing struct {
	ID             string                 `gorm:"primaryKey;size:36"`
	OwnerUID       string                 `gorm:"column:owner_uid;size:128;index;not null"`
	Title          string                 `gorm:"size:120;not null"`
	Description    string                 `gorm:"type:text"`
	Category       string                 `gorm:"size:64;index"`
	Condition      string                 `gorm:"column:item_condition;size:32;not null"`
	Location       string                 `gorm:"size:255;not null"`
	Status         ListingStatus          `gorm:"size:16;index;not null"`
	ClaimedBy      *string                `gorm:"column:claimed_by;size:128;index"`
	Images         []ListingImage         `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	MissingReports []ListingMissingReport `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time              `gorm:"autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}

// ImageURLs returns the image references in display order.
func (l *Listing) ImageURLs() []string {
	urls := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		urls = append(urls, img.ImageURL)
	}
	return urls
}

func (l *Listing) MissingReporters() []string {
	uids := make([]string, 0, len(l.MissingReports))
	for _, r := range l.MissingReports {
		uids = append(uids, r.ReporterUID)
	}
	return uids
}

func (l *Listing) ReportedMissingBy(uid string) bool {
	for _, r := range l.MissingReports {
		if r.ReporterUID == uid {
			return true
		}
	}
	return false
}

func (l *Listing) IsClaimedBy(uid string) bool {
	return l.ClaimedBy != nil && *l.ClaimedBy == uid
}
