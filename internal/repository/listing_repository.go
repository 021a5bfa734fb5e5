package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/goodfinds-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

type ListingFilter struct {
	Category          string
	Condition         string
	Location          string
	ExcludeReportedBy string
	Limit             int
	Offset            int
}

type ListingRepository interface {
	Create(ctx context.Context, l *model.Listing) error
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	ListAvailable(ctx context.Context, f ListingFilter) ([]model.Listing, int64, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.Listing, error)
	ListClaimedBy(ctx context.Context, uid string) ([]model.Listing, error)
	Count(ctx context.Context) (int64, error)
	ClaimIfAvailable(ctx context.Context, id, claimerUID string) (int64, error)
	ReleaseClaim(ctx context.Context, id, claimerUID string) (int64, error)
	AddMissingReport(ctx context.Context, id, reporterUID string) error
	UpdateIfAvailable(ctx context.Context, id, ownerUID string, fields map[string]interface{}) (int64, error)
	ReplaceImages(ctx context.Context, id string, urls []string) error
	DeleteIfAvailable(ctx context.Context, id, ownerUID string) (int64, error)
	DeleteIfClaimed(ctx context.Context, id, claimerUID string) (int64, error)
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("MissingReports")
}

func (r *listingRepository) Create(ctx context.Context, l *model.Listing) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *listingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var l model.Listing
	if err := r.withDetails(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) ListAvailable(ctx context.Context, f ListingFilter) ([]model.Listing, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("listings.status = ?", model.ListingStatusAvailable)
		if f.Category != "" {
			db = db.Where("LOWER(listings.category) = ?", strings.ToLower(f.Category))
		}
		if f.Condition != "" {
			db = db.Where("LOWER(listings.item_condition) = ?", strings.ToLower(f.Condition))
		}
		if f.Location != "" {
			db = db.Where("LOWER(listings.location) LIKE ?", "%"+strings.ToLower(f.Location)+"%")
		}
		if f.ExcludeReportedBy != "" {
			db = db.Where(
				"NOT EXISTS (SELECT 1 FROM listing_missing_reports r WHERE r.listing_id = listings.id AND r.reporter_uid = ?)",
				f.ExcludeReportedBy,
			)
		}
		return db
	}
	var (
		list  []model.Listing
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&model.Listing{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.withDetails(ctx).
		Scopes(scope).
		Order("listings.created_at DESC, listings.id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *listingRepository) ListByOwner(ctx context.Context, ownerUID string) ([]model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Listing
	if err := r.withDetails(ctx).
		Where("owner_uid = ?", ownerUID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) ListClaimedBy(ctx context.Context, uid string) ([]model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Listing
	if err := r.withDetails(ctx).
		Where("status = ? AND claimed_by = ?", model.ListingStatusClaimed, uid).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *listingRepository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.Listing{}).Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// ClaimIfAvailable flips an available listing to claimed. Zero rows means another writer got there first.
func (r *listingRepository) ClaimIfAvailable(ctx context.Context, id, claimerUID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND status = ? AND owner_uid <> ?", id, model.ListingStatusAvailable, claimerUID).
		Updates(map[string]interface{}{
			"status":     model.ListingStatusClaimed,
			"claimed_by": claimerUID,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ReleaseClaim reopens a listing that is still claimed by claimerUID.
func (r *listingRepository) ReleaseClaim(ctx context.Context, id, claimerUID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, model.ListingStatusClaimed, claimerUID).
		Updates(map[string]interface{}{
			"status":     model.ListingStatusAvailable,
			"claimed_by": nil,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *listingRepository) AddMissingReport(ctx context.Context, id, reporterUID string) error {
	return r.db.WithContext(ctx).Create(&model.ListingMissingReport{
		ListingID:   id,
		ReporterUID: reporterUID,
	}).Error
}

func (r *listingRepository) UpdateIfAvailable(ctx context.Context, id, ownerUID string, fields map[string]interface{}) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND owner_uid = ? AND status = ?", id, ownerUID, model.ListingStatusAvailable).
		Updates(fields)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *listingRepository) ReplaceImages(ctx context.Context, id string, urls []string) error {
	if err := r.db.WithContext(ctx).Where("listing_id = ?", id).Delete(&model.ListingImage{}).Error; err != nil {
		return err
	}
	if len(urls) == 0 {
		return nil
	}
	imgs := make([]model.ListingImage, 0, len(urls))
	for i, u := range urls {
		imgs = append(imgs, model.ListingImage{ListingID: id, Position: i, ImageURL: u})
	}
	return r.db.WithContext(ctx).Create(&imgs).Error
}

func (r *listingRepository) DeleteIfAvailable(ctx context.Context, id, ownerUID string) (int64, error) {
	return r.deleteWhere(ctx, id, "owner_uid = ? AND status = ?", ownerUID, model.ListingStatusAvailable)
}

func (r *listingRepository) DeleteIfClaimed(ctx context.Context, id, claimerUID string) (int64, error) {
	return r.deleteWhere(ctx, id, "status = ? AND claimed_by = ?", model.ListingStatusClaimed, claimerUID)
}

// deleteWhere removes the listing only when cond still holds, then its child rows.
// Callers needing atomicity with other writes run it on a transaction-bound repository.
func (r *listingRepository) deleteWhere(ctx context.Context, id, cond string, args ...interface{}) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where(cond, args...).
		Delete(&model.Listing{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).Where("listing_id = ?", id).Delete(&model.ListingImage{}).Error; err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Where("listing_id = ?", id).Delete(&model.ListingMissingReport{}).Error; err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
