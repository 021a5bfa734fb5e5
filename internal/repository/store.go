package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one connection (or one transaction).
type Store interface {
	Listings() ListingRepository
	Reviews() ReviewRepository
	Reputations() ReputationRepository
	Categories() CategoryRepository
	// Transaction runs fn against repositories bound to a single database transaction.
	// Any error returned by fn rolls the whole transaction back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db          *gorm.DB
	listings    ListingRepository
	reviews     ReviewRepository
	reputations ReputationRepository
	categories  CategoryRepository
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:          db,
		listings:    NewListingRepository(db),
		reviews:     NewReviewRepository(db),
		reputations: NewReputationRepository(db),
		categories:  NewCategoryRepository(db),
	}
}

func (s *gormStore) Listings() ListingRepository       { return s.listings }
func (s *gormStore) Reviews() ReviewRepository         { return s.reviews }
func (s *gormStore) Reputations() ReputationRepository { return s.reputations }
func (s *gormStore) Categories() CategoryRepository    { return s.categories }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
