package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/goodfinds-backend/internal/lock"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
	"github.com/shinyyama/goodfinds-backend/internal/reqctx"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxImages        = 10
	maxTitleLength   = 120
	maxDescLength    = 4000
)

type ListingInput struct {
	Title       string
	Description string
	Category    string
	Condition   string
	Location    string
	Images      []string
}

// ListingPatch holds the display fields to change. Nil means unchanged; a non-nil Images
// replaces the whole image list.
type ListingPatch struct {
	Title       *string
	Description *string
	Category    *string
	Condition   *string
	Location    *string
	Images      *[]string
}

func (p ListingPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Condition == nil && p.Location == nil && p.Images == nil
}

type ListingFilter struct {
	Category  string
	Condition string
	Location  string
	Limit     int
	Offset    int
}

type ReviewInput struct {
	Rating  int
	Comment string
}

type PickupResult struct {
	ListingID string
	Status    model.ListingStatus
	Review    *model.Review
}

type ListingService interface {
	Create(ctx context.Context, ownerUID string, in ListingInput) (*model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	// ListAvailable hides listings viewerUID has reported missing. viewerUID may be empty.
	ListAvailable(ctx context.Context, viewerUID string, f ListingFilter) ([]model.Listing, int64, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.Listing, error)
	ListClaimedBy(ctx context.Context, uid string) ([]model.Listing, error)
	Claim(ctx context.Context, id, actorUID string) (*model.Listing, error)
	// ReportMissing reopens the listing for others and hides it from the reporter for good.
	ReportMissing(ctx context.Context, id, actorUID string) (*model.Listing, error)
	ConfirmPickup(ctx context.Context, id, actorUID string, review *ReviewInput) (*PickupResult, error)
	Edit(ctx context.Context, id, actorUID string, patch ListingPatch) (*model.Listing, error)
	Delete(ctx context.Context, id, actorUID string) error
}

type listingService struct {
	store      repository.Store
	reputation ReputationService
	locker     lock.Locker
}

func NewListingService(store repository.Store, reputation ReputationService, locker lock.Locker) ListingService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &listingService{store: store, reputation: reputation, locker: locker}
}

func (s *listingService) Create(ctx context.Context, ownerUID string, in ListingInput) (l *model.Listing, err error) {
	defer s.observe(ctx, "create", "", ownerUID, time.Now(), &err)
	if ownerUID == "" {
		return nil, guard(GuardUnauthenticated, "sign in to post a listing")
	}
	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}
	cond, err := cleanRequired("condition", in.Condition, 32)
	if err != nil {
		return nil, err
	}
	loc, err := cleanRequired("location", in.Location, 255)
	if err != nil {
		return nil, err
	}
	images, err := cleanImages(in.Images)
	if err != nil {
		return nil, err
	}

	l = &model.Listing{
		ID:          uuid.NewString(),
		OwnerUID:    ownerUID,
		Title:       title,
		Description: desc,
		Category:    strings.TrimSpace(in.Category),
		Condition:   cond,
		Location:    loc,
		Status:      model.ListingStatusAvailable,
	}
	for i, u := range images {
		l.Images = append(l.Images, model.ListingImage{Position: i, ImageURL: u})
	}
	if err := s.store.Listings().Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *listingService) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.find(ctx, s.store, id)
}

func (s *listingService) ListAvailable(ctx context.Context, viewerUID string, f ListingFilter) ([]model.Listing, int64, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.Listings().ListAvailable(ctx, repository.ListingFilter{
		Category:          normalizeFacet(f.Category),
		Condition:         normalizeFacet(f.Condition),
		Location:          strings.TrimSpace(f.Location),
		ExcludeReportedBy: viewerUID,
		Limit:             f.Limit,
		Offset:            f.Offset,
	})
}

// normalizeFacet treats "All" as no filter.
func normalizeFacet(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

func (s *listingService) ListByOwner(ctx context.Context, ownerUID string) ([]model.Listing, error) {
	if ownerUID == "" {
		return nil, guard(GuardUnauthenticated, "sign in to see your listings")
	}
	return s.store.Listings().ListByOwner(ctx, ownerUID)
}

func (s *listingService) ListClaimedBy(ctx context.Context, uid string) ([]model.Listing, error) {
	if uid == "" {
		return nil, guard(GuardUnauthenticated, "sign in to see your claims")
	}
	return s.store.Listings().ListClaimedBy(ctx, uid)
}

func (s *listingService) Claim(ctx context.Context, id, actorUID string) (l *model.Listing, err error) {
	defer s.observe(ctx, "claim", id, actorUID, time.Now(), &err)
	if actorUID == "" {
		return nil, guard(GuardUnauthenticated, "sign in to claim listings")
	}
	unlock, err := s.lockListing(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := s.find(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if cur.OwnerUID == actorUID {
		return nil, guard(GuardSelfClaim, "you cannot claim your own listing")
	}
	if cur.ReportedMissingBy(actorUID) {
		return nil, guard(GuardReportedMissing, "you reported this listing missing")
	}
	if cur.Status != model.ListingStatusAvailable {
		return nil, fmt.Errorf("%w: listing is no longer available", ErrConflict)
	}
	n, err := s.store.Listings().ClaimIfAvailable(ctx, id, actorUID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: listing is no longer available", ErrConflict)
	}
	return s.find(ctx, s.store, id)
}

func (s *listingService) ReportMissing(ctx context.Context, id, actorUID string) (l *model.Listing, err error) {
	defer s.observe(ctx, "report_missing", id, actorUID, time.Now(), &err)
	if actorUID == "" {
		return nil, guard(GuardUnauthenticated, "sign in to report a listing")
	}
	unlock, err := s.lockListing(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := s.find(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if cur.OwnerUID == actorUID {
		return nil, guard(GuardNotClaimer, "owners cannot report their own listing missing")
	}
	if cur.Status != model.ListingStatusClaimed || cur.ClaimedBy == nil {
		return nil, guard(GuardInvalidState, "listing is not claimed")
	}
	if !cur.IsClaimedBy(actorUID) {
		return nil, guard(GuardNotClaimer, "only the claimer can report this listing missing")
	}
	if cur.ReportedMissingBy(actorUID) {
		return nil, guard(GuardAlreadyReported, "you already reported this listing missing")
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		n, err := tx.Listings().ReleaseClaim(ctx, id, actorUID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: claim changed", ErrConflict)
		}
		return tx.Listings().AddMissingReport(ctx, id, actorUID)
	})
	if err != nil {
		return nil, txError(err)
	}
	return s.find(ctx, s.store, id)
}

func (s *listingService) ConfirmPickup(ctx context.Context, id, actorUID string, review *ReviewInput) (res *PickupResult, err error) {
	defer s.observe(ctx, "confirm_pickup", id, actorUID, time.Now(), &err)
	if actorUID == "" {
		return nil, guard(GuardUnauthenticated, "sign in to confirm pickup")
	}
	if review != nil {
		if err := ValidateRating(review.Rating); err != nil {
			return nil, err
		}
	}
	unlock, err := s.lockListing(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := s.find(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != model.ListingStatusClaimed || cur.ClaimedBy == nil {
		return nil, guard(GuardInvalidState, "listing is not claimed")
	}
	isOwner := cur.OwnerUID == actorUID
	if !isOwner && !cur.IsClaimedBy(actorUID) {
		return nil, guard(GuardNotParticipant, "only the owner or the claimer can confirm pickup")
	}
	if isOwner && review != nil {
		return nil, guard(GuardOwnerCannotRate, "owners cannot review their own listing")
	}

	claimer := *cur.ClaimedBy
	var rev *model.Review
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		n, err := tx.Listings().DeleteIfClaimed(ctx, id, claimer)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: listing is no longer claimed", ErrConflict)
		}
		if review == nil {
			return nil
		}
		r := &model.Review{
			ReviewerUID: actorUID,
			PosterUID:   cur.OwnerUID,
			PostID:      id,
			Rating:      review.Rating,
		}
		if c := strings.TrimSpace(review.Comment); c != "" {
			r.Comment = &c
		}
		if err := s.reputation.RecordReview(ctx, tx, r); err != nil {
			return err
		}
		rev = r
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	if rev != nil {
		reviewsRecorded.Inc()
		s.reputation.Refresh(ctx, cur.OwnerUID)
	}
	return &PickupResult{ListingID: id, Status: model.ListingStatusRemoved, Review: rev}, nil
}

func (s *listingService) Edit(ctx context.Context, id, actorUID string, patch ListingPatch) (l *model.Listing, err error) {
	defer s.observe(ctx, "edit", id, actorUID, time.Now(), &err)
	if actorUID == "" {
		return nil, guard(GuardUnauthenticated, "sign in to edit listings")
	}
	if patch.empty() {
		return nil, invalidInput("at least one field is required")
	}
	fields, images, err := patchFields(patch)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockListing(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := s.find(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if cur.OwnerUID != actorUID {
		return nil, guard(GuardNotOwner, "only the owner can edit this listing")
	}
	if cur.Status != model.ListingStatusAvailable {
		return nil, guard(GuardInvalidState, "claimed listings cannot be edited")
	}

	// updated_at always changes, so the conditional update reports a row even when the
	// display fields are unchanged.
	fields["updated_at"] = time.Now()
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		n, err := tx.Listings().UpdateIfAvailable(ctx, id, actorUID, fields)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: listing is no longer available", ErrConflict)
		}
		if images != nil {
			return tx.Listings().ReplaceImages(ctx, id, images)
		}
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	return s.find(ctx, s.store, id)
}

func patchFields(p ListingPatch) (map[string]interface{}, []string, error) {
	fields := map[string]interface{}{}
	if p.Title != nil {
		v, err := cleanTitle(*p.Title)
		if err != nil {
			return nil, nil, err
		}
		fields["title"] = v
	}
	if p.Description != nil {
		v, err := cleanDescription(*p.Description)
		if err != nil {
			return nil, nil, err
		}
		fields["description"] = v
	}
	if p.Category != nil {
		fields["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Condition != nil {
		v, err := cleanRequired("condition", *p.Condition, 32)
		if err != nil {
			return nil, nil, err
		}
		fields["item_condition"] = v
	}
	if p.Location != nil {
		v, err := cleanRequired("location", *p.Location, 255)
		if err != nil {
			return nil, nil, err
		}
		fields["location"] = v
	}
	var images []string
	if p.Images != nil {
		v, err := cleanImages(*p.Images)
		if err != nil {
			return nil, nil, err
		}
		images = v
	}
	return fields, images, nil
}

func (s *listingService) Delete(ctx context.Context, id, actorUID string) (err error) {
	defer s.observe(ctx, "delete", id, actorUID, time.Now(), &err)
	if actorUID == "" {
		return guard(GuardUnauthenticated, "sign in to delete listings")
	}
	unlock, err := s.lockListing(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	cur, err := s.find(ctx, s.store, id)
	if err != nil {
		return err
	}
	if cur.OwnerUID != actorUID {
		return guard(GuardNotOwner, "only the owner can delete this listing")
	}
	if cur.Status != model.ListingStatusAvailable {
		return guard(GuardInvalidState, "claimed listings cannot be deleted")
	}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		n, err := tx.Listings().DeleteIfAvailable(ctx, id, actorUID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: listing is no longer available", ErrConflict)
		}
		return nil
	})
	if err != nil {
		return txError(err)
	}
	return nil
}

func (s *listingService) find(ctx context.Context, st repository.Store, id string) (*model.Listing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalidInput("invalid listing id")
	}
	l, err := st.Listings().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *listingService) lockListing(ctx context.Context, id string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "listing:"+id)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: listing is busy, try again", ErrConflict)
		}
		return nil, err
	}
	return unlock, nil
}

// txError keeps engine errors raised inside a transaction and wraps storage failures.
func txError(err error) error {
	var ge *GuardError
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidInput) || errors.As(err, &ge) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransaction, err)
}

func (s *listingService) observe(ctx context.Context, op, id, actorUID string, start time.Time, errp *error) {
	err := *errp
	outcome := outcomeOf(err)
	listingOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	listingTransitions.WithLabelValues(op, outcome).Inc()

	entry := logging.Logger().WithFields(logrus.Fields{
		"rid":        reqctx.RID(ctx),
		"op":         op,
		"listing_id": id,
		"actor":      actorUID,
		"outcome":    outcome,
	})
	switch outcome {
	case "ok":
		entry.Info("listing op")
	case "error":
		entry.WithError(err).Error("listing op failed")
	default:
		entry.WithError(err).Warn("listing op rejected")
	}
}

func cleanTitle(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxTitleLength {
		return "", invalidInput("title must be 1-%d characters", maxTitleLength)
	}
	return v, nil
}

func cleanDescription(v string) (string, error) {
	v = strings.TrimSpace(v)
	if len(v) > maxDescLength {
		return "", invalidInput("description must be at most %d characters", maxDescLength)
	}
	return v, nil
}

func cleanRequired(name, v string, max int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalidInput("%s is required", name)
	}
	if len(v) > max {
		return "", invalidInput("%s must be at most %d characters", name, max)
	}
	return v, nil
}

func cleanImages(urls []string) ([]string, error) {
	if len(urls) > maxImages {
		return nil, invalidInput("at most %d images are allowed", maxImages)
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if strings.HasPrefix(u, "data:") {
			return nil, invalidInput("images must be URLs, not data URIs")
		}
		if len(u) > 512 {
			return nil, invalidInput("image URL is too long")
		}
		out = append(out, u)
	}
	return out, nil
}
