package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/goodfinds-backend/internal/lock"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
	"github.com/shinyyama/goodfinds-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	alice = "uid-alice"
	bob   = "uid-bob"
	carol = "uid-carol"
)

type fixture struct {
	db    *gorm.DB
	store repository.Store
	rep   ReputationService
	svc   ListingService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLocker(t, lock.NewLocalLocker())
}

func newFixtureWithLocker(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	store := repository.NewStore(gdb)
	rep := NewReputationService(store, nil)
	return &fixture{
		db:    gdb,
		store: store,
		rep:   rep,
		svc:   NewListingService(store, rep, locker),
	}
}

func (f *fixture) create(t *testing.T, owner string) *model.Listing {
	t.Helper()
	l, err := f.svc.Create(context.Background(), owner, ListingInput{
		Title:       "Oak bookshelf",
		Description: "Five shelves, a little scratched",
		Category:    "furniture",
		Condition:   "used",
		Location:    "Setagaya, Tokyo",
		Images:      []string{"https://img.example/1.jpg", "https://img.example/2.jpg"},
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) reviewCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Review{}).Count(&n).Error)
	return n
}

func requireConsistent(t *testing.T, l *model.Listing) {
	t.Helper()
	assert.Equal(t, l.Status == model.ListingStatusClaimed, l.ClaimedBy != nil,
		"claimed_by must be set exactly when status is claimed (status=%s)", l.Status)
}

func requireGuard(t *testing.T, err error, code GuardCode) {
	t.Helper()
	var ge *GuardError
	require.True(t, errors.As(err, &ge), "want GuardError %s, got %v", code, err)
	assert.Equal(t, code, ge.Code)
}

func TestCreate_ForcesAvailable(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, alice)

	assert.Equal(t, model.ListingStatusAvailable, l.Status)
	assert.Nil(t, l.ClaimedBy)
	assert.NotEmpty(t, l.ID)

	got, err := f.svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, got.ImageURLs())
	requireConsistent(t, got)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "", ListingInput{Title: "x", Condition: "new", Location: "here"})
	requireGuard(t, err, GuardUnauthenticated)

	cases := []ListingInput{
		{Title: "  ", Condition: "new", Location: "here"},
		{Title: "lamp", Condition: "", Location: "here"},
		{Title: "lamp", Condition: "new", Location: ""},
		{Title: "lamp", Condition: "new", Location: "here", Images: []string{"data:image/png;base64,AAAA"}},
	}
	for _, in := range cases {
		_, err := f.svc.Create(ctx, alice, in)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %+v", in)
	}
}

func TestGet_UnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "0b9f3c1e-8a43-4b6e-9d55-5d0a3e7f2c11")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClaim_SetsClaimer(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, alice)

	got, err := f.svc.Claim(context.Background(), l.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	require.NotNil(t, got.ClaimedBy)
	assert.Equal(t, bob, *got.ClaimedBy)
	requireConsistent(t, got)
}

func TestClaim_OwnListingAlwaysGuarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Claim(ctx, l.ID, alice)
	requireGuard(t, err, GuardSelfClaim)

	_, err = f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	// Still a guard failure, not a conflict, once the listing is claimed.
	_, err = f.svc.Claim(ctx, l.ID, alice)
	requireGuard(t, err, GuardSelfClaim)
}

func TestClaim_AlreadyClaimedIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, l.ID, carol)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, *got.ClaimedBy)
}

func TestClaim_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, alice)
	_, err := f.svc.Claim(context.Background(), l.ID, "")
	requireGuard(t, err, GuardUnauthenticated)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	lockers := map[string]lock.Locker{
		"local lock":       lock.NewLocalLocker(),
		"conditional only": noopLocker{},
	}
	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newFixtureWithLocker(t, locker)
			l := f.create(t, alice)

			claimers := []string{bob, carol, "uid-dave", "uid-erin"}
			errs := make([]error, len(claimers))
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i, uid := range claimers {
				wg.Add(1)
				go func(i int, uid string) {
					defer wg.Done()
					<-start
					_, errs[i] = f.svc.Claim(context.Background(), l.ID, uid)
				}(i, uid)
			}
			close(start)
			wg.Wait()

			winners := 0
			var winner string
			for i, err := range errs {
				if err == nil {
					winners++
					winner = claimers[i]
					continue
				}
				assert.ErrorIs(t, err, ErrConflict)
			}
			require.Equal(t, 1, winners)

			got, err := f.svc.Get(context.Background(), l.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ClaimedBy)
			assert.Equal(t, winner, *got.ClaimedBy)
			requireConsistent(t, got)
		})
	}
}

func TestClaim_LockTimeoutIsConflict(t *testing.T) {
	locker := lock.NewLocalLocker()
	f := newFixtureWithLocker(t, locker)
	l := f.create(t, alice)

	unlock, err := locker.Lock(context.Background(), "listing:"+l.ID)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.Claim(ctx, l.ID, bob)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "conflict", outcomeOf(err))

	unlock()
	got, err := f.svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAvailable, got.Status)
}

func TestReportMissing_ReopensAndHidesFromReporter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	got, err := f.svc.ReportMissing(ctx, l.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAvailable, got.Status)
	assert.Nil(t, got.ClaimedBy)
	assert.Equal(t, []string{bob}, got.MissingReporters())
	requireConsistent(t, got)

	bobFeed, _, err := f.svc.ListAvailable(ctx, bob, ListingFilter{})
	require.NoError(t, err)
	assert.Empty(t, bobFeed)

	carolFeed, total, err := f.svc.ListAvailable(ctx, carol, ListingFilter{})
	require.NoError(t, err)
	require.Len(t, carolFeed, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, l.ID, carolFeed[0].ID)

	// Others may claim it again; the reporter may not.
	_, err = f.svc.Claim(ctx, l.ID, bob)
	requireGuard(t, err, GuardReportedMissing)
	_, err = f.svc.Claim(ctx, l.ID, carol)
	require.NoError(t, err)
}

func TestReportMissing_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.ReportMissing(ctx, l.ID, bob)
	requireGuard(t, err, GuardInvalidState)

	_, err = f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	_, err = f.svc.ReportMissing(ctx, l.ID, "")
	requireGuard(t, err, GuardUnauthenticated)
	_, err = f.svc.ReportMissing(ctx, l.ID, alice)
	requireGuard(t, err, GuardNotClaimer)
	_, err = f.svc.ReportMissing(ctx, l.ID, carol)
	requireGuard(t, err, GuardNotClaimer)

	got, err := f.svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	assert.Empty(t, got.MissingReporters())

	_, err = f.svc.ReportMissing(ctx, l.ID, bob)
	require.NoError(t, err)

	// A second report by the same user fails and changes nothing.
	_, err = f.svc.ReportMissing(ctx, l.ID, bob)
	var ge *GuardError
	require.True(t, errors.As(err, &ge))
	got, err = f.svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAvailable, got.Status)
	assert.Equal(t, []string{bob}, got.MissingReporters())
}

func TestConfirmPickup_OwnerCreatesNoReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)
	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPickup(ctx, l.ID, alice, &ReviewInput{Rating: 5})
	requireGuard(t, err, GuardOwnerCannotRate)

	res, err := f.svc.ConfirmPickup(ctx, l.ID, alice, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusRemoved, res.Status)
	assert.Nil(t, res.Review)
	assert.Zero(t, f.reviewCount(t))

	_, err = f.svc.Get(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmPickup_ClaimerWithReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	res, err := f.svc.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 4, Comment: " friendly "})
	require.NoError(t, err)
	require.NotNil(t, res.Review)
	assert.Equal(t, alice, res.Review.PosterUID)
	assert.Equal(t, bob, res.Review.ReviewerUID)
	assert.Equal(t, l.ID, res.Review.PostID)
	assert.Equal(t, 4, res.Review.Rating)
	require.NotNil(t, res.Review.Comment)
	assert.Equal(t, "friendly", *res.Review.Comment)

	rep, err := f.rep.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rep.Reputation)
	assert.Equal(t, int64(1), rep.ReviewCount)

	_, err = f.svc.Get(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reviews, err := f.rep.ListReviewsForPoster(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestConfirmPickup_ClaimerSkipsReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)
	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	res, err := f.svc.ConfirmPickup(ctx, l.ID, bob, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Review)
	assert.Zero(t, f.reviewCount(t))
}

func TestConfirmPickup_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.ConfirmPickup(ctx, l.ID, alice, nil)
	requireGuard(t, err, GuardInvalidState)

	_, err = f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPickup(ctx, l.ID, carol, nil)
	requireGuard(t, err, GuardNotParticipant)

	_, err = f.svc.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := f.svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	assert.Zero(t, f.reviewCount(t))

	_, err = f.svc.ConfirmPickup(ctx, l.ID, bob, nil)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPickup(ctx, l.ID, bob, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

// failingStore hands out a reputation repository that fails every fold inside transactions.
type failingStore struct {
	repository.Store
}

func (s failingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(failingTx{tx})
	})
}

type failingTx struct {
	repository.Store
}

func (t failingTx) Reputations() repository.ReputationRepository {
	return failingReputations{t.Store.Reputations()}
}

type failingReputations struct {
	repository.ReputationRepository
}

func (failingReputations) AddRating(context.Context, string, int) error {
	return errors.New("connection reset by peer")
}

func TestConfirmPickup_CrashAndRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)
	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)

	crashing := NewListingService(failingStore{f.store}, f.rep, lock.NewLocalLocker())
	_, err = crashing.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 5})
	require.ErrorIs(t, err, ErrTransaction)

	got, err := f.svc.Get(ctx, l.ID)
	require.NoError(t, err, "listing must survive a failed pickup")
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	assert.Zero(t, f.reviewCount(t))
	rep, err := f.rep.Get(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, rep.ReviewCount)

	_, err = f.svc.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 5})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 5})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(1), f.reviewCount(t))
	rep, err = f.rep.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.ReviewCount)
	assert.Equal(t, 5.0, rep.Reputation)
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Edit(ctx, l.ID, alice, ListingPatch{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	title := "Walnut bookshelf"
	_, err = f.svc.Edit(ctx, l.ID, bob, ListingPatch{Title: &title})
	requireGuard(t, err, GuardNotOwner)

	images := []string{"https://img.example/3.jpg"}
	got, err := f.svc.Edit(ctx, l.ID, alice, ListingPatch{Title: &title, Images: &images})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, images, got.ImageURLs())
	assert.Equal(t, model.ListingStatusAvailable, got.Status)

	// Same value again still succeeds.
	_, err = f.svc.Edit(ctx, l.ID, alice, ListingPatch{Title: &title})
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)
	other := "Pine bookshelf"
	_, err = f.svc.Edit(ctx, l.ID, alice, ListingPatch{Title: &other})
	requireGuard(t, err, GuardInvalidState)

	got, err = f.svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, bob, *got.ClaimedBy)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	requireGuard(t, f.svc.Delete(ctx, l.ID, bob), GuardNotOwner)

	_, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)
	requireGuard(t, f.svc.Delete(ctx, l.ID, alice), GuardInvalidState)

	l2 := f.create(t, alice)
	require.NoError(t, f.svc.Delete(ctx, l2.ID, alice))
	_, err = f.svc.Get(ctx, l2.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var images int64
	require.NoError(t, f.db.Model(&model.ListingImage{}).Where("listing_id = ?", l2.ID).Count(&images).Error)
	assert.Zero(t, images)
	assert.ErrorIs(t, f.svc.Delete(ctx, l2.ID, alice), ErrNotFound)
}

func TestListAvailable_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mk := func(title, category, condition, location string) *model.Listing {
		l, err := f.svc.Create(ctx, alice, ListingInput{
			Title: title, Category: category, Condition: condition, Location: location,
		})
		require.NoError(t, err)
		return l
	}
	mk("Desk", "furniture", "used", "Shibuya, Tokyo")
	mk("Kettle", "kitchen", "new", "Osaka")
	claimed := mk("Chair", "furniture", "used", "Meguro, Tokyo")
	_, err := f.svc.Claim(ctx, claimed.ID, bob)
	require.NoError(t, err)

	list, total, err := f.svc.ListAvailable(ctx, "", ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	list, _, err = f.svc.ListAvailable(ctx, "", ListingFilter{Category: "Furniture"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Desk", list[0].Title)

	list, _, err = f.svc.ListAvailable(ctx, "", ListingFilter{Category: "All", Location: "tokyo"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, _, err = f.svc.ListAvailable(ctx, "", ListingFilter{Condition: "NEW"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Kettle", list[0].Title)

	list, total, err = f.svc.ListAvailable(ctx, "", ListingFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(2), total)
}

func TestListByOwnerAndClaimedBy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l1 := f.create(t, alice)
	f.create(t, alice)
	f.create(t, carol)
	_, err := f.svc.Claim(ctx, l1.ID, bob)
	require.NoError(t, err)

	mine, err := f.svc.ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	claims, err := f.svc.ListClaimedBy(ctx, bob)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, l1.ID, claims[0].ID)

	_, err = f.svc.ListByOwner(ctx, "")
	requireGuard(t, err, GuardUnauthenticated)
}

func TestScenario_ClaimPickupReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	got, err := f.svc.Claim(ctx, l.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	assert.Equal(t, bob, *got.ClaimedBy)

	res, err := f.svc.ConfirmPickup(ctx, l.ID, bob, &ReviewInput{Rating: 4})
	require.NoError(t, err)
	require.NotNil(t, res.Review)
	assert.Equal(t, alice, res.Review.PosterUID)
	assert.Equal(t, 4, res.Review.Rating)

	rep, err := f.rep.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rep.Reputation)
	assert.Equal(t, int64(1), rep.ReviewCount)

	_, err = f.svc.Get(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
