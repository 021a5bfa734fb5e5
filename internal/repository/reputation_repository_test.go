package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
	"github.com/shinyyama/goodfinds-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRating_LazyCreateAndFold(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(testutil.NewDB(t))

	rep, err := store.Reputations().Get(ctx, "poster")
	require.NoError(t, err)
	assert.Equal(t, "poster", rep.UserUID)
	assert.Zero(t, rep.ReviewCount)

	require.NoError(t, store.Reputations().AddRating(ctx, "poster", 4))
	require.NoError(t, store.Reputations().AddRating(ctx, "poster", 5))

	rep, err = store.Reputations().Get(ctx, "poster")
	require.NoError(t, err)
	assert.Equal(t, int64(9), rep.RatingSum)
	assert.Equal(t, int64(2), rep.ReviewCount)
	assert.Equal(t, "4.5", rep.Mean().String())
}

func TestReviews_OnePerReviewerAndPost(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(testutil.NewDB(t))
	post := uuid.NewString()

	first := &model.Review{ID: uuid.NewString(), ReviewerUID: "r", PosterUID: "p", PostID: post, Rating: 3}
	require.NoError(t, store.Reviews().Create(ctx, first))
	dup := &model.Review{ID: uuid.NewString(), ReviewerUID: "r", PosterUID: "p", PostID: post, Rating: 5}
	assert.Error(t, store.Reviews().Create(ctx, dup))

	list, err := store.Reviews().ListByPoster(ctx, "p")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Rating)
}

func TestCategories_EnsureExistsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewStore(testutil.NewDB(t))

	require.NoError(t, store.Categories().EnsureExists(ctx, &model.Category{Slug: "books", Name: "Books"}))
	require.NoError(t, store.Categories().EnsureExists(ctx, &model.Category{Slug: "books", Name: "Books"}))

	list, err := store.Categories().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "books", list[0].Slug)
}
