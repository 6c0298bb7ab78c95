package models_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/internal/testutil"
)

func TestReviewRoundTripRestoresRatings(t *testing.T) {
	tests := []struct {
		name     string
		existing []float64
		rating   float64
	}{
		{name: "first review", existing: nil, rating: 4},
		{name: "one existing review", existing: []float64{5}, rating: 3},
		{name: "several existing reviews", existing: []float64{5, 4, 2}, rating: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewModelsDB(t)
			ctx := context.Background()
			reviews := repository.New[models.Review](db, "review", "rating")
			tour := createTour(t, db, "The Round Tripper", 997)

			for i, rating := range tt.existing {
				u := createUser(t, db, "Existing "+string(rune('A'+i)), "existing"+string(rune('a'+i))+"@example.com", models.RoleUser)
				require.NoError(t, reviews.Create(ctx, &models.Review{Review: "Earlier", Rating: rating, TourID: tour.ID, UserID: u.ID}))
			}
			before := loadTour(t, db, tour.ID)

			author := createUser(t, db, "Newcomer", "newcomer@example.com", models.RoleUser)
			review := &models.Review{Review: "Something to say", Rating: tt.rating, TourID: tour.ID, UserID: author.ID}
			require.NoError(t, reviews.Create(ctx, review))

			during := loadTour(t, db, tour.ID)
			assert.Equal(t, before.RatingsQuantity+1, during.RatingsQuantity)

			require.NoError(t, reviews.Delete(ctx, review.ID))

			after := loadTour(t, db, tour.ID)
			assert.Equal(t, before.RatingsAverage, after.RatingsAverage)
			assert.Equal(t, before.RatingsQuantity, after.RatingsQuantity)
		})
	}
}

func TestDeletingLastReviewRestoresDefaultAverage(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	reviews := repository.New[models.Review](db, "review", "rating")
	tour := createTour(t, db, "The Lone Reviewer", 497)
	author := createUser(t, db, "Only", "only@example.com", models.RoleUser)

	review := &models.Review{Review: "Rained all week", Rating: 1, TourID: tour.ID, UserID: author.ID}
	require.NoError(t, reviews.Create(ctx, review))
	assert.Equal(t, 1.0, loadTour(t, db, tour.ID).RatingsAverage)

	require.NoError(t, reviews.Delete(ctx, review.ID))

	got := loadTour(t, db, tour.ID)
	assert.Equal(t, 0, got.RatingsQuantity)
	assert.Equal(t, models.DefaultRatingsAverage, got.RatingsAverage)
}

func TestReviewAggregates(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	reviews := repository.New[models.Review](db, "review", "rating")
	tour := createTour(t, db, "The Aggregator", 497)
	first := createUser(t, db, "First", "first@example.com", models.RoleUser)
	second := createUser(t, db, "Second", "second@example.com", models.RoleUser)
	third := createUser(t, db, "Third", "third@example.com", models.RoleUser)

	require.NoError(t, reviews.Create(ctx, &models.Review{Review: "a", Rating: 5, TourID: tour.ID, UserID: first.ID}))
	require.NoError(t, reviews.Create(ctx, &models.Review{Review: "b", Rating: 4, TourID: tour.ID, UserID: second.ID}))
	last := &models.Review{Review: "c", Rating: 4, TourID: tour.ID, UserID: third.ID}
	require.NoError(t, reviews.Create(ctx, last))

	got := loadTour(t, db, tour.ID)
	assert.Equal(t, 3, got.RatingsQuantity)
	assert.Equal(t, 4.3, got.RatingsAverage)

	updated, err := reviews.Update(ctx, last.ID, map[string]json.RawMessage{"rating": json.RawMessage("1")})
	require.NoError(t, err)
	assert.Equal(t, 1.0, updated.Rating)

	got = loadTour(t, db, tour.ID)
	assert.Equal(t, 3, got.RatingsQuantity)
	assert.Equal(t, 3.3, got.RatingsAverage)
}

func TestReviewUniquePerTourAndUser(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	reviews := repository.New[models.Review](db)
	tour := createTour(t, db, "The Only Once Tour", 497)
	author := createUser(t, db, "Author", "author@example.com", models.RoleUser)

	require.NoError(t, reviews.Create(ctx, &models.Review{Review: "First", Rating: 5, TourID: tour.ID, UserID: author.ID}))

	err := reviews.Create(ctx, &models.Review{Review: "Second", Rating: 1, TourID: tour.ID, UserID: author.ID})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, http.StatusBadRequest, apperror.From(err).HTTPStatus())

	// The failed write leaves the aggregates untouched.
	got := loadTour(t, db, tour.ID)
	assert.Equal(t, 1, got.RatingsQuantity)
	assert.Equal(t, 5.0, got.RatingsAverage)
}

func TestReviewRequiresTour(t *testing.T) {
	db := testutil.NewModelsDB(t)
	author := createUser(t, db, "Author", "author@example.com", models.RoleUser)

	err := repository.New[models.Review](db).Create(context.Background(), &models.Review{
		Review: "Nowhere", Rating: 4, TourID: "missing", UserID: author.ID,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperror.From(err).HTTPStatus())
}

func TestReviewValidation(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.Review](db)

	tests := []struct {
		name   string
		review models.Review
		field  string
	}{
		{name: "missing text", review: models.Review{Rating: 4, TourID: "t", UserID: "u"}, field: "review"},
		{name: "markup only", review: models.Review{Review: "<b></b>", Rating: 4, TourID: "t", UserID: "u"}, field: "review"},
		{name: "rating too high", review: models.Review{Review: "x", Rating: 6, TourID: "t", UserID: "u"}, field: "rating"},
		{name: "rating too low", review: models.Review{Review: "x", Rating: 0.5, TourID: "t", UserID: "u"}, field: "rating"},
		{name: "missing tour", review: models.Review{Review: "x", Rating: 3, UserID: "u"}, field: "tour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			review := tt.review
			err := repo.Create(context.Background(), &review)
			require.Error(t, err)
			assert.Contains(t, apperror.From(err).Fields, tt.field)
		})
	}
}

func TestReviewPopulatesAuthor(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	reviews := repository.New[models.Review](db)
	tour := createTour(t, db, "The Populated Tour", 497)
	author := createUser(t, db, "Visible Author", "visible@example.com", models.RoleUser)

	review := &models.Review{Review: "Nice", Rating: 4, TourID: tour.ID, UserID: author.ID}
	require.NoError(t, reviews.Create(ctx, review))

	found, err := reviews.FindByID(ctx, review.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Author)
	assert.Equal(t, "Visible Author", found.Author.Name)
	assert.Empty(t, found.Author.Email)
}

func TestRoundRating(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{4.666666, 4.7},
		{4.25, 4.3},
		{4.24, 4.2},
		{5, 5},
		{1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.RoundRating(tt.in))
	}
}
