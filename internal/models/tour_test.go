package models_test

import (
	"context"
	"encoding/json"
	"errors"
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

func TestTourSlug(t *testing.T) {
	db := testutil.NewModelsDB(t)
	tour := createTour(t, db, "The Forest Hiker", 397)

	assert.Equal(t, "the-forest-hiker", tour.Slug)
	assert.Equal(t, "the-forest-hiker", loadTour(t, db, tour.ID).Slug)
}

func TestTourDefaults(t *testing.T) {
	db := testutil.NewModelsDB(t)
	tour := createTour(t, db, "The Sea Explorer", 497)

	assert.NotEmpty(t, tour.ID)
	assert.Equal(t, models.DefaultRatingsAverage, tour.RatingsAverage)
	assert.Equal(t, 0, tour.RatingsQuantity)
	assert.Equal(t, "Point", tour.StartLocation.Data().Type)
	assert.False(t, tour.SecretTour)
}

func TestTourDiscountBelowPrice(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.Tour](db, "priceDiscount", "price")

	tour := newTour("The Snow Adventurer", 100)
	discount := 120.0
	tour.PriceDiscount = &discount

	err := repo.Create(context.Background(), tour)
	require.Error(t, err)
	appErr := apperror.From(err)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
	assert.Contains(t, appErr.Message, "120")
	assert.Contains(t, appErr.Fields["priceDiscount"], "120")

	// The same rule applies to updates.
	saved := createTour(t, db, "The City Wanderer", 100)
	_, err = repo.Update(context.Background(), saved.ID, map[string]json.RawMessage{"priceDiscount": json.RawMessage("120")})
	require.Error(t, err)
	assert.Contains(t, apperror.From(err).Message, "120")

	updated, err := repo.Update(context.Background(), saved.ID, map[string]json.RawMessage{"priceDiscount": json.RawMessage("80")})
	require.NoError(t, err)
	require.NotNil(t, updated.PriceDiscount)
	assert.Equal(t, 80.0, *updated.PriceDiscount)
}

func TestTourValidation(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.Tour](db)

	tests := []struct {
		name   string
		mutate func(*models.Tour)
		field  string
	}{
		{name: "name too short", mutate: func(t *models.Tour) { t.Name = "Short" }, field: "name"},
		{name: "name too long", mutate: func(t *models.Tour) { t.Name = "A tour name that is far too long to be accepted" }, field: "name"},
		{name: "unknown difficulty", mutate: func(t *models.Tour) { t.Difficulty = "extreme" }, field: "difficulty"},
		{name: "rating above five", mutate: func(t *models.Tour) { t.RatingsAverage = 6 }, field: "ratingsAverage"},
		{name: "missing summary", mutate: func(t *models.Tour) { t.Summary = "" }, field: "summary"},
		{name: "missing cover", mutate: func(t *models.Tour) { t.ImageCover = "" }, field: "imageCover"},
		{name: "zero price", mutate: func(t *models.Tour) { t.Price = 0 }, field: "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tour := newTour("The Valid Tour Name", 300)
			tt.mutate(tour)
			err := repo.Create(context.Background(), tour)
			require.Error(t, err)
			assert.Contains(t, apperror.From(err).Fields, tt.field)
		})
	}
}

func TestTourNameUnique(t *testing.T) {
	db := testutil.NewModelsDB(t)
	createTour(t, db, "The Park Camper", 1497)

	err := repository.New[models.Tour](db).Create(context.Background(), newTour("The Park Camper", 1497))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
	assert.Equal(t, "Duplicate field value. Please use another value!", apperror.From(err).Message)
}

func TestTourSanitizesText(t *testing.T) {
	db := testutil.NewModelsDB(t)
	tour := newTour("The Sports Lover", 2997)
	tour.Summary = "<b>Surfing</b> & skydiving <img src=x onerror=alert(1)>"

	require.NoError(t, repository.New[models.Tour](db).Create(context.Background(), tour))
	assert.Equal(t, "Surfing & skydiving", tour.Summary)
}

func TestTourRatingIsRounded(t *testing.T) {
	db := testutil.NewModelsDB(t)
	tour := newTour("The Wine Taster", 1997)
	tour.RatingsAverage = 4.6666

	require.NoError(t, repository.New[models.Tour](db).Create(context.Background(), tour))
	assert.Equal(t, 4.7, tour.RatingsAverage)
}

func TestSecretToursAreHidden(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.Tour](db)

	tour := newTour("The Northern Lights", 1497)
	tour.SecretTour = true
	require.NoError(t, repo.Create(context.Background(), tour))

	_, err := repo.FindByID(context.Background(), tour.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var visible []models.Tour
	require.NoError(t, repo.Query(context.Background()).Find(&visible).Error)
	assert.Empty(t, visible)
}

func TestTourGuides(t *testing.T) {
	db := testutil.NewModelsDB(t)
	lead := createUser(t, db, "Lead Guide", "lead@example.com", models.RoleLeadGuide)
	guide := createUser(t, db, "Tour Guide", "guide@example.com", models.RoleGuide)

	repo := repository.New[models.Tour](db, "guides")
	tour := newTour("The Star Gazer Tour", 997)
	require.NoError(t, json.Unmarshal([]byte(`["`+lead.ID+`","`+guide.ID+`"]`), &tour.Guides))
	require.NoError(t, repo.Create(context.Background(), tour))

	require.Len(t, tour.Guides, 2)
	assert.ElementsMatch(t, []string{lead.ID, guide.ID}, tour.Guides.IDs())

	// Populated guides never expose credentials.
	raw, err := json.Marshal(tour)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")

	updated, err := repo.Update(context.Background(), tour.ID, map[string]json.RawMessage{
		"guides": json.RawMessage(`["` + guide.ID + `"]`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{guide.ID}, updated.Guides.IDs())

	_, err = repo.Update(context.Background(), tour.ID, map[string]json.RawMessage{
		"guides": json.RawMessage(`["missing-user"]`),
	})
	require.Error(t, err)
	assert.Contains(t, apperror.From(err).Fields, "guides")
}

func TestTourDelete(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	user := createUser(t, db, "Some Reviewer", "reviewer@example.com", models.RoleUser)
	tour := createTour(t, db, "The Cascade Walker", 497)

	review := &models.Review{Review: "Lovely", Rating: 5, TourID: tour.ID, UserID: user.ID}
	require.NoError(t, repository.New[models.Review](db).Create(ctx, review))

	require.NoError(t, repository.New[models.Tour](db).Delete(ctx, tour.ID))

	var reviews int64
	require.NoError(t, db.Model(&models.Review{}).Where("tour_id = ?", tour.ID).Count(&reviews).Error)
	assert.Zero(t, reviews)
}

func TestTourDeleteWithBookings(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	user := createUser(t, db, "Some Booker", "booker@example.com", models.RoleUser)
	tour := createTour(t, db, "The Desert Rider", 697)

	bookings := repository.New[models.Booking](db)
	booking := bookings.New()
	booking.TourID = tour.ID
	booking.UserID = user.ID
	booking.Price = tour.Price
	require.NoError(t, bookings.Create(ctx, booking))
	assert.True(t, booking.Paid)
	require.NotNil(t, booking.Tour)
	assert.Equal(t, tour.Name, booking.Tour.Name)

	err := repository.New[models.Tour](db).Delete(ctx, tour.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperror.From(err).HTTPStatus())
}

func TestTourDurationWeeks(t *testing.T) {
	tour := models.Tour{Duration: 14}
	raw, err := json.Marshal(tour)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, 2.0, doc["durationWeeks"])
}

func TestGuidesUnmarshal(t *testing.T) {
	var ids models.Guides
	require.NoError(t, json.Unmarshal([]byte(`["a","b","a"]`), &ids))
	assert.Equal(t, []string{"a", "b"}, ids.IDs())

	var objects models.Guides
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"x","name":"Someone"}]`), &objects))
	assert.Equal(t, []string{"x"}, objects.IDs())
	assert.Equal(t, "Someone", objects[0].Name)
}

func TestGeoPointLatLng(t *testing.T) {
	lat, lng, ok := models.GeoPoint{Coordinates: []float64{-115.57, 51.17}}.LatLng()
	require.True(t, ok)
	assert.Equal(t, 51.17, lat)
	assert.Equal(t, -115.57, lng)

	_, _, ok = models.GeoPoint{}.LatLng()
	assert.False(t, ok)
}
