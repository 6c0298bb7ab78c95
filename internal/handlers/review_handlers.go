package handlers

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/query"
	"natours_echo/internal/repository"
	"natours_echo/internal/resource"
)

// ReviewWritableFields are the fields a review update may change; the tour
// and author of a review are fixed.
var ReviewWritableFields = []string{"review", "rating"}

type ReviewHandler struct {
	*resource.Handler[models.Review]
}

func NewReviewHandler(db *gorm.DB, maxLimit int) *ReviewHandler {
	return &ReviewHandler{
		Handler: resource.New(repository.New[models.Review](db, ReviewWritableFields...), resource.Config[models.Review]{
			Fields:    query.MustFieldsOf(db, &models.Review{}, "rating", "tour", "user", "createdAt"),
			MaxLimit:  maxLimit,
			Prepare:   setReviewRefs,
			PreFilter: reviewsOfTour,
		}),
	}
}

// setReviewRefs takes the tour from a nested route and makes the logged
// in user the author. Only admins may author for someone else.
func setReviewRefs(c echo.Context, review *models.Review) error {
	if tourID := c.Param("tourId"); tourID != "" && review.TourID == "" {
		review.TourID = tourID
	}
	user := middleware.CurrentUser(c.Request().Context())
	if user == nil {
		return nil
	}
	if review.UserID == "" || !user.HasRole(models.RoleAdmin) {
		review.UserID = user.ID
	}
	return nil
}

func reviewsOfTour(c echo.Context, db *gorm.DB) *gorm.DB {
	if tourID := c.Param("tourId"); tourID != "" {
		return db.Where("reviews.tour_id = ?", tourID)
	}
	return db
}
