package models

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"natours_echo/internal/apperror"
)

type Review struct {
	Base

	Review string  `gorm:"type:text;not null" json:"review" validate:"required"`
	Rating float64 `gorm:"not null" json:"rating" validate:"required,min=1,max=5"`
	TourID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_reviews_tour_user,priority:1" json:"tour" validate:"required"`
	UserID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_reviews_tour_user,priority:2" json:"user" validate:"required"`

	Author *User `gorm:"foreignKey:UserID" json:"author,omitempty"`
}

func (Review) TableName() string { return "reviews" }

func (r *Review) Normalize() {
	r.Review = cleanText(r.Review)
}

// BeforePersist checks that a new review points at an existing tour.
func (r *Review) BeforePersist(ctx context.Context, tx *gorm.DB, isNew bool) error {
	if !isNew {
		return nil
	}
	var tour Tour
	err := tx.Select("id").Where("id = ?", r.TourID).Take(&tour).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("No tour found with that ID")
	}
	return err
}

func (r *Review) AfterPersist(ctx context.Context, tx *gorm.DB) error {
	return RecalculateRatings(ctx, tx, r.TourID)
}

func (r *Review) AfterRemove(ctx context.Context, tx *gorm.DB) error {
	return RecalculateRatings(ctx, tx, r.TourID)
}

func (Review) Populate(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "photo")
	})
}

// RecalculateRatings recomputes a tour's rating count and average from its
// reviews. Without reviews the tour goes back to zero ratings and the
// default average.
func RecalculateRatings(ctx context.Context, tx *gorm.DB, tourID string) error {
	var stats struct {
		N   int64
		Avg float64
	}
	err := tx.WithContext(ctx).Model(&Review{}).
		Select("COUNT(*) AS n, COALESCE(AVG(rating), 0) AS avg").
		Where("tour_id = ?", tourID).
		Scan(&stats).Error
	if err != nil {
		return err
	}

	avg := DefaultRatingsAverage
	if stats.N > 0 {
		avg = RoundRating(stats.Avg)
	}

	return tx.WithContext(ctx).Model(&Tour{}).Where("id = ?", tourID).Updates(map[string]interface{}{
		"ratings_quantity": stats.N,
		"ratings_average":  avg,
	}).Error
}
