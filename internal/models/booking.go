package models

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"natours_echo/internal/apperror"
)

type Booking struct {
	Base

	TourID  string  `gorm:"type:varchar(36);not null;index" json:"tour" validate:"required"`
	UserID  string  `gorm:"type:varchar(36);not null;index" json:"user" validate:"required"`
	Price   float64 `gorm:"not null" json:"price" validate:"required,gt=0"`
	Paid    bool    `gorm:"not null" json:"paid"`
	OrderID *string `gorm:"type:varchar(64);uniqueIndex" json:"orderId,omitempty"`

	Tour *Tour `gorm:"foreignKey:TourID" json:"tourInfo,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"userInfo,omitempty"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) ApplyDefaults() {
	b.Paid = true
}

// BeforePersist checks both references of a new booking.
func (b *Booking) BeforePersist(ctx context.Context, tx *gorm.DB, isNew bool) error {
	if !isNew {
		return nil
	}

	var tour Tour
	if err := tx.Select("id").Where("id = ?", b.TourID).Take(&tour).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("No tour found with that ID")
		}
		return err
	}

	var user User
	if err := tx.Select("id").Where("id = ?", b.UserID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("No user found with that ID")
		}
		return err
	}
	return nil
}

func (Booking) Populate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Tour", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "slug", "image_cover", "price")
		}).
		Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email")
		})
}
