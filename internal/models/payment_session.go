package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentSession is one checkout attempt at the payment gateway for a tour.
// A user has at most one active session per tour.
type PaymentSession struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TourID           string         `gorm:"type:varchar(36);not null;index:idx_payment_sessions_tour_user" json:"tour"`
	UserID           string         `gorm:"type:varchar(36);not null;index:idx_payment_sessions_tour_user" json:"user"`
	PaymentGateway   PaymentGateway `gorm:"type:varchar(50);not null" json:"paymentGateway"`
	OrderID          string         `gorm:"type:varchar(64);uniqueIndex" json:"orderId"`
	GrossAmount      int64          `gorm:"not null" json:"grossAmount"`
	IsActive         bool           `gorm:"not null" json:"isActive"`
	RequestMetadata  datatypes.JSON `json:"requestMetadata"`
	ResponseMetadata datatypes.JSON `json:"responseMetadata"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}
