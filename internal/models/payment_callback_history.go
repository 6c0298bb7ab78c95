package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// PaymentCallbackHistory archives every notification received from a
// payment gateway, valid or not.
type PaymentCallbackHistory struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	PaymentGateway    PaymentGateway `gorm:"type:varchar(50);not null" json:"paymentGateway"`
	OrderID           string         `gorm:"type:varchar(64);index" json:"orderId"`
	TransactionStatus string         `gorm:"type:varchar(32)" json:"transactionStatus"`
	SignatureValid    bool           `json:"signatureValid"`
	Metadata          datatypes.JSON `json:"metadata"`
	CreatedAt         time.Time      `json:"createdAt"`
}
