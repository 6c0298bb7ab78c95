package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
)

type PaymentService struct {
	db       *gorm.DB
	gateway  Gateway
	bookings *repository.Repository[models.Booking]
}

func NewPaymentService(db *gorm.DB, gateway Gateway) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		bookings: repository.New[models.Booking](db),
	}
}

// CheckoutSession is the handle a client needs to open the payment page.
type CheckoutSession struct {
	OrderID     string `json:"orderId"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
	IsExisting  bool   `json:"isExisting"`
}

// CheckActiveSession returns the user's active session for a tour, or nil
func (s *PaymentService) CheckActiveSession(ctx context.Context, tourID, userID string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := s.db.WithContext(ctx).
		Where("tour_id = ? AND user_id = ? AND is_active = ?", tourID, userID, true).
		Order("created_at desc").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateCheckoutSession resumes a pending session for the same tour and
// user, or opens a new one at the gateway.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, tour *models.Tour, user *models.User, finishURL string) (*CheckoutSession, error) {
	existing, err := s.CheckActiveSession(ctx, tour.ID, user.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if resumed := s.resume(ctx, existing); resumed != nil {
			return resumed, nil
		}
	}

	orderID := "NAT-" + uuid.NewString()
	amount := int64(math.Round(tour.Price))

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: user.Name,
			Email: user.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    tour.ID,
				Name:  fmt.Sprintf("%s Tour", tour.Name),
				Price: amount,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: finishURL,
		},
	}

	resp, err := s.gateway.CreateTransaction(req)
	if err != nil {
		return nil, apperror.Operational("Could not create the payment session. Please try again later.", err)
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)

	session := models.PaymentSession{
		TourID:           tour.ID,
		UserID:           user.ID,
		PaymentGateway:   models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		GrossAmount:      amount,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}

	return &CheckoutSession{
		OrderID:     orderID,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// resume returns the stored handle of a still pending session. Settled,
// failed or unreadable sessions are deactivated and nil is returned.
func (s *PaymentService) resume(ctx context.Context, session *models.PaymentSession) *CheckoutSession {
	status, err := s.gateway.CheckTransaction(session.OrderID)
	if err == nil {
		switch status.TransactionStatus {
		case "pending", "":
			var resp snap.Response
			if err := json.Unmarshal(session.ResponseMetadata, &resp); err == nil && resp.Token != "" {
				return &CheckoutSession{
					OrderID:     session.OrderID,
					Token:       resp.Token,
					RedirectURL: resp.RedirectURL,
					IsExisting:  true,
				}
			}
		}
	} else {
		log.Warnf("payment session %s status check failed: %v", session.OrderID, err)
	}

	s.deactivate(ctx, s.db, session.OrderID)
	return nil
}

func (s *PaymentService) deactivate(ctx context.Context, db *gorm.DB, orderID string) {
	err := db.WithContext(ctx).Model(&models.PaymentSession{}).
		Where("order_id = ?", orderID).
		Update("is_active", false).Error
	if err != nil {
		log.Errorf("deactivate payment session %s: %v", orderID, err)
	}
}

// Notification is the subset of the gateway's HTTP notification we use.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// HandleNotification archives a gateway notification and, when the order
// is settled, turns its session into a booking. Repeated notifications for
// the same order return the existing booking.
func (s *PaymentService) HandleNotification(ctx context.Context, payload []byte) (*models.Booking, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil || n.OrderID == "" {
		return nil, apperror.Validation("Webhook error: invalid notification payload", nil)
	}

	valid := s.gateway.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey)
	history := models.PaymentCallbackHistory{
		PaymentGateway:    models.PaymentGatewayMidtrans,
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		SignatureValid:    valid,
		Metadata:          payload,
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		log.Errorf("archive payment notification %s: %v", n.OrderID, err)
	}

	if !valid {
		return nil, apperror.Validation("Webhook error: invalid signature", nil)
	}

	status, err := s.gateway.CheckTransaction(n.OrderID)
	if err != nil {
		return nil, apperror.Operational("Could not confirm the payment status", err)
	}
	if !settled(status.TransactionStatus, status.FraudStatus) {
		if failed(status.TransactionStatus) {
			s.deactivate(ctx, s.db, n.OrderID)
		}
		return nil, nil
	}

	var session models.PaymentSession
	if err := s.db.WithContext(ctx).Where("order_id = ?", n.OrderID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("No payment session found for that order")
		}
		return nil, err
	}

	if existing, err := s.bookings.FindOne(ctx, "order_id = ?", n.OrderID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	orderID := n.OrderID
	booking := s.bookings.New()
	booking.TourID = session.TourID
	booking.UserID = session.UserID
	booking.Price = float64(session.GrossAmount)
	booking.OrderID = &orderID

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	s.deactivate(ctx, s.db, n.OrderID)

	log.Infof("booking %s created from order %s", booking.ID, n.OrderID)
	return booking, nil
}

func settled(transactionStatus, fraudStatus string) bool {
	switch transactionStatus {
	case "settlement":
		return true
	case "capture":
		return fraudStatus == "" || fraudStatus == "accept"
	}
	return false
}

func failed(transactionStatus string) bool {
	switch transactionStatus {
	case "deny", "expire", "cancel", "failure":
		return true
	}
	return false
}
