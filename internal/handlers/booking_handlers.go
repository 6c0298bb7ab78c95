package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/query"
	"natours_echo/internal/repository"
	"natours_echo/internal/resource"
	"natours_echo/internal/services"
)

// BookingWritableFields are the fields a booking update may change
var BookingWritableFields = []string{"price", "paid"}

type BookingHandler struct {
	*resource.Handler[models.Booking]
	tours    *repository.Repository[models.Tour]
	payments *services.PaymentService
}

func NewBookingHandler(db *gorm.DB, payments *services.PaymentService, maxLimit int) *BookingHandler {
	return &BookingHandler{
		Handler: resource.New(repository.New[models.Booking](db, BookingWritableFields...), resource.Config[models.Booking]{
			Fields:   query.MustFieldsOf(db, &models.Booking{}, "tour", "user", "price", "paid", "createdAt"),
			MaxLimit: maxLimit,
		}),
		tours:    repository.New[models.Tour](db),
		payments: payments,
	}
}

// GetCheckoutSession opens, or resumes, a payment session for the logged
// in user and a tour.
func (h *BookingHandler) GetCheckoutSession(c echo.Context) error {
	ctx := c.Request().Context()
	tour, err := h.tours.FindByID(ctx, c.Param("tourId"))
	if err != nil {
		return err
	}

	finishURL := baseURL(c) + "/my-tours?alert=booking"
	session, err := h.payments.CreateCheckoutSession(ctx, tour, middleware.CurrentUser(ctx), finishURL)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"session": session,
	})
}

// WebhookCheckout receives the payment gateway notifications
func (h *BookingHandler) WebhookCheckout(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	booking, err := h.payments.HandleNotification(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	if booking != nil {
		log.Infof("webhook: booking %s confirmed", booking.ID)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
