package handlers

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/web/templates/pages"
)

// Checkout holds what the tour page needs to open the payment popup
type Checkout struct {
	ClientKey     string
	SnapScriptURL string
}

// ViewHandler renders the server side pages
type ViewHandler struct {
	db       *gorm.DB
	tours    *repository.Repository[models.Tour]
	reviews  *repository.Repository[models.Review]
	checkout Checkout
}

func NewViewHandler(db *gorm.DB, checkout Checkout) *ViewHandler {
	return &ViewHandler{
		db:       db,
		tours:    repository.New[models.Tour](db),
		reviews:  repository.New[models.Review](db),
		checkout: checkout,
	}
}

// Overview renders all tours
func (h *ViewHandler) Overview(c echo.Context) error {
	var tours []models.Tour
	if err := h.tours.Query(c.Request().Context()).Order("created_at desc").Find(&tours).Error; err != nil {
		return err
	}

	props := pages.OverviewProps{Layout: layout(c, "All Tours"), Tours: tours}
	return render(c, http.StatusOK, pages.Overview(props))
}

// Tour renders one tour with its reviews and guides
func (h *ViewHandler) Tour(c echo.Context) error {
	ctx := c.Request().Context()

	var tour models.Tour
	err := h.tours.Query(ctx).Where("slug = ?", c.Param("slug")).Take(&tour).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("There is no tour with that name.")
	}
	if err != nil {
		return err
	}

	var reviews []models.Review
	if err := h.reviews.Query(ctx).Where("reviews.tour_id = ?", tour.ID).Order("created_at desc").Find(&reviews).Error; err != nil {
		return err
	}

	props := pages.TourProps{
		Layout:        layout(c, tour.Name+" Tour"),
		Tour:          tour,
		Reviews:       reviews,
		ClientKey:     h.checkout.ClientKey,
		SnapScriptURL: h.checkout.SnapScriptURL,
	}
	return render(c, http.StatusOK, pages.TourDetail(props))
}

func (h *ViewHandler) Login(c echo.Context) error {
	return render(c, http.StatusOK, pages.Login(layout(c, "Log into your account")))
}

func (h *ViewHandler) Account(c echo.Context) error {
	props := pages.AccountProps{Layout: layout(c, "Your account")}
	if c.QueryParam("alert") == "updated" {
		props.Message = "Your data was updated."
	}
	return render(c, http.StatusOK, pages.Account(props))
}

// MyTours renders the tours the logged in user booked
func (h *ViewHandler) MyTours(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(ctx)

	var tourIDs []string
	err := h.db.WithContext(ctx).Model(&models.Booking{}).
		Where("user_id = ?", user.ID).
		Distinct().
		Pluck("tour_id", &tourIDs).Error
	if err != nil {
		return err
	}

	tours := []models.Tour{}
	if len(tourIDs) > 0 {
		if err := h.tours.Query(ctx).Where("tours.id IN ?", tourIDs).Find(&tours).Error; err != nil {
			return err
		}
	}

	props := pages.OverviewProps{Layout: layout(c, "My Tours"), Tours: tours}
	return render(c, http.StatusOK, pages.Overview(props))
}

func layout(c echo.Context, title string) pages.Layout {
	return pages.Layout{Title: title, User: middleware.CurrentUser(c.Request().Context())}
}

func render(c echo.Context, code int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return component.Render(c.Request().Context(), c.Response())
}
