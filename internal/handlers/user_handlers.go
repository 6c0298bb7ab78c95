package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/query"
	"natours_echo/internal/repository"
	"natours_echo/internal/resource"
	"natours_echo/internal/services"
)

// UserWritableFields are the fields an admin may change on any user
var UserWritableFields = []string{"name", "email", "photo", "role"}

// SelfWritableFields are the fields users may change on themselves
var SelfWritableFields = []string{"name", "email", "photo"}

type UserHandler struct {
	*resource.Handler[models.User]
	db     *gorm.DB
	users  *repository.Repository[models.User]
	images *services.ImageService
}

func NewUserHandler(db *gorm.DB, images *services.ImageService, maxLimit int) *UserHandler {
	users := repository.New[models.User](db, UserWritableFields...)
	return &UserHandler{
		Handler: resource.New(users, resource.Config[models.User]{
			Fields:   query.MustFieldsOf(db, &models.User{}, "name", "email", "role", "createdAt"),
			MaxLimit: maxLimit,
		}),
		db:     db,
		users:  users,
		images: images,
	}
}

// GetMe returns the logged in user
func (h *UserHandler) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := h.users.FindByID(ctx, middleware.CurrentUser(ctx).ID)
	if err != nil {
		return err
	}
	return resource.One(c, http.StatusOK, user)
}

// UpdateMe changes the name, email or photo of the logged in user. A
// multipart photo upload is resized and stored.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	patch, err := resource.ReadPatch(c)
	if err != nil {
		return err
	}
	if _, ok := patch["password"]; ok {
		return apperror.Validation("This route is not for password updates. Please use /updateMyPassword.", nil)
	}
	if _, ok := patch["passwordConfirm"]; ok {
		return apperror.Validation("This route is not for password updates. Please use /updateMyPassword.", nil)
	}

	ctx := c.Request().Context()
	me := middleware.CurrentUser(ctx)

	if err := h.uploadPhoto(c, me.ID, patch); err != nil {
		return err
	}

	user, err := h.users.UpdateFields(ctx, me.ID, patch, SelfWritableFields...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resource.Envelope{Status: "success", Data: map[string]interface{}{"user": user}})
}

// DeleteMe deactivates the logged in user. The record is kept.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	ctx := c.Request().Context()
	err := h.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", middleware.CurrentUser(ctx).ID).
		Update("active", false).Error
	if err != nil {
		return err
	}
	return resource.NoContent(c)
}

func (h *UserHandler) uploadPhoto(c echo.Context, userID string, patch map[string]json.RawMessage) error {
	if h.images == nil || !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return nil
	}

	name, err := h.images.SaveUserPhoto(fh, userID)
	if err != nil {
		return err
	}
	patch["photo"], _ = json.Marshal(name)
	return nil
}
