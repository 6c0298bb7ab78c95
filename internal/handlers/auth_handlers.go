package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/internal/resource"
	"natours_echo/internal/services"
	"natours_echo/internal/tasks"
)

// AuthHandler handles signup, login and the password flows
type AuthHandler struct {
	db           *gorm.DB
	users        *repository.Repository[models.User]
	tokens       *services.TokenService
	cookieMaxAge time.Duration
	production   bool
}

func NewAuthHandler(db *gorm.DB, tokens *services.TokenService, cookieMaxAge time.Duration, production bool) *AuthHandler {
	return &AuthHandler{
		db:           db,
		users:        repository.New[models.User](db),
		tokens:       tokens,
		cookieMaxAge: cookieMaxAge,
		production:   production,
	}
}

// Signup creates a regular user, queues the welcome email and logs the
// user in. The role can not be chosen here.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return err
	}

	user := h.users.New()
	user.Name = req.Name
	user.Email = req.Email
	user.PasswordInput = req.Password
	user.PasswordConfirm = req.PasswordConfirm

	ctx := c.Request().Context()
	if err := h.users.Create(ctx, user); err != nil {
		return err
	}

	h.enqueue(c, func() (*models.ScheduledTask, error) {
		return tasks.WelcomeEmail(user, baseURL(c)+"/me")
	})
	return h.createSendToken(c, user, http.StatusCreated)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return apperror.Validation("Please provide email and password!", nil)
	}

	user, err := h.users.FindOne(c.Request().Context(), "email = ?", strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if user == nil || !user.CorrectPassword(req.Password) {
		return apperror.Unauthorized("Incorrect email or password")
	}

	return h.createSendToken(c, user, http.StatusOK)
}

// Logout overwrites the session cookie with a short lived placeholder
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(middleware.SessionCookie("loggedout", 10, h.secure(c)))
	return c.JSON(http.StatusOK, resource.Envelope{Status: "success"})
}

// ForgotPassword stores a reset token and emails its URL to the user
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.users.FindOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("There is no user with email address.")
	}
	if err != nil {
		return err
	}

	token, err := user.CreatePasswordResetToken()
	if err != nil {
		return err
	}
	if err := h.storeResetToken(c, user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", baseURL(c), token)
	task, err := tasks.PasswordResetEmail(user, resetURL)
	if err == nil {
		err = tasks.Enqueue(ctx, h.db, task)
	}
	if err != nil {
		user.ClearPasswordResetToken()
		if clearErr := h.storeResetToken(c, user); clearErr != nil {
			log.Errorf("clear reset token of %s: %v", user.ID, clearErr)
		}
		return apperror.Operational("There was an error sending the email. Try again later!", err)
	}

	return c.JSON(http.StatusOK, resource.Envelope{Status: "success", Message: "Token sent to email!"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	hashed := models.HashResetToken(c.Param("token"))

	user, err := h.users.FindOne(ctx, "password_reset_token = ? AND password_reset_expires > ?", hashed, time.Now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Validation("Token is invalid or has expired", nil)
	}
	if err != nil {
		return err
	}

	var req resetPasswordRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return err
	}
	if req.Password == "" {
		return apperror.JoinFields(map[string]string{"password": "Please provide a password"})
	}

	user.PasswordInput = req.Password
	user.PasswordConfirm = req.PasswordConfirm
	user.ClearPasswordResetToken()
	if err := h.users.Save(ctx, user); err != nil {
		return err
	}

	return h.createSendToken(c, user, http.StatusOK)
}

// UpdatePassword changes the password of the logged in user after checking
// the current one.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	ctx := c.Request().Context()
	current := middleware.CurrentUser(ctx)
	if current == nil {
		return apperror.Unauthorized("You are not logged in! Please log in to get access.")
	}

	user, err := h.users.FindOne(ctx, "id = ?", current.ID)
	if err != nil {
		return err
	}

	var req updatePasswordRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return err
	}
	if !user.CorrectPassword(req.PasswordCurrent) {
		return apperror.Unauthorized("Your current password is wrong.")
	}
	if req.Password == "" {
		return apperror.JoinFields(map[string]string{"password": "Please provide a password"})
	}

	user.PasswordInput = req.Password
	user.PasswordConfirm = req.PasswordConfirm
	if err := h.users.Save(ctx, user); err != nil {
		return err
	}

	return h.createSendToken(c, user, http.StatusOK)
}

// createSendToken issues a session token, sets it as cookie and returns
// it with the user.
func (h *AuthHandler) createSendToken(c echo.Context, user *models.User, code int) error {
	token, err := h.tokens.Sign(user.ID)
	if err != nil {
		return err
	}

	c.SetCookie(middleware.SessionCookie(token, int(h.cookieMaxAge.Seconds()), h.secure(c)))
	return c.JSON(code, resource.Envelope{
		Status: "success",
		Token:  token,
		Data:   map[string]interface{}{"user": user},
	})
}

func (h *AuthHandler) storeResetToken(c echo.Context, user *models.User) error {
	return h.db.WithContext(c.Request().Context()).
		Model(user).
		Select("password_reset_token", "password_reset_expires").
		Updates(user).Error
}

func (h *AuthHandler) secure(c echo.Context) bool {
	return h.production || c.IsTLS() || c.Request().Header.Get(echo.HeaderXForwardedProto) == "https"
}

// enqueue stores a background task; failures are logged, the request
// still succeeds.
func (h *AuthHandler) enqueue(c echo.Context, build func() (*models.ScheduledTask, error)) {
	task, err := build()
	if err == nil {
		err = tasks.Enqueue(c.Request().Context(), h.db, task)
	}
	if err != nil {
		log.Errorf("enqueue task: %v", err)
	}
}

func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
