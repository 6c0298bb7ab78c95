package models_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/internal/testutil"
)

func TestUserPasswordIsHashed(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.User](db)

	u := repo.New()
	u.Name = "Jonas"
	u.Email = "Jonas@Example.com "
	u.PasswordInput = "secret123"
	u.PasswordConfirm = "secret123"
	require.NoError(t, repo.Create(context.Background(), u))

	var stored models.User
	require.NoError(t, db.Where("id = ?", u.ID).Take(&stored).Error)
	assert.NotEqual(t, "secret123", stored.Password)
	assert.True(t, strings.HasPrefix(stored.Password, "$2a$12$"))
	assert.True(t, stored.CorrectPassword("secret123"))
	assert.False(t, stored.CorrectPassword("secret124"))
	assert.Equal(t, "jonas@example.com", stored.Email)
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.Equal(t, models.DefaultUserPhoto, stored.Photo)
	assert.True(t, stored.Active)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password\"")
	assert.NotContains(t, string(raw), "passwordConfirm")
	assert.NotContains(t, string(raw), "$2a$")
}

func TestUserValidation(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.User](db)

	tests := []struct {
		name    string
		mutate  func(*models.User)
		field   string
		message string
	}{
		{
			name:    "confirm mismatch",
			mutate:  func(u *models.User) { u.PasswordConfirm = "different1" },
			field:   "passwordConfirm",
			message: "Passwords are not the same!",
		},
		{
			name:   "short password",
			mutate: func(u *models.User) { u.PasswordInput, u.PasswordConfirm = "short", "short" },
			field:  "password",
		},
		{
			name:    "missing password",
			mutate:  func(u *models.User) { u.PasswordInput, u.PasswordConfirm = "", "" },
			field:   "password",
			message: "Please provide a password",
		},
		{
			name:   "invalid email",
			mutate: func(u *models.User) { u.Email = "not-an-email" },
			field:  "email",
		},
		{
			name:   "name with symbols",
			mutate: func(u *models.User) { u.Name = "<script>" },
			field:  "name",
		},
		{
			name:   "unknown role",
			mutate: func(u *models.User) { u.Role = "root" },
			field:  "role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := repo.New()
			u.Name = "Valid Name"
			u.Email = "valid@example.com"
			u.PasswordInput = "password123"
			u.PasswordConfirm = "password123"
			tt.mutate(u)

			err := repo.Create(context.Background(), u)
			require.Error(t, err)
			appErr := apperror.From(err)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			require.Contains(t, appErr.Fields, tt.field)
			if tt.message != "" {
				assert.Equal(t, tt.message, appErr.Fields[tt.field])
			}
		})
	}
}

func TestUserEmailUnique(t *testing.T) {
	db := testutil.NewModelsDB(t)
	createUser(t, db, "First", "same@example.com", models.RoleUser)

	repo := repository.New[models.User](db)
	u := repo.New()
	u.Name = "Second"
	u.Email = "SAME@example.com"
	u.PasswordInput = "password123"
	u.PasswordConfirm = "password123"

	err := repo.Create(context.Background(), u)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUserPasswordChange(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	repo := repository.New[models.User](db)
	u := createUser(t, db, "Changer", "changer@example.com", models.RoleUser)
	assert.Nil(t, u.PasswordChangedAt)

	issued := time.Now().Add(-time.Hour)
	assert.False(t, u.ChangedPasswordAfter(issued))

	u.PasswordInput = "newpassword1"
	u.PasswordConfirm = "newpassword1"
	require.NoError(t, repo.Save(ctx, u))

	require.NotNil(t, u.PasswordChangedAt)
	assert.True(t, u.ChangedPasswordAfter(issued))
	// A token issued right after the change stays valid.
	assert.False(t, u.ChangedPasswordAfter(time.Now()))
	assert.True(t, u.CorrectPassword("newpassword1"))
}

func TestUserUpdateKeepsPassword(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.User](db, "name", "email", "photo")
	u := createUser(t, db, "Keeper", "keeper@example.com", models.RoleUser)
	hash := u.Password

	updated, err := repo.Update(context.Background(), u.ID, map[string]json.RawMessage{
		"name":     json.RawMessage(`"Renamed"`),
		"password": json.RawMessage(`"ignored123"`),
		"role":     json.RawMessage(`"admin"`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, hash, updated.Password)
	assert.Equal(t, models.RoleUser, updated.Role)
}

func TestPasswordResetToken(t *testing.T) {
	var u models.User
	token, err := u.CreatePasswordResetToken()
	require.NoError(t, err)

	assert.Len(t, token, 72)
	require.NotNil(t, u.PasswordResetToken)
	assert.Equal(t, models.HashResetToken(token), *u.PasswordResetToken)
	assert.NotEqual(t, token, *u.PasswordResetToken)
	require.NotNil(t, u.PasswordResetExpires)
	assert.WithinDuration(t, time.Now().Add(models.PasswordResetTokenTTL), *u.PasswordResetExpires, 5*time.Second)

	u.ClearPasswordResetToken()
	assert.Nil(t, u.PasswordResetToken)
	assert.Nil(t, u.PasswordResetExpires)
}

func TestInactiveUsersAreHidden(t *testing.T) {
	db := testutil.NewModelsDB(t)
	repo := repository.New[models.User](db)
	u := createUser(t, db, "Leaver", "leaver@example.com", models.RoleUser)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Update("active", false).Error)

	_, err := repo.FindByID(context.Background(), u.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.FindOne(context.Background(), "email = ?", "leaver@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserDelete(t *testing.T) {
	db := testutil.NewModelsDB(t)
	ctx := context.Background()
	reviewer := createUser(t, db, "Reviewer", "reviewer@example.com", models.RoleUser)
	other := createUser(t, db, "Other", "other@example.com", models.RoleUser)
	tour := createTour(t, db, "The Lake Paddler", 497)

	reviews := repository.New[models.Review](db)
	require.NoError(t, reviews.Create(ctx, &models.Review{Review: "Great", Rating: 5, TourID: tour.ID, UserID: reviewer.ID}))
	require.NoError(t, reviews.Create(ctx, &models.Review{Review: "Fine", Rating: 3, TourID: tour.ID, UserID: other.ID}))
	assert.Equal(t, 4.0, loadTour(t, db, tour.ID).RatingsAverage)

	require.NoError(t, repository.New[models.User](db).Delete(ctx, reviewer.ID))

	after := loadTour(t, db, tour.ID)
	assert.Equal(t, 3.0, after.RatingsAverage)
	assert.Equal(t, 1, after.RatingsQuantity)
}

func TestUserHasRole(t *testing.T) {
	u := models.User{Role: models.RoleLeadGuide}
	assert.True(t, u.HasRole(models.RoleAdmin, models.RoleLeadGuide))
	assert.False(t, u.HasRole(models.RoleAdmin))
	assert.False(t, u.HasRole())
}
