package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours_echo/internal/models"
	"natours_echo/internal/repository"
)

func createUser(t *testing.T, db *gorm.DB, name, email string, role models.Role) *models.User {
	t.Helper()
	repo := repository.New[models.User](db)
	u := repo.New()
	u.Name = name
	u.Email = email
	u.Role = role
	u.PasswordInput = "password123"
	u.PasswordConfirm = "password123"
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func newTour(name string, price float64) *models.Tour {
	tour := repository.New[models.Tour](nil).New()
	tour.Name = name
	tour.Duration = 5
	tour.MaxGroupSize = 25
	tour.Difficulty = models.DifficultyEasy
	tour.Price = price
	tour.Summary = "Breathtaking hike through the Canadian Banff National Park"
	tour.ImageCover = "tour-1-cover.jpg"
	return tour
}

func createTour(t *testing.T, db *gorm.DB, name string, price float64) *models.Tour {
	t.Helper()
	tour := newTour(name, price)
	require.NoError(t, repository.New[models.Tour](db).Create(context.Background(), tour))
	return tour
}

func loadTour(t *testing.T, db *gorm.DB, id string) models.Tour {
	t.Helper()
	var tour models.Tour
	require.NoError(t, db.Where("id = ?", id).Take(&tour).Error)
	return tour
}
