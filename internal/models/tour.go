package models

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
)

// DefaultRatingsAverage is the rating of a tour without reviews. Removing
// the last review resets the average to this value, not to 0, so a tour
// whose reviews are all deleted reads the same as a tour never reviewed.
const DefaultRatingsAverage = 4.5

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// GeoPoint is a GeoJSON point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty"`
}

// LatLng returns the point's latitude and longitude, ok is false when the
// coordinates are missing.
func (p GeoPoint) LatLng() (lat, lng float64, ok bool) {
	if len(p.Coordinates) < 2 {
		return 0, 0, false
	}
	return p.Coordinates[1], p.Coordinates[0], true
}

// Guides accepts either a list of user ids or a list of user objects.
type Guides []User

func (g *Guides) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		out := make(Guides, 0, len(ids))
		for _, id := range ids {
			out = append(out, User{Base: Base{ID: id}})
		}
		*g = out
		return nil
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	*g = users
	return nil
}

// IDs returns the distinct guide ids in order.
func (g Guides) IDs() []string {
	seen := make(map[string]bool, len(g))
	ids := make([]string, 0, len(g))
	for _, u := range g {
		if u.ID == "" || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		ids = append(ids, u.ID)
	}
	return ids
}

type Tour struct {
	Base

	Name            string                         `gorm:"type:varchar(40);uniqueIndex;not null" json:"name" validate:"required,min=10,max=40"`
	Slug            string                         `gorm:"type:varchar(64);index" json:"slug"`
	Duration        int                            `gorm:"not null" json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int                            `gorm:"not null" json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      Difficulty                     `gorm:"type:varchar(20);not null" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64                        `gorm:"not null" json:"ratingsAverage" validate:"min=1,max=5"`
	RatingsQuantity int                            `gorm:"not null;default:0" json:"ratingsQuantity" validate:"min=0"`
	Price           float64                        `gorm:"not null" json:"price" validate:"required,gt=0"`
	PriceDiscount   *float64                       `json:"priceDiscount,omitempty" validate:"omitempty,gte=0"`
	Summary         string                         `gorm:"type:text;not null" json:"summary" validate:"required"`
	Description     string                         `gorm:"type:text" json:"description"`
	ImageCover      string                         `gorm:"type:varchar(255);not null" json:"imageCover" validate:"required"`
	Images          datatypes.JSONSlice[string]    `json:"images"`
	StartDates      datatypes.JSONSlice[time.Time] `json:"startDates"`
	StartLocation   datatypes.JSONType[GeoPoint]   `json:"startLocation"`
	Locations       datatypes.JSONSlice[GeoPoint]  `json:"locations"`
	SecretTour      bool                           `gorm:"not null;index" json:"secretTour"`

	Guides Guides `gorm:"many2many:tour_guides;" json:"guides"`
}

// TourGuide is the join row between a tour and one of its guides.
type TourGuide struct {
	TourID string `gorm:"type:varchar(36);primaryKey"`
	UserID string `gorm:"type:varchar(36);primaryKey;index"`
}

func (Tour) TableName() string { return "tours" }

// MarshalJSON adds the derived durationWeeks field.
func (t Tour) MarshalJSON() ([]byte, error) {
	type tour Tour
	return json.Marshal(struct {
		tour
		DurationWeeks float64 `json:"durationWeeks"`
	}{tour(t), t.DurationWeeks()})
}

func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

func (t *Tour) ApplyDefaults() {
	t.RatingsAverage = DefaultRatingsAverage
	t.Images = datatypes.JSONSlice[string]{}
	t.StartDates = datatypes.JSONSlice[time.Time]{}
	t.Locations = datatypes.JSONSlice[GeoPoint]{}
	t.StartLocation = datatypes.NewJSONType(GeoPoint{Type: "Point"})
}

func (t *Tour) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = slug.Make(t.Name)
	t.RatingsAverage = RoundRating(t.RatingsAverage)
	t.Summary = cleanText(t.Summary)
	t.Description = cleanText(t.Description)

	loc := t.StartLocation.Data()
	if loc.Type == "" {
		loc.Type = "Point"
		t.StartLocation = datatypes.NewJSONType(loc)
	}
}

func (t *Tour) CheckConstraints() error {
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		return apperror.JoinFields(map[string]string{
			"priceDiscount": "Discount price (" + strconv.FormatFloat(*t.PriceDiscount, 'f', -1, 64) + ") should be below the regular price",
		})
	}
	return nil
}

// AfterPersist rewrites the guide links from the current Guides list.
func (t *Tour) AfterPersist(ctx context.Context, tx *gorm.DB) error {
	ids := t.Guides.IDs()

	if len(ids) > 0 {
		var found int64
		if err := tx.Model(&User{}).Where("id IN ? AND active = ?", ids, true).Count(&found).Error; err != nil {
			return err
		}
		if int(found) != len(ids) {
			return apperror.JoinFields(map[string]string{"guides": "guides must reference existing users"})
		}
	}

	if err := tx.Where("tour_id = ?", t.ID).Delete(&TourGuide{}).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	links := make([]TourGuide, 0, len(ids))
	for _, id := range ids {
		links = append(links, TourGuide{TourID: t.ID, UserID: id})
	}
	return tx.Create(&links).Error
}

// BeforeRemove refuses to delete a booked tour and removes the tour's
// reviews and guide links.
func (t *Tour) BeforeRemove(ctx context.Context, tx *gorm.DB) error {
	var bookings int64
	if err := tx.Model(&Booking{}).Where("tour_id = ?", t.ID).Count(&bookings).Error; err != nil {
		return err
	}
	if bookings > 0 {
		return apperror.Validation("This tour has bookings and cannot be deleted", nil)
	}

	if err := tx.Where("tour_id = ?", t.ID).Delete(&Review{}).Error; err != nil {
		return err
	}
	return tx.Where("tour_id = ?", t.ID).Delete(&TourGuide{}).Error
}

func (Tour) Scope(db *gorm.DB) *gorm.DB {
	return db.Where("tours.secret_tour = ?", false)
}

func (Tour) Populate(db *gorm.DB) *gorm.DB {
	return db.Preload("Guides", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "email", "photo", "role").Where("active = ?", true)
	})
}

// RoundRating rounds to one decimal place.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
