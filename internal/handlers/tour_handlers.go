package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
	"natours_echo/internal/query"
	"natours_echo/internal/repository"
	"natours_echo/internal/resource"
	"natours_echo/internal/services"
)

const (
	tourStatsKey  = "tours:stats"
	tourStatsTTL  = 10 * time.Minute
	maxTourImages = 3
)

// TourWritableFields are the fields a tour update may change. The rating
// aggregates are derived from reviews and never written directly.
var TourWritableFields = []string{
	"name", "duration", "maxGroupSize", "difficulty", "price", "priceDiscount",
	"summary", "description", "imageCover", "images", "startDates",
	"startLocation", "locations", "secretTour", "guides",
}

var tourFilterFields = []string{
	"name", "slug", "duration", "maxGroupSize", "difficulty", "ratingsAverage",
	"ratingsQuantity", "price", "priceDiscount", "createdAt",
}

type TourHandler struct {
	*resource.Handler[models.Tour]
	db     *gorm.DB
	cache  *services.RedisCache
	images *services.ImageService
}

func NewTourHandler(db *gorm.DB, cache *services.RedisCache, images *services.ImageService, maxLimit int) *TourHandler {
	h := &TourHandler{db: db, cache: cache, images: images}
	h.Handler = resource.New(repository.New[models.Tour](db, TourWritableFields...), resource.Config[models.Tour]{
		Fields:       query.MustFieldsOf(db, &models.Tour{}, tourFilterFields...),
		MaxLimit:     maxLimit,
		PreparePatch: h.uploadImages,
		AfterWrite:   h.invalidateStats,
	})
	return h
}

// AliasTopTours presets the query of the five best rated, cheapest tours.
func AliasTopTours(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		q := req.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		req.URL.RawQuery = q.Encode()
		return next(c)
	}
}

// TourStat aggregates the well rated tours of one difficulty.
type TourStat struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

func (h *TourHandler) GetTourStats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := services.GetOrSet(h.cache, ctx, tourStatsKey, tourStatsTTL, func() ([]TourStat, error) {
		var rows []TourStat
		err := models.Tour{}.Scope(h.db.WithContext(ctx).Model(&models.Tour{})).
			Select(`UPPER(difficulty) AS difficulty,
				COUNT(*) AS num_tours,
				COALESCE(SUM(ratings_quantity), 0) AS num_ratings,
				AVG(ratings_average) AS avg_rating,
				AVG(price) AS avg_price,
				MIN(price) AS min_price,
				MAX(price) AS max_price`).
			Where("ratings_average >= ?", 4.5).
			Group("difficulty").
			Order("avg_price asc").
			Scan(&rows).Error
		if rows == nil {
			rows = []TourStat{}
		}
		return rows, err
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resource.Envelope{Status: "success", Data: map[string]interface{}{"stats": stats}})
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// GetMonthlyPlan counts the tour starts per month of a year, busiest
// month first.
func (h *TourHandler) GetMonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 || year > 9999 {
		return apperror.Validation("Please provide a valid year.", nil)
	}

	var tours []models.Tour
	err = models.Tour{}.Scope(h.db.WithContext(c.Request().Context())).
		Select("id", "name", "start_dates").
		Find(&tours).Error
	if err != nil {
		return err
	}

	plan := MonthlyPlan(tours, year)
	return c.JSON(http.StatusOK, resource.Envelope{Status: "success", Data: map[string]interface{}{"plan": plan}})
}

// MonthlyPlan groups the start dates falling in year by month, ordered by
// the number of starts and then by month. At most twelve entries.
func MonthlyPlan(tours []models.Tour, year int) []MonthPlan {
	byMonth := make(map[int]*MonthPlan)
	for _, t := range tours {
		for _, d := range t.StartDates {
			d = d.UTC()
			if d.Year() != year {
				continue
			}
			m := int(d.Month())
			p, ok := byMonth[m]
			if !ok {
				p = &MonthPlan{Month: m, Tours: []string{}}
				byMonth[m] = p
			}
			p.NumTourStarts++
			p.Tours = append(p.Tours, t.Name)
		}
	}

	plan := make([]MonthPlan, 0, len(byMonth))
	for _, p := range byMonth {
		plan = append(plan, *p)
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].NumTourStarts != plan[j].NumTourStarts {
			return plan[i].NumTourStarts > plan[j].NumTourStarts
		}
		return plan[i].Month < plan[j].Month
	})
	if len(plan) > 12 {
		plan = plan[:12]
	}
	return plan
}

// GetToursWithin lists the tours starting within distance of a center
// point. Route: /tours-within/:distance/center/:latlng/unit/:unit
func (h *TourHandler) GetToursWithin(c echo.Context) error {
	lat, lng, ok := services.ParseLatLng(c.Param("latlng"))
	if !ok {
		return apperror.Validation("Please provide latitude and longitude in the format lat,lng.", nil)
	}
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil || distance < 0 {
		return apperror.Validation("Please provide a valid distance.", nil)
	}
	radius := services.RadiusFor(distance, c.Param("unit"))

	tours, err := h.withStartLocation(c)
	if err != nil {
		return err
	}

	within := make([]models.Tour, 0)
	for _, t := range tours {
		tLat, tLng, ok := t.StartLocation.Data().LatLng()
		if !ok {
			continue
		}
		if services.AngularDistance(lat, lng, tLat, tLng) <= radius {
			within = append(within, t)
		}
	}
	return resource.Many(c, within, len(within))
}

// TourDistance is the distance from a point to a tour's start.
type TourDistance struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// GetDistances lists every tour with its distance from a point, nearest
// first. Route: /distances/:latlng/unit/:unit
func (h *TourHandler) GetDistances(c echo.Context) error {
	lat, lng, ok := services.ParseLatLng(c.Param("latlng"))
	if !ok {
		return apperror.Validation("Please provide latitude and longitude in the format lat,lng.", nil)
	}
	multiplier := services.MeterMultiplier(c.Param("unit"))

	tours, err := h.withStartLocation(c)
	if err != nil {
		return err
	}

	distances := make([]TourDistance, 0, len(tours))
	for _, t := range tours {
		tLat, tLng, ok := t.StartLocation.Data().LatLng()
		if !ok {
			continue
		}
		meters := services.AngularDistance(lat, lng, tLat, tLng) * services.EarthRadiusKm * 1000
		distances = append(distances, TourDistance{ID: t.ID, Name: t.Name, Distance: meters * multiplier})
	}
	sort.SliceStable(distances, func(i, j int) bool { return distances[i].Distance < distances[j].Distance })

	return c.JSON(http.StatusOK, resource.Envelope{Status: "success", Data: resource.Data{Data: distances}})
}

func (h *TourHandler) withStartLocation(c echo.Context) ([]models.Tour, error) {
	var tours []models.Tour
	err := h.Repository().Query(c.Request().Context()).Order("id").Find(&tours).Error
	return tours, err
}

// uploadImages resizes an uploaded cover and up to three gallery images
// and puts their file names into the patch.
func (h *TourHandler) uploadImages(c echo.Context, patch map[string]json.RawMessage) error {
	if h.images == nil || !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperror.Validation("Invalid form data", nil)
	}
	id := c.Param("id")

	if covers := form.File["imageCover"]; len(covers) > 0 {
		name, err := h.images.SaveTourImage(covers[0], id, "cover")
		if err != nil {
			return err
		}
		patch["imageCover"], _ = json.Marshal(name)
	}

	files := form.File["images"]
	if len(files) == 0 {
		return nil
	}
	if len(files) > maxTourImages {
		return apperror.Validation(fmt.Sprintf("Please upload at most %d images.", maxTourImages), nil)
	}
	names := make([]string, 0, len(files))
	for i, fh := range files {
		name, err := h.images.SaveTourImage(fh, id, strconv.Itoa(i+1))
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	patch["images"], _ = json.Marshal(names)
	return nil
}

func (h *TourHandler) invalidateStats(c echo.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(c.Request().Context(), tourStatsKey); err != nil {
		log.Warnf("invalidate %s: %v", tourStatsKey, err)
	}
}
