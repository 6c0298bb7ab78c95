package router

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"natours_echo/internal/config"
	"natours_echo/internal/handlers"
	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/internal/services"
)

// Query keys that may legitimately repeat in a request.
var paramWhitelist = []string{
	"duration", "ratingsQuantity", "ratingsAverage", "maxGroupSize", "difficulty", "price",
}

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' https://app.sandbox.midtrans.com https://app.midtrans.com; " +
	"frame-src https://app.sandbox.midtrans.com https://app.midtrans.com; " +
	"connect-src 'self' https://app.sandbox.midtrans.com https://app.midtrans.com; " +
	"img-src 'self' data:; style-src 'self' 'unsafe-inline'; font-src 'self' data:"

// Deps are the services the routes are built from. Cache and Images may
// be nil.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    *services.RedisCache
	Tokens   *services.TokenService
	Payments *services.PaymentService
	Images   *services.ImageService
	Checkout handlers.Checkout
}

// Validator adapts the model validator to echo.
type Validator struct{}

func (Validator) Validate(i interface{}) error {
	return models.Validator().Struct(i)
}

// New builds the echo instance with all middleware and routes.
func New(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(cfg.Lvl())
	e.Validator = Validator{}
	e.HTTPErrorHandler = middleware.NewErrorHandler(cfg.IsProduction())

	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: contentSecurityPolicy,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(echomw.CORS())
	e.Use(middleware.RequestTime())

	e.Static("/", cfg.PublicDir)

	auth := middleware.NewAuthenticator(d.Tokens, repository.New[models.User](d.DB))
	protect := auth.Protect()
	adminOrLead := middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)

	tourHandler := handlers.NewTourHandler(d.DB, d.Cache, d.Images, cfg.MaxPageLimit)
	userHandler := handlers.NewUserHandler(d.DB, d.Images, cfg.MaxPageLimit)
	authHandler := handlers.NewAuthHandler(d.DB, d.Tokens, cfg.JWTCookieExpiresIn, cfg.IsProduction())
	reviewHandler := handlers.NewReviewHandler(d.DB, cfg.MaxPageLimit)
	bookingHandler := handlers.NewBookingHandler(d.DB, d.Payments, cfg.MaxPageLimit)
	viewHandler := handlers.NewViewHandler(d.DB, d.Checkout)

	// Gateway notifications are not subject to the client limits.
	e.POST("/api/v1/bookings/webhook-checkout", bookingHandler.WebhookCheckout)

	api := e.Group("/api/v1",
		middleware.RateLimit(d.Cache, cfg.RateLimitMax, cfg.RateLimitWindow),
		echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
			Skipper: isMultipart,
			Limit:   cfg.BodyLimit,
		}),
		middleware.SanitizeParams(paramWhitelist...),
	)

	// Tours
	tours := api.Group("/tours")
	tours.GET("/top-5-cheap", tourHandler.GetAll, handlers.AliasTopTours)
	tours.GET("/tour-stats", tourHandler.GetTourStats)
	tours.GET("/monthly-plan/:year", tourHandler.GetMonthlyPlan,
		protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide))
	tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", tourHandler.GetToursWithin)
	tours.GET("/distances/:latlng/unit/:unit", tourHandler.GetDistances)
	tours.GET("", tourHandler.GetAll)
	tours.POST("", tourHandler.CreateOne, protect, adminOrLead)
	tours.GET("/:id", tourHandler.GetOne)
	tours.PATCH("/:id", tourHandler.UpdateOne, protect, adminOrLead)
	tours.DELETE("/:id", tourHandler.DeleteOne, protect, adminOrLead)
	tours.GET("/:tourId/reviews", reviewHandler.GetAll, protect)
	tours.POST("/:tourId/reviews", reviewHandler.CreateOne, protect, middleware.RestrictTo(models.RoleUser))

	// Users
	users := api.Group("/users")
	users.POST("/signup", authHandler.Signup)
	users.POST("/login", authHandler.Login)
	users.GET("/logout", authHandler.Logout)
	users.POST("/forgotPassword", authHandler.ForgotPassword)
	users.PATCH("/resetPassword/:token", authHandler.ResetPassword)

	me := users.Group("", protect)
	me.PATCH("/updateMyPassword", authHandler.UpdatePassword)
	me.GET("/me", userHandler.GetMe)
	me.PATCH("/updateMe", userHandler.UpdateMe)
	me.DELETE("/deleteMe", userHandler.DeleteMe)

	admin := users.Group("", protect, middleware.RestrictTo(models.RoleAdmin))
	admin.GET("", userHandler.GetAll)
	admin.POST("", userHandler.CreateOne)
	admin.GET("/:id", userHandler.GetOne)
	admin.PATCH("/:id", userHandler.UpdateOne)
	admin.DELETE("/:id", userHandler.DeleteOne)

	// Reviews
	reviews := api.Group("/reviews", protect)
	reviews.GET("", reviewHandler.GetAll)
	reviews.POST("", reviewHandler.CreateOne, middleware.RestrictTo(models.RoleUser))
	reviews.GET("/:id", reviewHandler.GetOne)
	reviews.PATCH("/:id", reviewHandler.UpdateOne, middleware.RestrictTo(models.RoleUser, models.RoleAdmin))
	reviews.DELETE("/:id", reviewHandler.DeleteOne, middleware.RestrictTo(models.RoleUser, models.RoleAdmin))

	// Bookings
	bookings := api.Group("/bookings", protect)
	bookings.GET("/checkout-session/:tourId", bookingHandler.GetCheckoutSession)
	bookings.GET("", bookingHandler.GetAll, adminOrLead)
	bookings.POST("", bookingHandler.CreateOne, adminOrLead)
	bookings.GET("/:id", bookingHandler.GetOne, adminOrLead)
	bookings.PATCH("/:id", bookingHandler.UpdateOne, adminOrLead)
	bookings.DELETE("/:id", bookingHandler.DeleteOne, adminOrLead)

	// Views
	e.GET("/", viewHandler.Overview, auth.IsLoggedIn())
	e.GET("/tour/:slug", viewHandler.Tour, auth.IsLoggedIn())
	e.GET("/login", viewHandler.Login, auth.IsLoggedIn())
	e.GET("/me", viewHandler.Account, protect)
	e.GET("/my-tours", viewHandler.MyTours, protect)

	return e
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}
