package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gastromap/discovery-api/internal/auth"
	"github.com/gastromap/discovery-api/internal/config"
	"github.com/gastromap/discovery-api/internal/handler"
	middlewarepkg "github.com/gastromap/discovery-api/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Auth           *handler.AuthHandler
	Users          *handler.UserAdminHandler
	Search         *handler.SearchHandler
	Establishments *handler.EstablishmentsHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	e.POST("/auth/register", handlers.Auth.Register)
	e.POST("/auth/login", handlers.Auth.Login)

	searchLimiter := middlewarepkg.SearchRateLimiter(cfg.RateLimitSearch)
	e.GET("/establishments/search", handlers.Search.List, searchLimiter)
	e.GET("/establishments/map", handlers.Search.Map, searchLimiter)
	e.GET("/establishments/:id", handlers.Establishments.Get)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	// Catalogue moderation is open to both back-office roles; user
	// management stays admin only.
	catalogue := secured.Group("/admin/establishments", middlewarepkg.RequireRole("admin", "moderator"))
	catalogue.GET("", handlers.Establishments.List)
	catalogue.POST("", handlers.Establishments.Upsert)
	catalogue.PATCH("/:id/status", handlers.Establishments.ChangeStatus)

	admin := secured.Group("/admin", middlewarepkg.RequireRole("admin"))
	admin.POST("/upload-csv", handlers.Establishments.UploadCSV)
	admin.GET("/users", handlers.Users.List)
	admin.POST("/users", handlers.Users.Create)
	admin.PATCH("/users/:id", handlers.Users.Update)
	admin.DELETE("/users/:id", handlers.Users.Delete)
}
