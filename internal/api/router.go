package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/vehicle-catalog/internal/api/handler"
	"github.com/timmy/vehicle-catalog/internal/api/middleware"
	"github.com/timmy/vehicle-catalog/internal/config"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Runner  handler.IngestionRunner
	Jobs    handler.JobReader
	Catalog handler.CatalogReader
	DB      handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(deps.DB)
	ingestionHandler := handler.NewIngestionHandler(deps.Runner, deps.Jobs)
	catalogHandler := handler.NewCatalogHandler(deps.Catalog)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Ingestion
		v1.POST("/ingestions", ingestionHandler.Trigger)
		v1.GET("/ingestions/current", ingestionHandler.Current)
		v1.GET("/ingestions/:id", ingestionHandler.Get)
		v1.GET("/ingestions/:id/snapshot", ingestionHandler.Snapshot)

		// Catalog
		v1.GET("/makes", catalogHandler.ListMakes)
		v1.GET("/makes/:makeId", catalogHandler.GetMake)
	}

	return r
}
