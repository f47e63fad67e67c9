package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/handlers"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/middleware"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/drive"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
)

// Pinger reports metadata store health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	QueryService  *service.QueryService
	FileService   *service.FileService
	UploadService *service.UploadService
	DriveImporter *drive.Importer
	Health        Pinger
}

type RouterOptions struct {
	AllowedOrigins []string
	// BasePath prefixes every API route; empty mounts them at the root.
	BasePath string
	// Auth guards the API group when set.
	Auth gin.HandlerFunc
}

func NewRouter(services *Services, opts RouterOptions) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics())
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	router.GET("/health", healthHandler(services))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group(opts.BasePath)
	if opts.Auth != nil {
		apiGroup.Use(opts.Auth)
	}

	if services != nil {
		if services.QueryService != nil && services.FileService != nil {
			handlers.NewFileHandler(services.QueryService, services.FileService).RegisterRoutes(apiGroup)
		}
		if services.UploadService != nil {
			handlers.NewUploadHandler(services.UploadService).RegisterRoutes(apiGroup)
		}
		if services.DriveImporter != nil {
			drive.NewHandler(services.DriveImporter).RegisterRoutes(apiGroup)
		}
	}

	return router
}

func healthHandler(services *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if services == nil || services.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := services.Health.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func corsConfig(allowedOrigins []string) cors.Config {
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	cfg := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			cfg.AllowOrigins = nil
			cfg.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			cfg.AllowOrigins = normalizedOrigins
		}
	}
	return cfg
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
