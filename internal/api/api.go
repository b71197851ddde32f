package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/pharmstock/backend-go/internal/api/handlers"
	"github.com/andresuchdata/pharmstock/backend-go/internal/api/middleware"
	"github.com/andresuchdata/pharmstock/backend-go/internal/service"
)

// Options configure the router.
type Options struct {
	AllowedOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	UploadDir   string
	MaxUpload   int64
}

func NewRouter(svc *service.CatalogueService, opts Options) *gin.Engine {
	router := gin.New()
	// Product names contain slashes; clients escape them as %2F.
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(opts.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(opts.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	if opts.RateLimiter != nil {
		router.Use(opts.RateLimiter.Middleware())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": svc.Loaded()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewCatalogueHandler(svc, opts.UploadDir, opts.MaxUpload)
	apiGroup := router.Group("/api/v1")
	{
		apiGroup.POST("/imports", h.Import)
		apiGroup.GET("/imports", h.Imports)
		apiGroup.GET("/staged", h.Staged)
		apiGroup.POST("/recompute", h.Recompute)
		apiGroup.DELETE("/catalogue", h.Reset)

		apiGroup.GET("/summary", h.Summary)
		apiGroup.GET("/products", h.Products)
		apiGroup.GET("/products/unmatched", h.Unmatched)
		apiGroup.GET("/products/:name", h.Product)
		apiGroup.GET("/generics", h.Generics)
		apiGroup.GET("/suppliers", h.Suppliers)

		groups := apiGroup.Group("/groups")
		{
			groups.GET("/molecules", h.MoleculeGroups)
			groups.GET("/categories", h.CategoryGroups)
		}

		apiGroup.GET("/settings", h.GetSettings)
		apiGroup.PUT("/settings", h.UpdateSettings)

		apiGroup.GET("/corrections", h.Corrections)
		apiGroup.PUT("/corrections/:name", h.ApplyCorrection)
		apiGroup.DELETE("/corrections/:name", h.RemoveCorrection)

		reports := apiGroup.Group("/reports")
		{
			reports.GET("/purchase", h.PurchaseReport)
			reports.GET("/full", h.FullReport)
		}
	}

	return router
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
