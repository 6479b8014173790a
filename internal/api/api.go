package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/api/handlers"
	"github.com/andresuchdata/banking-pipeline/internal/api/middleware"
	"github.com/andresuchdata/banking-pipeline/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	DashboardService *service.DashboardService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger("/health"))
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services != nil && services.DashboardService != nil {
		dashboardHandler := handlers.NewDashboardHandler(services.DashboardService)

		router.GET("/", dashboardHandler.GetPage)
		router.GET(handlers.ChartPath, dashboardHandler.GetChart)

		apiGroup := router.Group("/api/v1")
		dashboardGroup := apiGroup.Group("/dashboard")
		{
			dashboardGroup.GET("", dashboardHandler.GetDashboard)
			dashboardGroup.GET("/daily", dashboardHandler.GetDaily)
			dashboardGroup.GET("/transactions", dashboardHandler.GetTransactions)
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
