package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/andresuchdata/banking-pipeline/internal/render"
	"github.com/andresuchdata/banking-pipeline/internal/reporting"
	"github.com/andresuchdata/banking-pipeline/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ChartPath is where the page's chart frame points.
const ChartPath = "/chart"

type DashboardHandler struct {
	service *service.DashboardService
}

func NewDashboardHandler(service *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetPage renders the HTML dashboard.
func (h *DashboardHandler) GetPage(c *gin.Context) {
	dashboard, err := h.service.GetDashboard(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build dashboard page")
		c.String(http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	var buf bytes.Buffer
	if err := render.Page(&buf, dashboard, ChartPath); err != nil {
		log.Error().Err(err).Msg("failed to render dashboard page")
		c.String(http.StatusInternalServerError, "failed to render dashboard")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// GetChart renders the daily volume chart as its own page.
func (h *DashboardHandler) GetChart(c *gin.Context) {
	dashboard, err := h.service.GetDashboard(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build dashboard chart")
		c.String(http.StatusInternalServerError, "failed to load chart")
		return
	}

	var buf bytes.Buffer
	if err := render.Chart(&buf, dashboard.Metrics.Daily); err != nil {
		log.Error().Err(err).Msg("failed to render dashboard chart")
		c.String(http.StatusInternalServerError, "failed to render chart")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	load := h.service.GetDashboard
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		load = h.service.Refresh
	}

	data, err := load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch dashboard", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, data)
}

func (h *DashboardHandler) GetDaily(c *gin.Context) {
	data, err := h.service.GetDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch daily volume", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"daily": data.Metrics.Daily})
}

func (h *DashboardHandler) GetTransactions(c *gin.Context) {
	maxLimit := h.service.RowLimit()
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(maxLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	// Rows beyond the display limit are never kept, so a larger limit cannot be served.
	if limit > maxLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must not exceed %d", maxLimit)})
		return
	}

	data, err := h.service.GetDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transactions", "details": err.Error()})
		return
	}

	items := reporting.Head(data.Transactions, limit)
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": data.Metrics.TransactionCount,
	})
}
