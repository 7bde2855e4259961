package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-weather-ticker/internal/broadcast"
	"github.com/mr1hm/go-weather-ticker/internal/models"
	"github.com/mr1hm/go-weather-ticker/internal/observability"
	"github.com/mr1hm/go-weather-ticker/internal/repository"
)

type Handler struct {
	repo        repository.AlertRepository
	broadcaster *broadcast.Broadcaster
	metrics     *observability.Metrics
}

func NewHandler(repo repository.AlertRepository, broadcaster *broadcast.Broadcaster, metrics *observability.Metrics) *Handler {
	return &Handler{
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/alerts", h.getAlerts)
	r.GET("/alerts/stream", h.streamAlerts)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// getAlerts returns the active alerts, most urgent first. Optional query
// params: event (case-insensitive substring) and limit (1-500).
func (h *Handler) getAlerts(c *gin.Context) {
	alerts, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		slog.Error("error listing alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alerts",
		})
		return
	}

	if ev := strings.ToLower(c.Query("event")); ev != "" {
		filtered := []models.Alert{}
		for _, a := range alerts {
			if strings.Contains(strings.ToLower(a.Event), ev) {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 && len(alerts) > lim {
			alerts = alerts[:lim]
		}
	}

	c.JSON(http.StatusOK, alerts)
}

// streamAlerts sends the current active set, then a new "alerts" event each
// time ingestion publishes a changed snapshot.
func (h *Handler) streamAlerts(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming disabled"})
		return
	}

	id, updates := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	current, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		slog.Error("error listing alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alerts",
		})
		return
	}

	if h.metrics != nil {
		h.metrics.StreamSubscribers.Inc()
		defer h.metrics.StreamSubscribers.Dec()
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("alerts", current)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case snapshot, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("alerts", snapshot)
			return true
		}
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
