// Package handler serves the ops HTTP surface: health, metrics, the
// complaint dataset and the live feed.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"qabulxona/backend/internal/livefeed"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/report"
)

// DatasetSource supplies the flat complaint rows.
type DatasetSource interface {
	GetComplaintDataset(ctx context.Context) ([]report.Row, error)
}

// ComplaintLister supplies the complaints behind the CSV export.
type ComplaintLister interface {
	ListAll(ctx context.Context) ([]models.Complaint, error)
}

// Handler holds the collaborators of the HTTP routes.
type Handler struct {
	Hub        *livefeed.Hub
	Dataset    DatasetSource
	Complaints ComplaintLister
	Exporter   *report.CSVExporter
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error

	secret  []byte
	isAdmin func(int64) bool
	log     zerolog.Logger
}

// NewHandler creates a handler. An empty secret disables the /api and /ws
// routes.
func NewHandler(secret string, isAdmin func(int64) bool, log zerolog.Logger) *Handler {
	return &Handler{
		secret:  []byte(secret),
		isAdmin: isAdmin,
		log:     log.With().Str("component", "http").Logger(),
	}
}

// Routes builds the gin engine.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if len(h.secret) == 0 {
		h.log.Warn().Msg("API_JWT_SECRET is empty, /api and /ws are disabled")
		return r
	}

	api := r.Group("/api", RequireAdmin(h.secret, h.isAdmin))
	api.GET("/complaints", h.ListComplaints)
	api.GET("/complaints/export", h.ExportComplaints)

	r.GET("/ws", RequireAdmin(h.secret, h.isAdmin), h.ServeWebSocket)
	return r
}

// Healthz reports liveness and store reachability.
func (h *Handler) Healthz(c *gin.Context) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListComplaints returns the dataset as JSON.
func (h *Handler) ListComplaints(c *gin.Context) {
	rows, err := h.Dataset.GetComplaintDataset(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build dataset")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load complaints"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "complaints": rows})
}

// ExportComplaints streams the CSV report.
func (h *Handler) ExportComplaints(c *gin.Context) {
	all, err := h.Complaints.ListAll(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list complaints for export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load complaints"})
		return
	}
	doc, err := h.Exporter.Document(all, "")
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build export"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", doc.Data)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
