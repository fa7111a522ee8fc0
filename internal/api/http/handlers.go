package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/api/intent"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/tracing"
)

// Version is reported by the root and health endpoints.
const Version = "0.3.0"

// Arbiter is the authority as seen by the HTTP API.
type Arbiter interface {
	intent.Arbiter
	OnForegroundEntry(ctx context.Context, app string, ts time.Time) (authority.Decision, error)
	Snapshot() authority.Snapshot
	Quota() (remaining, max int)
}

// SurfaceCounter reports connected surfaces.
type SurfaceCounter interface {
	Connected() int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	arbiter  Arbiter
	surfaces SurfaceCounter
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	store    string
}

// NewHandlers creates a new handler set. surfaces and metrics may be nil.
func NewHandlers(arbiter Arbiter, surfaces SurfaceCounter, metrics *monitoring.Metrics, logger *zap.Logger, store string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		arbiter:  arbiter,
		surfaces: surfaces,
		metrics:  metrics,
		logger:   logger,
		store:    store,
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")
	v1.GET("/state", h.State)
	v1.GET("/metrics/summary", h.MetricsSummary)
	v1.POST("/events/foreground", h.Foreground)
	v1.POST("/intents/*name", h.Intent)
	v1.POST("/logs", h.StreamLogs)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "focusgate",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	remaining, max := h.arbiter.Quota()
	surfaces := 0
	if h.surfaces != nil {
		surfaces = h.surfaces.Connected()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"version":  Version,
		"store":    h.store,
		"quota":    gin.H{"remaining": remaining, "max": max},
		"surfaces": surfaces,
	})
}

// State returns the authority snapshot
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.arbiter.Snapshot())
}

// MetricsSummary returns the tracked metric values
func (h *Handlers) MetricsSummary(c *gin.Context) {
	snap := h.metrics.Snapshot()
	errorRate := 0.0
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}
	remaining, max := h.arbiter.Quota()
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"metrics":   snap,
		"errorRate": errorRate,
		"quota":     gin.H{"remaining": remaining, "max": max},
	})
}

// ForegroundRequest is the ForegroundEntered event.
type ForegroundRequest struct {
	AppID     string    `json:"appId"`
	Timestamp time.Time `json:"timestamp"`
}

// Foreground ingests a foreground event and returns the decision
func (h *Handlers) Foreground(c *gin.Context) {
	var req ForegroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid event: " + err.Error()})
		return
	}

	d, err := h.arbiter.OnForegroundEntry(c.Request.Context(), req.AppID, req.Timestamp)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "decision": d})
}

// Intent applies the intent named by the path
func (h *Handlers) Intent(c *gin.Context) {
	name := strings.Trim(c.Param("name"), "/")

	var req intent.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid intent: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := intent.Execute(ctx, h.arbiter, name, req); err != nil {
		h.logger.Debug("Intent rejected",
			zap.String("intent", name),
			zap.String("app", req.AppID),
			zap.Error(err),
			tracing.Field(ctx))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent.Reply{OK: true})
}
