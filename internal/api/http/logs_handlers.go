package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxLogEntries caps one log batch from a surface.
const maxLogEntries = 100

// SurfaceLogEntry is one log line written by a surface.
type SurfaceLogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// SurfaceLogRequest is a batch of log lines from one surface.
type SurfaceLogRequest struct {
	SurfaceID string            `json:"surfaceId"`
	Entries   []SurfaceLogEntry `json:"entries"`
}

// StreamLogs writes surface log lines into the service log so both sides
// of an arbitration show up in one place.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req SurfaceLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid log request format"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "no log entries provided"})
		return
	}
	if len(req.Entries) > maxLogEntries {
		req.Entries = req.Entries[:maxLogEntries]
	}

	logger := h.logger.With(zap.String("source", "surface"), zap.String("surface", req.SurfaceID))
	for _, entry := range req.Entries {
		logSurfaceEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "received": len(req.Entries)})
}

func logSurfaceEntry(logger *zap.Logger, entry SurfaceLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+1)
	fields = append(fields, zap.String("surface_ts", entry.Timestamp))
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
