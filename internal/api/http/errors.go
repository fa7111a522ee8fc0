package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
)

// StatusFor maps an authority error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authority.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, authority.ErrStalePhase),
		errors.Is(err, authority.ErrQuotaExhausted),
		errors.Is(err, authority.ErrNoIntervention):
		return http.StatusConflict
	case errors.Is(err, authority.ErrNotRecovered):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {ok:false} reply for err and attaches err to the
// gin context for the tracing middleware.
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}
