package tracing

import (
	"github.com/gin-gonic/gin"
)

// HeaderTraceID carries the correlation id in requests and responses.
const HeaderTraceID = "X-Correlation-ID"

// HTTPMiddleware creates Gin middleware that assigns every request a
// correlation id (taken from the request header when present) and records
// a span for it.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(HeaderTraceID); incoming != "" && len(incoming) <= 128 {
			ctx = WithTraceID(ctx, TraceID(incoming))
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, name)
		span.SetTag("http.method", c.Request.Method)

		c.Request = c.Request.WithContext(ctx)
		c.Set(string(traceIDKey), string(span.TraceID))
		c.Header(HeaderTraceID, string(span.TraceID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		span.Finish()
		tracer.Submit(span)
	}
}
