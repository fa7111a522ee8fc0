/*
Package tracing provides request correlation and lightweight spans.

# Overview

Every HTTP request and surface connection gets a correlation id (a UUID,
or the caller's X-Correlation-ID). The id is stored in the request
context, echoed in the response header and attached to the log lines
written for that request, so one foreground event can be followed from
ingress through the authority to the command sent to the surface.

# Usage

	tracer := tracing.New("focusgate", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "surface.session")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	logger.Info("Intent received", tracing.Field(ctx))

# Performance

Spans are buffered (1000) and written by one collector goroutine. Submit
never blocks; a full buffer drops the span with a warning.
*/
package tracing
