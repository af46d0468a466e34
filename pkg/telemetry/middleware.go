package telemetry

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware 每個請求建立 server span，並延續傳入的 W3C trace context
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := otel.Tracer(instrumentationName).Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(c.Request.Method),
				semconv.HTTPRoute(route),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		if span.SpanContext().HasTraceID() {
			c.Header(TraceIDHeader, span.SpanContext().TraceID().String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= 500 {
			span.SetAttributes(attribute.Bool("error", true))
		}
	}
}
