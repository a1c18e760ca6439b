package tracing

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pitchdeck/internal/identity"
	obscontext "github.com/smallbiznis/pitchdeck/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "pitchdeck/http"

// GinMiddleware opens a server span per request. Caller and organisation
// attributes are attached once the auth middlewares further down the chain ran.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(instrumentationName)
	return func(c *gin.Context) {
		parent := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		finishSpan(c, span, time.Since(start))
	}
}

func finishSpan(c *gin.Context, span trace.Span, elapsed time.Duration) {
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	status := c.Writer.Status()
	span.SetName(c.Request.Method + " " + route)

	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
		attribute.Int64("http.server_duration_ms", elapsed.Milliseconds()),
	}
	reqCtx := c.Request.Context()
	if caller, ok := identity.FromContext(reqCtx); ok {
		attrs = append(attrs,
			attribute.String("enduser.id", caller.UserID.String()),
			attribute.String("enduser.role", caller.Role.String()),
		)
	}
	if orgID := obscontext.OrgIDFromContext(reqCtx); orgID != "" {
		attrs = append(attrs, attribute.String("org_id", orgID))
	}
	span.SetAttributes(SafeAttributes(attrs...)...)

	if status < http.StatusInternalServerError {
		return
	}
	if lastErr := c.Errors.Last(); lastErr != nil {
		if safeErr := SafeError(lastErr.Err); safeErr != nil {
			span.RecordError(safeErr)
		}
	}
	span.SetStatus(codes.Error, http.StatusText(status))
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
