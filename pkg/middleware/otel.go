package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/uprename/pkg/upload"
)

// Default tracer name for upload batches.
const defaultTracerName = "uprename"

// SpanName is the name of the span created for every batch.
const SpanName = "uprename.batch"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "uprename").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider.
	TracerProvider trace.TracerProvider

	// RecordOutcomes adds a span event for every skipped or failed record.
	// Enabled by default.
	RecordOutcomes bool

	// Filter determines which batches to trace.
	// Return true to trace the batch, false to skip.
	// If nil, all batches are traced.
	Filter func(ctx context.Context, body []byte) bool

	// AttributeExtractor extracts custom attributes from the context.
	// Called for each traced batch.
	AttributeExtractor func(ctx context.Context) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithRecordOutcomes enables/disables span events for skipped and failed records.
func WithRecordOutcomes(record bool) OTelOption {
	return func(c *OTelConfig) {
		c.RecordOutcomes = record
	}
}

// WithBatchFilter sets a filter function for batches.
func WithBatchFilter(filter func(ctx context.Context, body []byte) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ctx context.Context) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:     defaultTracerName,
		RecordOutcomes: true,
	}
}

// OpenTelemetry creates middleware that traces every upload batch.
//
// The middleware:
//   - Creates a span per batch carrying the body size
//   - Passes the span context to the relocator, so S3 calls join the trace
//   - Records moved, skipped and failed counts as span attributes
//   - Marks the span as failed when the body is malformed
//
// Example:
//
//	processor := upload.NewProcessor(relocator,
//	    upload.WithMiddleware(
//	        middleware.OpenTelemetry(middleware.WithTracerName("uploads")),
//	    ),
//	)
//
// Configure the global tracer provider in main() before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) upload.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	config.tracer = tp.Tracer(config.TracerName)

	return upload.MiddlewareFunc(func(ctx context.Context, body []byte, next func(context.Context) *upload.Batch) *upload.Batch {
		if config.Filter != nil && !config.Filter(ctx, body) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.Int("uprename.body_bytes", len(body)),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ctx)...)
		}

		spanCtx, span := config.tracer.Start(ctx, SpanName,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(time.Now()),
		)
		defer span.End()

		batch := next(spanCtx)

		span.SetAttributes(
			attribute.Int("uprename.moved", batch.Moved()),
			attribute.Int("uprename.skipped", batch.Skipped()),
			attribute.Int("uprename.failed", batch.Failed()),
			attribute.Int("uprename.cursor", batch.Cursor),
		)

		if config.RecordOutcomes {
			for _, o := range batch.Outcomes {
				if o.Kind == upload.KindMoved {
					continue
				}
				span.AddEvent("upload."+o.Kind.String(), trace.WithAttributes(
					attribute.String("uprename.name", o.Name),
					attribute.String("uprename.reason", o.Reason),
				))
			}
		}

		if batch.Err != nil {
			if me := batch.Malformed(); me != nil {
				span.SetAttributes(
					attribute.String("uprename.malformed_field", me.Field.String()),
					attribute.Int("uprename.malformed_offset", me.Offset),
				)
			}
			span.RecordError(batch.Err)
			span.SetStatus(codes.Error, batch.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return batch
	})
}
