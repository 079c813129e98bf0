// Package middleware provides observability middleware for upload batches.
//
// Every middleware here implements upload.Middleware and wraps one call to
// upload.Processor.Process.
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware creates one span per request body. The span
// carries the body size and the moved, skipped and failed counts, and is
// marked as failed when the body is malformed. Relocators receive the span
// context, so S3 calls made by the AWS SDK join the trace.
//
//	processor := upload.NewProcessor(relocator,
//	    upload.WithMiddleware(middleware.OpenTelemetry()),
//	)
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("uploads"),
//	    middleware.WithBatchFilter(func(ctx context.Context, body []byte) bool {
//	        return len(body) > 0
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware counts batches and records:
//   - uprename_batches_total: Batches by status (ok, partial, malformed)
//   - uprename_outcomes_total: Records by outcome kind
//   - uprename_batch_duration_seconds: Batch processing duration histogram
//   - uprename_bytes_relocated_total: Declared size of relocated uploads
//
//	processor := upload.NewProcessor(relocator,
//	    upload.WithMiddleware(middleware.Prometheus()),
//	)
//
// Then expose the metrics endpoint:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// Order matters: the first middleware passed to upload.WithMiddleware is the
// outermost, so put Prometheus first to include tracing overhead in the
// duration histogram.
package middleware
