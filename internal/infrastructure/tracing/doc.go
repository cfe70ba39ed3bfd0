/*
Package tracing provides lightweight request tracing on top of zap.

# Overview

Every inbound request gets a span; the fetcher opens child spans per
fetch run and per attempt. Finished spans are handed to a buffered
collector goroutine that logs them, so tracing never blocks a request.

# Usage

	tracer := tracing.New("cronograma", logger.Logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "scrape.attempt")
	span.SetTag("attempt", "1")
	err := run(ctx)
	tracer.End(span, err)

# Trace Format

Trace context travels in two headers:
  - X-Trace-ID: identifier for the whole request flow
  - X-Span-ID: identifier for the current operation
*/
package tracing
