package books

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-readthrough/result"
)

const (
	instrumentationName = "github.com/goliatone/go-readthrough/books"
	requestsMetric      = "readthrough.books.requests"
	outcomeSuccess      = "success"
)

type telemetry struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) telemetry {
	requests, err := mp.Meter(instrumentationName).Int64Counter(
		requestsMetric,
		metric.WithDescription("Book service operations by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		panic(fmt.Sprintf("books: create %s counter: %v", requestsMetric, err))
	}
	return telemetry{
		tracer:   tp.Tracer(instrumentationName),
		requests: requests,
	}
}

// start opens a span for operation. The returned func records the outcome
// (success or the first error kind) on the span and the request counter.
func (t telemetry) start(ctx context.Context, operation string) (context.Context, func(errs []result.Error)) {
	ctx, span := t.tracer.Start(ctx, "books."+operation)
	return ctx, func(errs []result.Error) {
		outcome := outcomeSuccess
		if len(errs) > 0 {
			outcome = errs[0].Kind.String()
			span.SetAttributes(attribute.String("error.code", errs[0].Code))
			span.SetStatus(codes.Error, errs[0].Code)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()

		t.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

func failures[T any](r result.Result[T]) []result.Error {
	if r.IsSuccess() {
		return nil
	}
	return r.Errors()
}

func voidFailures(r result.Void) []result.Error {
	if r.IsSuccess() {
		return nil
	}
	return r.Errors()
}
