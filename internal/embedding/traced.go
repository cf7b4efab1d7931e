package embedding

import (
	"context"
	"errors"
	"fmt"

	"ctxembed/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedProvider struct {
	inner Provider
}

var _ Provider = (*tracedProvider)(nil)

// Traced wraps p so every embedding call is recorded as a span.
func Traced(p Provider) Provider {
	return &tracedProvider{inner: p}
}

func (t *tracedProvider) Dimension() int   { return t.inner.Dimension() }
func (t *tracedProvider) Provider() string { return t.inner.Provider() }
func (t *tracedProvider) Model() string    { return t.inner.Model() }

func (t *tracedProvider) Embed(ctx context.Context, text string) (Vector, error) {
	ctx, span := t.start(ctx, "embedding.embed", 1)
	defer span.End()

	v, err := t.inner.Embed(ctx, text)
	if err != nil {
		recordError(span, err)
		return v, err
	}
	span.SetAttributes(attribute.Int("gen_ai.embeddings.dimension.count", v.Dimension))
	return v, nil
}

func (t *tracedProvider) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	ctx, span := t.start(ctx, "embedding.embed_batch", len(texts))
	defer span.End()

	vecs, err := t.inner.EmbedBatch(ctx, texts)
	if err != nil {
		recordError(span, err)
		return vecs, err
	}
	if len(vecs) > 0 {
		span.SetAttributes(attribute.Int("gen_ai.embeddings.dimension.count", vecs[0].Dimension))
	}
	return vecs, nil
}

func (t *tracedProvider) DetectDimension(ctx context.Context, testText string) (int, error) {
	ctx, span := t.start(ctx, "embedding.detect_dimension", 1)
	defer span.End()

	dim, err := t.inner.DetectDimension(ctx, testText)
	if err != nil {
		recordError(span, err)
		return dim, err
	}
	span.SetAttributes(attribute.Int("gen_ai.embeddings.dimension.count", dim))
	return dim, nil
}

// SetModel forwards to the inner provider if it implements ModelSetter.
func (t *tracedProvider) SetModel(ctx context.Context, model string) error {
	ms, ok := t.inner.(ModelSetter)
	if !ok {
		return fmt.Errorf("provider %s does not support changing models", t.inner.Provider())
	}
	ctx, span := trace.Tracer().Start(ctx, "embedding.set_model",
		oteltrace.WithAttributes(attribute.String("gen_ai.request.model", model)),
	)
	defer span.End()

	if err := ms.SetModel(ctx, model); err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

// Resolved forwards to the inner provider if it implements Resolver.
func (t *tracedProvider) Resolved() bool {
	if r, ok := t.inner.(Resolver); ok {
		return r.Resolved()
	}
	return true
}

func (t *tracedProvider) start(ctx context.Context, name string, inputs int) (context.Context, oteltrace.Span) {
	return trace.Tracer().Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.operation.name", "embeddings"),
			attribute.String("gen_ai.system", t.inner.Provider()),
			attribute.String("gen_ai.request.model", t.inner.Model()),
			attribute.Int("embedding.input.count", inputs),
		),
	)
}

func recordError(span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var e *Error
	if errors.As(err, &e) {
		span.SetAttributes(attribute.String("error.type", e.Kind()))
	}
}
