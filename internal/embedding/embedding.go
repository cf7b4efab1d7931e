package embedding

import "context"

// Vector is a single embedding. Dimension always equals len(Values).
type Vector struct {
	Values    []float32
	Dimension int
}

func newVector(values []float32) Vector {
	return Vector{Values: values, Dimension: len(values)}
}

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed embeds a single text after normalizing it.
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch embeds texts in one request. The result has the same
	// length and order as texts.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	// Dimension returns the best known dimension without a network call.
	Dimension() int

	// DetectDimension resolves the true dimension of the configured model,
	// probing the remote endpoint with testText when the model is not
	// registered. An empty testText probes with "test".
	DetectDimension(ctx context.Context, testText string) (int, error)

	Provider() string
	Model() string
}

// ModelSetter is implemented by providers that can switch models at runtime.
type ModelSetter interface {
	SetModel(ctx context.Context, model string) error
}

// Resolver reports whether Dimension is confirmed, either by the registry
// or by a response from the endpoint.
type Resolver interface {
	Resolved() bool
}
