package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ctxembed/internal/metrics"
)

const (
	providerOpenAI = "OpenAI"
	probeText      = "test"
)

// OpenAIConfig configures an OpenAI-compatible embedding client.
type OpenAIConfig struct {
	Model     string
	APIKey    string
	BaseURL   string // optional, for compatible servers such as vLLM
	MaxTokens int    // optional override of the registry token budget
}

type OpenAIOption func(*OpenAI)

func WithLogger(l *slog.Logger) OpenAIOption {
	return func(o *OpenAI) { o.log = l }
}

func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.httpClient = c }
}

// OpenAI implements Provider using the OpenAI-compatible embeddings endpoint.
//
// The working dimension comes from the registry for known models and from
// the endpoint for custom ones. Every successful embed call overwrites it
// with the length of the returned vectors.
type OpenAI struct {
	client            *openai.Client
	httpClient        *http.Client
	log               *slog.Logger
	maxTokensOverride int

	// resolveMu serializes dimension resolution and model changes.
	resolveMu sync.Mutex

	mu        sync.Mutex
	model     string
	dimension int
	maxTokens int
	resolved  bool
}

type clientState struct {
	model     string
	dimension int
	maxTokens int
	resolved  bool
}

func NewOpenAI(cfg OpenAIConfig, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		log:               slog.Default(),
		maxTokensOverride: cfg.MaxTokens,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	reqOpts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(o.httpClient),
	}
	if cfg.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	o.client = &client

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	o.model = model
	o.maxTokens = o.maxTokensFor(model)
	o.dimension = DefaultDimension
	if meta, ok := LookupModel(model); ok {
		o.dimension = meta.Dimension
		o.resolved = true
	}
	return o
}

func (o *OpenAI) Provider() string { return providerOpenAI }

func (o *OpenAI) Model() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// MaxTokens returns the token budget used for truncation.
func (o *OpenAI) MaxTokens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxTokens
}

func (o *OpenAI) Resolved() bool {
	return o.state().resolved
}

// Dimension returns the cached dimension. For a custom model whose
// dimension has not been resolved yet the value is a guess, and a warning
// is logged.
func (o *OpenAI) Dimension() int {
	st := o.state()
	if !st.resolved {
		o.log.Warn("embedding dimension not yet resolved for custom model, value may be inaccurate",
			"model", st.model,
			"dimension", st.dimension,
			"hint", "call DetectDimension first",
		)
	}
	return st.dimension
}

func (o *OpenAI) DetectDimension(ctx context.Context, testText string) (int, error) {
	o.resolveMu.Lock()
	defer o.resolveMu.Unlock()

	st := o.state()
	if meta, ok := LookupModel(st.model); ok {
		return meta.Dimension, nil
	}
	if testText == "" {
		testText = probeText
	}
	dim, err := o.probe(ctx, st.model, st.maxTokens, testText)
	if err != nil {
		return 0, err
	}
	o.record(st.model, dim)
	return dim, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) (Vector, error) {
	st, err := o.resolveDimension(ctx)
	if err != nil {
		return Vector{}, err
	}

	input := o.normalizer(st.maxTokens).Preprocess(text)
	vecs, err := o.create(ctx, OpEmbed, st.model, openai.EmbeddingNewParamsInputUnion{
		OfString: openai.String(input),
	}, 1)
	if err != nil {
		return Vector{}, err
	}

	o.record(st.model, len(vecs[0]))
	return newVector(vecs[0]), nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	st, err := o.resolveDimension(ctx)
	if err != nil {
		return nil, err
	}

	inputs := o.normalizer(st.maxTokens).PreprocessBatch(texts)
	vecs, err := o.create(ctx, OpBatch, st.model, openai.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: inputs,
	}, len(inputs))
	if err != nil {
		return nil, err
	}

	dim := len(vecs[0])
	result := make([]Vector, len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, o.fail(OpBatch, st.model,
				fmt.Errorf("inconsistent dimensions in batch response: %d and %d", dim, len(v)))
		}
		result[i] = newVector(v)
	}

	o.record(st.model, dim)
	return result, nil
}

// SetModel switches to model and resolves its dimension before returning:
// from the registry when the model is known, otherwise with a remote probe.
// If the probe fails the previous model stays active.
func (o *OpenAI) SetModel(ctx context.Context, model string) error {
	o.resolveMu.Lock()
	defer o.resolveMu.Unlock()

	if model == "" {
		model = DefaultModel
	}
	maxTokens := o.maxTokensFor(model)

	dim := 0
	if meta, ok := LookupModel(model); ok {
		dim = meta.Dimension
	} else {
		var err error
		dim, err = o.probe(ctx, model, maxTokens, probeText)
		if err != nil {
			return err
		}
	}

	o.mu.Lock()
	o.model = model
	o.dimension = dim
	o.maxTokens = maxTokens
	o.resolved = true
	o.mu.Unlock()

	o.log.Info("embedding model changed", "model", model, "dimension", dim, "max_tokens", maxTokens)
	return nil
}

// resolveDimension applies the registry value for known models and probes
// custom models with a remote request.
func (o *OpenAI) resolveDimension(ctx context.Context) (clientState, error) {
	st := o.state()
	if meta, ok := LookupModel(st.model); ok {
		if st.dimension != meta.Dimension {
			o.record(st.model, meta.Dimension)
			st.dimension = meta.Dimension
		}
		return st, nil
	}

	// Custom models are probed before every request.
	o.resolveMu.Lock()
	defer o.resolveMu.Unlock()

	st = o.state()
	if meta, ok := LookupModel(st.model); ok {
		o.record(st.model, meta.Dimension)
		st.dimension = meta.Dimension
		return st, nil
	}
	dim, err := o.probe(ctx, st.model, st.maxTokens, probeText)
	if err != nil {
		return st, err
	}
	o.record(st.model, dim)
	st.dimension = dim
	st.resolved = true
	return st, nil
}

func (o *OpenAI) probe(ctx context.Context, model string, maxTokens int, text string) (int, error) {
	input := o.normalizer(maxTokens).Preprocess(text)
	vecs, err := o.create(ctx, OpDetect, model, openai.EmbeddingNewParamsInputUnion{
		OfString: openai.String(input),
	}, 1)
	if err != nil {
		return 0, err
	}
	o.log.Debug("detected embedding dimension", "model", model, "dimension", len(vecs[0]))
	return len(vecs[0]), nil
}

// create issues one embeddings request and returns the vectors ordered by
// their response index.
func (o *OpenAI) create(ctx context.Context, op Op, model string, input openai.EmbeddingNewParamsInputUnion, n int) ([][]float32, error) {
	metrics.RequestsTotal.WithLabelValues(providerOpenAI, string(op)).Inc()

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          model,
		Input:          input,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, o.fail(op, model, err)
	}
	if len(resp.Data) != n {
		return nil, o.fail(op, model, fmt.Errorf("expected %d embeddings, got %d", n, len(resp.Data)))
	}

	result := make([][]float32, n)
	for _, emb := range resp.Data {
		if emb.Index < 0 || emb.Index >= int64(n) || result[emb.Index] != nil {
			return nil, o.fail(op, model, fmt.Errorf("unexpected embedding index %d", emb.Index))
		}
		if len(emb.Embedding) == 0 {
			return nil, o.fail(op, model, fmt.Errorf("empty embedding at index %d", emb.Index))
		}
		vec := make([]float32, len(emb.Embedding))
		for j, v := range emb.Embedding {
			vec[j] = float32(v)
		}
		result[emb.Index] = vec
	}
	return result, nil
}

func (o *OpenAI) fail(op Op, model string, err error) error {
	e := newError(op, model, err)
	metrics.FailuresTotal.WithLabelValues(providerOpenAI, string(op), e.Kind()).Inc()
	o.log.Debug("embedding request failed", "op", op, "model", model, "error", err)
	return e
}

// record stores dim as the working dimension, unless the model changed
// while the caller's request was in flight.
func (o *OpenAI) record(model string, dim int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.model != model {
		return
	}
	o.dimension = dim
	o.resolved = true
}

func (o *OpenAI) state() clientState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return clientState{
		model:     o.model,
		dimension: o.dimension,
		maxTokens: o.maxTokens,
		resolved:  o.resolved,
	}
}

func (o *OpenAI) maxTokensFor(model string) int {
	if o.maxTokensOverride > 0 {
		return o.maxTokensOverride
	}
	if meta, ok := LookupModel(model); ok {
		return meta.MaxTokens
	}
	return DefaultMaxTokens
}

func (o *OpenAI) normalizer(maxTokens int) Normalizer {
	return Normalizer{MaxTokens: maxTokens, Logger: o.log}
}
