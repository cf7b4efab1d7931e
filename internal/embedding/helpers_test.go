package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeEndpoint is an OpenAI-compatible /embeddings server. It answers
// with vectors of length dim whose first element is index+1, listing the
// data in reverse order so index handling is exercised.
type fakeEndpoint struct {
	srv *httptest.Server

	mu      sync.Mutex
	dim     int
	status  int
	message string
	calls   int
	inputs  [][]string
	models  []string
	formats []string
}

func newFakeEndpoint(t *testing.T, dim int) *fakeEndpoint {
	t.Helper()
	f := &fakeEndpoint{dim: dim}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if !strings.HasSuffix(r.URL.Path, "/embeddings") {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Model          string          `json:"model"`
		Input          json.RawMessage `json:"input"`
		EncodingFormat string          `json:"encoding_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var inputs []string
	var single string
	if err := json.Unmarshal(req.Input, &single); err == nil {
		inputs = []string{single}
	} else if err := json.Unmarshal(req.Input, &inputs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.inputs = append(f.inputs, inputs)
	f.models = append(f.models, req.Model)
	f.formats = append(f.formats, req.EncodingFormat)

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		fmt.Fprintf(w, `{"error":{"message":%q,"type":"invalid_request_error","param":null,"code":null}}`, f.message)
		return
	}

	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	data := make([]item, len(inputs))
	for i := range inputs {
		emb := make([]float64, f.dim)
		emb[0] = float64(i + 1)
		data[len(inputs)-1-i] = item{Object: "embedding", Index: i, Embedding: emb}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func (f *fakeEndpoint) setDim(dim int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dim = dim
}

func (f *fakeEndpoint) fail(status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.message = message
}

func (f *fakeEndpoint) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEndpoint) lastInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

func (f *fakeEndpoint) client(t *testing.T, cfg OpenAIConfig, log *slog.Logger) *OpenAI {
	t.Helper()
	cfg.APIKey = "test-key"
	cfg.BaseURL = f.srv.URL
	return NewOpenAI(cfg, WithLogger(log), WithHTTPClient(f.srv.Client()))
}

// logBuffer captures JSON log records.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// records returns every record whose msg equals msg.
func (b *logBuffer) records(msg string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(b.buf.String(), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// stubProvider is an in-memory Provider used to test wrappers.
type stubProvider struct {
	mu       sync.Mutex
	model    string
	dim      int
	resolved bool
	err      error
	embedded [][]string
	// switchTo, when set, replaces model during the next embed call.
	switchTo string
}

func newStubProvider(model string, dim int) *stubProvider {
	return &stubProvider{model: model, dim: dim, resolved: true}
}

func (s *stubProvider) vector(text string) []float32 {
	v := make([]float32, s.dim)
	v[0] = float32(len(text))
	return v
}

func (s *stubProvider) Embed(ctx context.Context, text string) (Vector, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Vector{}, err
	}
	return vecs[0], nil
}

func (s *stubProvider) EmbedBatch(_ context.Context, texts []string) ([]Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.embedded = append(s.embedded, append([]string(nil), texts...))
	if s.switchTo != "" {
		s.model, s.switchTo = s.switchTo, ""
	}
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = newVector(s.vector(t))
	}
	s.resolved = true
	return out, nil
}

func (s *stubProvider) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

func (s *stubProvider) DetectDimension(context.Context, string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.resolved = true
	return s.dim, nil
}

func (s *stubProvider) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

func (s *stubProvider) SetModel(_ context.Context, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	return nil
}

func (s *stubProvider) Provider() string { return "stub" }

func (s *stubProvider) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *stubProvider) embedCalls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedded
}
