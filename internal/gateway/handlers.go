package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"ctxembed/internal/embedding"
)

type embeddingsRequest struct {
	Input json.RawMessage `json:"input"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingsResponse struct {
	Model     string          `json:"model"`
	Dimension int             `json:"dimension"`
	Data      []embeddingData `json:"data"`
}

type dimensionResponse struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Resolved  bool   `json:"resolved"`
}

type modelInfo struct {
	ID          string `json:"id"`
	Dimension   int    `json:"dimension"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

type setModelRequest struct {
	Model string `json:"model"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if len(req.Input) == 0 || string(req.Input) == "null" {
		writeError(w, http.StatusBadRequest, "input is required", "")
		return
	}

	var (
		vecs []embedding.Vector
		err  error
	)
	var single string
	var batch []string
	switch {
	case json.Unmarshal(req.Input, &single) == nil:
		var v embedding.Vector
		v, err = s.provider.Embed(r.Context(), single)
		vecs = []embedding.Vector{v}
	case json.Unmarshal(req.Input, &batch) == nil && len(batch) > 0:
		vecs, err = s.provider.EmbedBatch(r.Context(), batch)
	default:
		writeError(w, http.StatusBadRequest, "input must be a string or a non-empty array of strings", "")
		return
	}
	if err != nil {
		writeProviderError(w, err)
		return
	}

	resp := embeddingsResponse{
		Model: s.provider.Model(),
		Data:  make([]embeddingData, len(vecs)),
	}
	for i, v := range vecs {
		resp.Data[i] = embeddingData{Index: i, Embedding: v.Values}
	}
	if len(vecs) > 0 {
		resp.Dimension = vecs[0].Dimension
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := embedding.Models()
	out := make([]modelInfo, len(models))
	for i, m := range models {
		out[i] = modelInfo{
			ID:          m.ModelID,
			Dimension:   m.Dimension,
			MaxTokens:   m.MaxTokens,
			Description: m.Description,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleDimension(w http.ResponseWriter, r *http.Request) {
	detect, _ := strconv.ParseBool(r.URL.Query().Get("detect"))

	var dim int
	if detect {
		var err error
		dim, err = s.provider.DetectDimension(r.Context(), "")
		if err != nil {
			writeProviderError(w, err)
			return
		}
	} else {
		dim = s.provider.Dimension()
	}

	writeJSON(w, http.StatusOK, dimensionResponse{
		Model:     s.provider.Model(),
		Dimension: dim,
		Resolved:  resolved(s.provider),
	})
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req setModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "")
		return
	}

	ms, ok := s.provider.(embedding.ModelSetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "provider does not support changing models", "")
		return
	}
	if err := ms.SetModel(r.Context(), req.Model); err != nil {
		writeProviderError(w, err)
		return
	}

	slog.Info("model changed via gateway", "model", req.Model)
	writeJSON(w, http.StatusOK, dimensionResponse{
		Model:     s.provider.Model(),
		Dimension: s.provider.Dimension(),
		Resolved:  true,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func resolved(p embedding.Provider) bool {
	if r, ok := p.(embedding.Resolver); ok {
		return r.Resolved()
	}
	return true
}

func writeProviderError(w http.ResponseWriter, err error) {
	var e *embedding.Error
	if errors.As(err, &e) {
		writeError(w, http.StatusBadGateway, e.Error(), e.Kind())
		return
	}
	slog.Error("embedding request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error(), "")
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}
