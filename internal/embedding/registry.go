package embedding

import "sort"

const (
	DefaultModel     = "text-embedding-3-small"
	DefaultDimension = 1536
	DefaultMaxTokens = 8192
)

// ModelMetadata describes a known embedding model.
type ModelMetadata struct {
	ModelID     string
	Dimension   int
	MaxTokens   int
	Description string
}

var knownModels = map[string]ModelMetadata{
	// OpenAI
	"text-embedding-3-small": {
		Dimension:   1536,
		MaxTokens:   8192,
		Description: "High performance and cost-effective embedding model (recommended)",
	},
	"text-embedding-3-large": {
		Dimension:   3072,
		MaxTokens:   8192,
		Description: "Highest performance embedding model with larger dimensions",
	},
	"text-embedding-ada-002": {
		Dimension:   1536,
		MaxTokens:   8192,
		Description: "Legacy model (use text-embedding-3-small instead)",
	},

	// BGE, commonly served through vLLM
	"BAAI/bge-large-en-v1.5": {
		Dimension:   1024,
		MaxTokens:   512,
		Description: "BGE large English embedding model (512 token limit)",
	},
	"BAAI/bge-base-en-v1.5": {
		Dimension:   768,
		MaxTokens:   512,
		Description: "BGE base English embedding model (512 token limit)",
	},
	"BAAI/bge-small-en-v1.5": {
		Dimension:   384,
		MaxTokens:   512,
		Description: "BGE small English embedding model (512 token limit)",
	},
	"BAAI/bge-m3": {
		Dimension:   1024,
		MaxTokens:   8192,
		Description: "BGE M3 multilingual embedding model (8192 token limit)",
	},

	"nomic-ai/nomic-embed-text-v1.5": {
		Dimension:   768,
		MaxTokens:   8192,
		Description: "Nomic embed text model (8192 token limit)",
	},

	"intfloat/e5-large-v2": {
		Dimension:   1024,
		MaxTokens:   512,
		Description: "E5 large English embedding model (512 token limit)",
	},
	"intfloat/e5-base-v2": {
		Dimension:   768,
		MaxTokens:   512,
		Description: "E5 base English embedding model (512 token limit)",
	},
}

// LookupModel returns the metadata for a registered model. Models that are
// not registered are custom: their dimension has to be detected remotely.
func LookupModel(id string) (ModelMetadata, bool) {
	m, ok := knownModels[id]
	if !ok {
		return ModelMetadata{}, false
	}
	m.ModelID = id
	return m, true
}

// Models returns every registered model sorted by ID.
func Models() []ModelMetadata {
	out := make([]ModelMetadata, 0, len(knownModels))
	for id := range knownModels {
		m, _ := LookupModel(id)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModelID < out[j].ModelID
	})
	return out
}
