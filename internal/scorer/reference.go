package scorer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// ReferenceSet holds the AI-pattern and human-pattern vectors embeddings are compared against.
//
// The built-in placeholder vectors carry no discriminative value; deployments
// that rely on the embedding path should load real reference data.
type ReferenceSet struct {
	AI    []float64 `json:"ai"`
	Human []float64 `json:"human"`

	placeholder bool
	mu          sync.Mutex
	generated   map[int][2][]float64
	warnOnce    sync.Once
}

// PlaceholderReferenceSet returns a set whose vectors are generated to match
// the dimensionality of each embedding
func PlaceholderReferenceSet() *ReferenceSet {
	return &ReferenceSet{
		placeholder: true,
		generated:   make(map[int][2][]float64),
	}
}

// LoadReferenceSet reads {"ai": [...], "human": [...]} from path
func LoadReferenceSet(path string) (*ReferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference vectors: %w", err)
	}

	var set ReferenceSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse reference vectors: %w", err)
	}
	if len(set.AI) == 0 || len(set.Human) == 0 {
		return nil, fmt.Errorf("reference vectors must be non-empty")
	}
	if len(set.AI) != len(set.Human) {
		return nil, fmt.Errorf("reference vectors differ in length: ai=%d human=%d", len(set.AI), len(set.Human))
	}

	return &set, nil
}

// IsPlaceholder reports whether the set uses generated placeholder vectors
func (r *ReferenceSet) IsPlaceholder() bool {
	return r.placeholder
}

// Vectors returns the AI and human reference vectors for an embedding of dim dimensions
func (r *ReferenceSet) Vectors(dim int) (ai, human []float64) {
	if !r.placeholder {
		if len(r.AI) != dim {
			slog.Warn("reference vector dimension mismatch", "reference_dim", len(r.AI), "embedding_dim", dim)
		}
		return r.AI, r.Human
	}

	r.warnOnce.Do(func() {
		slog.Warn("embedding scoring uses placeholder reference vectors; configure REFERENCE_VECTORS_PATH for meaningful results")
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	if pair, ok := r.generated[dim]; ok {
		return pair[0], pair[1]
	}

	ai = make([]float64, dim)
	human = make([]float64, dim)
	for i := 0; i < dim; i++ {
		ai[i] = 0.1
		if i%2 == 0 {
			human[i] = 0.1
		} else {
			human[i] = -0.1
		}
	}
	r.generated[dim] = [2][]float64{ai, human}

	return ai, human
}
