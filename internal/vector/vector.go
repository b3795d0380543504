package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Dim is the fixed dimensionality of every stored embedding. The
// document_chunks table declares VECTOR(FLOAT, 768); any other length is a
// caller error.
const Dim = 768

var ErrDimension = errors.New("embedding has wrong dimensionality")

// Embedding is a fixed-length vector representing a chunk's semantic content.
// Vectors arrive pre-computed from an external collaborator.
type Embedding []float32

func (e Embedding) Validate() error {
	if len(e) != Dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(e), Dim)
	}
	return nil
}

// EncodeJSON renders the embedding as a JSON array string. The warehouse has
// no native vector bind type, so the vector travels as TEXT and is
// reconstituted server-side via PARSE_JSON(?)::VECTOR(FLOAT, 768).
func (e Embedding) EncodeJSON() (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal([]float32(e))
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(b), nil
}

// ParseJSON is the inverse of EncodeJSON. It does not enforce Dim so tests
// and tooling can decode arbitrary vectors.
func ParseJSON(s string) (Embedding, error) {
	var e Embedding
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return e, nil
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Production
// scoring happens server-side via VECTOR_COSINE_SIMILARITY; this mirror
// exists for tests and local tooling.
func Cosine(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
