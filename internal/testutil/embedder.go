package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// MockEmbedder produces deterministic embedding vectors for tests. Unknown
// content hashes to a stable pseudo-random unit vector; explicit vectors can
// be registered for precise similarity control.
//
// It implements ai.Embedder. Thread-safe.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder creates a mock embedder emitting dim-wide vectors.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float32), dim: dim}
}

// SetVector registers an explicit vector for content.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// Name implements ai.Embedder.
func (e *MockEmbedder) Name() string { return "mock/test-embedder" }

// Embed implements ai.Embedder.
func (e *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		text := documentText(doc)
		vec, ok := e.vectors[text]
		if !ok {
			vec = hashVector(text, e.dim)
		}
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func documentText(doc *ai.Document) string {
	var text string
	for _, part := range doc.Content {
		if part.IsText() {
			text += part.Text
		}
	}
	return text
}

// hashVector derives a stable unit vector from content.
func hashVector(content string, dim int) []float32 {
	sum := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		bits := binary.BigEndian.Uint32(sum[(i*4)%28:])
		v := float64(bits^uint32(i*2654435761)) / float64(math.MaxUint32)
		vec[i] = float32(v - 0.5)
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
