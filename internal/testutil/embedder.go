package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder implements ai.Embedder with deterministic hash-derived
// vectors: identical text always embeds to the identical vector, and
// different texts almost surely differ. No network, no API key.
type MockEmbedder struct {
	// Dimensions of the produced vectors. Zero means 768, matching
	// the documents schema.
	Dimensions int

	// Err, when set, fails every Embed call.
	Err error
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) Register(_ api.Registry) {}

func (m *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	dims := m.Dimensions
	if dims == 0 {
		dims = 768
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: hashVector(text, dims),
		})
	}
	return resp, nil
}

// hashVector expands a sha256 digest into a unit-length float vector.
func hashVector(text string, dims int) []float32 {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float32, dims)
	var norm float64
	for i := range vec {
		word := binary.BigEndian.Uint32(digest[(i*4)%len(digest):][:4])
		// Mix the index in so dimensions beyond the digest differ.
		word ^= uint32(i) * 2654435761
		v := float64(int32(word)) / math.MaxInt32
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
