package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder derives embeddings from token hashes. It needs no model file
// and is fully deterministic, which makes it the default for tests and for
// builds without the ONNX runtime. Vectors are unit-normalized; texts sharing
// tokens get correlated vectors, so nearest-neighbor results are stable and
// roughly meaningful, but this is not a semantic model.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash-based embedder with the given dimension
// (384 when non-positive, matching the default model width).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the deterministic embedding for text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, tok := range SplitWords(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		seed := h.Sum64()
		for i := 0; i < e.dimensions; i++ {
			emb[i] += float32(math.Sin(float64(seed%100003) * float64(i+1) * 1e-4))
		}
	}
	if isZero(emb) {
		// Blank text still gets a valid unit vector.
		emb[0] = 1
	}
	NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding width.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}

func isZero(x []float32) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}
