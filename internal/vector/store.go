package vector

import (
	"fmt"
	"sort"
)

// entryStore holds the parallel entry slices shared by every variant. The
// owning index guards it with its own lock.
type entryStore struct {
	dims     int
	vectors  [][]float32
	texts    []string
	metadata []map[string]interface{}
}

func newEntryStore(dims int) *entryStore {
	return &entryStore{dims: dims}
}

func (s *entryStore) size() int {
	return len(s.vectors)
}

// validate checks a whole Add batch before anything is appended, so a failed
// Add never leaves a partial batch behind.
func (s *entryStore) validate(embeddings [][]float32, texts []string, metadata []map[string]interface{}) error {
	if len(embeddings) != len(texts) {
		return fmt.Errorf("%w: %d embeddings, %d texts", ErrDimensionMismatch, len(embeddings), len(texts))
	}
	if metadata != nil && len(metadata) != len(embeddings) {
		return fmt.Errorf("%w: %d embeddings, %d metadata entries", ErrDimensionMismatch, len(embeddings), len(metadata))
	}
	for i, emb := range embeddings {
		if len(emb) != s.dims {
			return fmt.Errorf("%w: embedding %d has %d dimensions, index expects %d", ErrDimensionMismatch, i, len(emb), s.dims)
		}
	}
	return nil
}

// append copies the batch into the store. Callers must have validated first.
func (s *entryStore) append(embeddings [][]float32, texts []string, metadata []map[string]interface{}) {
	for i, emb := range embeddings {
		vec := make([]float32, s.dims)
		copy(vec, emb)
		s.vectors = append(s.vectors, vec)
		s.texts = append(s.texts, texts[i])
		if metadata != nil && metadata[i] != nil {
			s.metadata = append(s.metadata, metadata[i])
		} else {
			s.metadata = append(s.metadata, map[string]interface{}{})
		}
	}
}

// result materializes the hit for one entry ordinal.
func (s *entryStore) result(ordinal int, distance float64) *Result {
	return &Result{
		Text:     s.texts[ordinal],
		Distance: distance,
		Metadata: s.metadata[ordinal],
	}
}

// scored pairs an entry ordinal with its distance from the query.
type scored struct {
	ordinal  int
	distance float64
}

// rank sorts candidates by ascending distance (insertion order breaks ties),
// applies the threshold, and returns up to k results.
func (s *entryStore) rank(candidates []scored, k int, threshold float64) []*Result {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].ordinal < candidates[j].ordinal
	})
	results := make([]*Result, 0, k)
	for _, c := range candidates {
		if len(results) >= k {
			break
		}
		if threshold >= 0 && c.distance > threshold {
			continue
		}
		results = append(results, s.result(c.ordinal, c.distance))
	}
	return results
}

// scanAll computes the distance from query to every entry (the exact path).
func (s *entryStore) scanAll(query []float32) []scored {
	candidates := make([]scored, len(s.vectors))
	for i, vec := range s.vectors {
		candidates[i] = scored{ordinal: i, distance: squaredL2(query, vec)}
	}
	return candidates
}

// squaredL2 returns the squared Euclidean distance between two equal-length
// vectors.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
