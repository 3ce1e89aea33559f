// Package vector provides append-only vector indexes with nearest-neighbor
// search over (embedding, text, metadata) entries.
//
// Three structural variants share one contract: "flat" scans every entry and
// is exact; "ivf" clusters the space with k-means and probes only the lists
// nearest the query; "hnsw" navigates a small-world graph. The approximate
// variants trade recall for sub-linear query cost, so their results (and
// save/load round-trips) are approximate by design; the flat variant is the
// reference the others are measured against.
package vector

import (
	"context"
	"errors"
)

// Variant names an index structure.
type Variant string

const (
	// VariantFlat is an exact linear scan (squared Euclidean distance).
	VariantFlat Variant = "flat"
	// VariantIVF partitions vectors into k-means cluster lists and probes
	// only the lists nearest the query.
	VariantIVF Variant = "ivf"
	// VariantHNSW searches a hierarchical navigable small-world graph.
	VariantHNSW Variant = "hnsw"
)

var (
	// ErrUnknownVariant is returned for a variant name outside the supported set.
	ErrUnknownVariant = errors.New("unknown index variant")
	// ErrDimensionMismatch is returned when an embedding's width differs from
	// the index's dimension, or when the embeddings, texts, and metadata
	// slices of an Add batch disagree in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrCorruptSnapshot is returned when the two halves of a persisted
	// snapshot disagree or cannot be read.
	ErrCorruptSnapshot = errors.New("corrupt index snapshot")
)

// NoThreshold disables distance filtering in Search. Any negative value works.
const NoThreshold = -1

// Result is a single nearest-neighbor hit. Distance is squared Euclidean;
// smaller means more similar.
type Result struct {
	Text     string
	Distance float64
	Metadata map[string]interface{}
}

// Index stores embeddings with their chunk text and metadata and answers
// nearest-neighbor queries. Entries are append-only: a failed Add leaves the
// index unchanged, and there is no update or delete. One writer at a time;
// searches may run in parallel with each other but are excluded from
// overlapping an in-progress Add (each implementation carries a read-write
// lock).
type Index interface {
	// Add appends a batch. texts must match embeddings in length; metadata
	// may be nil (each entry gets an empty map) or match in length too.
	Add(ctx context.Context, embeddings [][]float32, texts []string, metadata []map[string]interface{}) error
	// Search returns up to min(k, Size()) results ordered by ascending
	// distance, ties broken by insertion order. Results with distance greater
	// than threshold are excluded; pass NoThreshold to disable. An empty
	// index yields an empty result, never an error.
	Search(ctx context.Context, query []float32, k int, threshold float64) ([]*Result, error)
	// Save persists the index to a snapshot directory; Load restores it.
	Save(dir string) error
	Load(dir string) error
	Size() int
	Dimensions() int
	Variant() Variant
	Close() error
}
