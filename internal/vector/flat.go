package vector

import (
	"context"
	"fmt"
	"sync"
)

// FlatIndex is the exact variant: every search scans every entry. Linear
// cost, guaranteed true nearest neighbors; the baseline the approximate
// variants are judged against.
type FlatIndex struct {
	store *entryStore
	mu    sync.RWMutex
}

// NewFlatIndex creates an exact index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{store: newEntryStore(dimensions)}, nil
}

// Add appends a batch of entries.
func (f *FlatIndex) Add(ctx context.Context, embeddings [][]float32, texts []string, metadata []map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.store.validate(embeddings, texts, metadata); err != nil {
		return err
	}
	f.store.append(embeddings, texts, metadata)
	return nil
}

// Search scans all entries and returns the k nearest.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]*Result, error) {
	if len(query) != f.store.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d", ErrDimensionMismatch, len(query), f.store.dims)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || f.store.size() == 0 {
		return []*Result{}, nil
	}
	return f.store.rank(f.store.scanAll(query), k, threshold), nil
}

// Save writes the snapshot to dir.
func (f *FlatIndex) Save(dir string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return writeSnapshot(dir, VariantFlat, f.store, nil)
}

// Load replaces the index contents from the snapshot in dir.
func (f *FlatIndex) Load(dir string) error {
	store, err := readSnapshot(dir, VariantFlat, f.store.dims, nil)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = store
	return nil
}

// Size returns the number of entries.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.store.size()
}

// Dimensions returns the vector width the index was constructed with.
func (f *FlatIndex) Dimensions() int {
	return f.store.dims
}

// Variant returns VariantFlat.
func (f *FlatIndex) Variant() Variant {
	return VariantFlat
}

// Close is a no-op.
func (f *FlatIndex) Close() error {
	return nil
}
