package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Options carries the variant-specific tuning knobs. Zero values select the
// defaults documented on each constructor.
type Options struct {
	// IVF: number of k-means clusters and clusters probed per query.
	NList  int
	NProbe int
	// HNSW: graph connectivity and beam widths.
	M              int
	EfConstruction int
	EfSearch       int
}

// New constructs an empty index of the named variant.
func New(variant Variant, dimensions int, opts *Options) (Index, error) {
	if opts == nil {
		opts = &Options{}
	}
	switch variant {
	case VariantFlat:
		return NewFlatIndex(dimensions)
	case VariantIVF:
		nlist := opts.NList
		if nlist <= 0 {
			nlist = 100
		}
		nprobe := opts.NProbe
		if nprobe <= 0 {
			nprobe = nlist / 10
		}
		return NewIVFIndex(dimensions, nlist, nprobe)
	case VariantHNSW:
		return NewHNSWIndex(dimensions, opts.M, opts.EfConstruction, opts.EfSearch)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// Open restores an index from a snapshot directory, discovering the variant
// and dimension from the snapshot itself.
func Open(dir string) (Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptSnapshot, metaFile, err)
	}
	var meta snapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorruptSnapshot, metaFile, err)
	}
	if meta.Dimension <= 0 {
		return nil, fmt.Errorf("%w: snapshot has dimension %d", ErrCorruptSnapshot, meta.Dimension)
	}
	ix, err := New(meta.Variant, meta.Dimension, nil)
	if err != nil {
		return nil, err
	}
	if err := ix.Load(dir); err != nil {
		return nil, err
	}
	return ix, nil
}
