package vector

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

const kmeansIterations = 10

// IVFIndex partitions the vector space into nlist k-means clusters and
// searches only the nprobe clusters whose centroids are nearest the query.
//
// Training is automatic: entries are buffered until at least nlist of them
// exist, and the Add that crosses that line runs k-means over everything
// inserted so far. Searches before training fall back to an exact scan of
// the buffer, so the index never reports itself as not ready; the trade is
// that a small index pays linear cost until the calibration sample is in.
type IVFIndex struct {
	store     *entryStore
	nlist     int
	nprobe    int
	trained   bool
	centroids [][]float32
	lists     [][]int // centroid -> entry ordinals, invariant: nearest centroid
	mu        sync.RWMutex
}

// NewIVFIndex creates a clustered index. nprobe is clamped to [1, nlist].
func NewIVFIndex(dimensions, nlist, nprobe int) (*IVFIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	if nlist <= 0 {
		return nil, fmt.Errorf("%w: ivf needs a positive cluster count, got %d", ErrUnknownVariant, nlist)
	}
	if nprobe <= 0 {
		nprobe = 1
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	return &IVFIndex{
		store:  newEntryStore(dimensions),
		nlist:  nlist,
		nprobe: nprobe,
	}, nil
}

// Add appends a batch, training the cluster structure once enough entries
// have accumulated.
func (ix *IVFIndex) Add(ctx context.Context, embeddings [][]float32, texts []string, metadata []map[string]interface{}) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.validate(embeddings, texts, metadata); err != nil {
		return err
	}
	first := ix.store.size()
	ix.store.append(embeddings, texts, metadata)

	if !ix.trained {
		if ix.store.size() >= ix.nlist {
			ix.train()
		}
		return nil
	}
	for ord := first; ord < ix.store.size(); ord++ {
		c := ix.nearestCentroid(ix.store.vectors[ord])
		ix.lists[c] = append(ix.lists[c], ord)
	}
	return nil
}

// train runs k-means over every stored vector and assigns all entries to
// their nearest final centroid.
func (ix *IVFIndex) train() {
	ix.centroids = kmeans(ix.store.vectors, ix.nlist, kmeansIterations)
	ix.lists = make([][]int, len(ix.centroids))
	for ord := range ix.store.vectors {
		c := ix.nearestCentroid(ix.store.vectors[ord])
		ix.lists[c] = append(ix.lists[c], ord)
	}
	ix.trained = true
}

func (ix *IVFIndex) nearestCentroid(vec []float32) int {
	best := 0
	bestDist := squaredL2(vec, ix.centroids[0])
	for c := 1; c < len(ix.centroids); c++ {
		if d := squaredL2(vec, ix.centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Search probes the nprobe nearest cluster lists. Before training it scans
// the buffered entries exactly.
func (ix *IVFIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]*Result, error) {
	if len(query) != ix.store.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d", ErrDimensionMismatch, len(query), ix.store.dims)
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || ix.store.size() == 0 {
		return []*Result{}, nil
	}
	if !ix.trained {
		return ix.store.rank(ix.store.scanAll(query), k, threshold), nil
	}

	byCentroid := make([]scored, len(ix.centroids))
	for c, centroid := range ix.centroids {
		byCentroid[c] = scored{ordinal: c, distance: squaredL2(query, centroid)}
	}
	sort.Slice(byCentroid, func(i, j int) bool {
		if byCentroid[i].distance != byCentroid[j].distance {
			return byCentroid[i].distance < byCentroid[j].distance
		}
		return byCentroid[i].ordinal < byCentroid[j].ordinal
	})

	var candidates []scored
	for p := 0; p < ix.nprobe && p < len(byCentroid); p++ {
		for _, ord := range ix.lists[byCentroid[p].ordinal] {
			candidates = append(candidates, scored{ordinal: ord, distance: squaredL2(query, ix.store.vectors[ord])})
		}
	}
	return ix.store.rank(candidates, k, threshold), nil
}

// Save writes the snapshot, including centroids, to dir. Cluster lists are
// not persisted; they are rebuilt from the centroids on load.
func (ix *IVFIndex) Save(dir string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return writeSnapshot(dir, VariantIVF, ix.store, func(w io.Writer) error {
		trained := uint32(0)
		if ix.trained {
			trained = 1
		}
		for _, v := range []uint32{trained, uint32(ix.nlist), uint32(ix.nprobe)} {
			if err := writeUint32(w, v); err != nil {
				return fmt.Errorf("write ivf header: %w", err)
			}
		}
		if !ix.trained {
			return nil
		}
		for _, centroid := range ix.centroids {
			if err := writeFloat32s(w, centroid); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load replaces the index contents from the snapshot in dir.
func (ix *IVFIndex) Load(dir string) error {
	var trained, nlist, nprobe uint32
	var centroids [][]float32
	store, err := readSnapshot(dir, VariantIVF, ix.store.dims, func(r io.Reader) error {
		for _, p := range []*uint32{&trained, &nlist, &nprobe} {
			v, err := readUint32(r)
			if err != nil {
				return fmt.Errorf("%w: read ivf header: %v", ErrCorruptSnapshot, err)
			}
			*p = v
		}
		if nlist == 0 {
			return fmt.Errorf("%w: ivf snapshot has zero clusters", ErrCorruptSnapshot)
		}
		if trained == 0 {
			return nil
		}
		centroids = make([][]float32, nlist)
		for c := range centroids {
			vec, err := readFloat32s(r, ix.store.dims)
			if err != nil {
				return fmt.Errorf("%w: read centroid %d: %v", ErrCorruptSnapshot, c, err)
			}
			centroids[c] = vec
		}
		return nil
	})
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.store = store
	ix.nlist = int(nlist)
	ix.nprobe = int(nprobe)
	ix.trained = trained == 1
	ix.centroids = centroids
	ix.lists = nil
	if ix.trained {
		ix.lists = make([][]int, len(ix.centroids))
		for ord := range ix.store.vectors {
			c := ix.nearestCentroid(ix.store.vectors[ord])
			ix.lists[c] = append(ix.lists[c], ord)
		}
	}
	return nil
}

// Size returns the number of entries.
func (ix *IVFIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.store.size()
}

// Dimensions returns the vector width the index was constructed with.
func (ix *IVFIndex) Dimensions() int {
	return ix.store.dims
}

// Variant returns VariantIVF.
func (ix *IVFIndex) Variant() Variant {
	return VariantIVF
}

// Close is a no-op.
func (ix *IVFIndex) Close() error {
	return nil
}

// kmeans clusters vectors into k groups and returns the centroids. The
// initial centroids are spread evenly across the input (deterministic), then
// refined by Lloyd iterations; a cluster that loses all members keeps its
// previous centroid.
func kmeans(vectors [][]float32, k, iterations int) [][]float32 {
	n := len(vectors)
	dims := len(vectors[0])
	centroids := make([][]float32, k)
	for c := range centroids {
		centroids[c] = make([]float32, dims)
		copy(centroids[c], vectors[c*n/k])
	}

	assign := make([]int, n)
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best := 0
			bestDist := squaredL2(vec, centroids[0])
			for c := 1; c < k; c++ {
				if d := squaredL2(vec, centroids[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, vec := range vectors {
			c := assign[i]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += float64(v)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}
	return centroids
}
