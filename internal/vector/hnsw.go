package vector

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// hnswSeed fixes the level generator so the same insertion sequence always
// builds the same graph.
const hnswSeed = 0x464b4249

// HNSWIndex is a hierarchical navigable small-world graph. Upper layers hold
// a sparse sample of the entries and route a greedy descent; layer zero holds
// everything and is searched beam-style with efSearch candidates. Higher M
// and ef values raise recall at the cost of memory and query time.
type HNSWIndex struct {
	store          *entryStore
	m              int // max neighbors per node on layers > 0 (2m on layer 0)
	efConstruction int
	efSearch       int

	entry     int       // ordinal of the top-layer entry point, -1 when empty
	maxLevel  int
	levels    []int     // top layer of each node
	neighbors [][][]int // node to layer to neighbor ordinals

	levelMult float64
	rng       *rand.Rand
	mu        sync.RWMutex
}

// NewHNSWIndex creates a graph index. m, efConstruction, and efSearch fall
// back to 16, 200, and 64 when non-positive.
func NewHNSWIndex(dimensions, m, efConstruction, efSearch int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	if m <= 0 {
		m = 16
	}
	if efConstruction <= 0 {
		efConstruction = 200
	}
	if efSearch <= 0 {
		efSearch = 64
	}
	return &HNSWIndex{
		store:          newEntryStore(dimensions),
		m:              m,
		efConstruction: efConstruction,
		efSearch:       efSearch,
		entry:          -1,
		levelMult:      1 / math.Log(float64(m)),
		rng:            rand.New(rand.NewSource(hnswSeed)),
	}, nil
}

// Add appends a batch and links each new entry into the graph.
func (h *HNSWIndex) Add(ctx context.Context, embeddings [][]float32, texts []string, metadata []map[string]interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.store.validate(embeddings, texts, metadata); err != nil {
		return err
	}
	first := h.store.size()
	h.store.append(embeddings, texts, metadata)
	for ord := first; ord < h.store.size(); ord++ {
		h.insert(ord)
	}
	return nil
}

func (h *HNSWIndex) randomLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMult)
}

func (h *HNSWIndex) maxNeighbors(layer int) int {
	if layer == 0 {
		return 2 * h.m
	}
	return h.m
}

// insert links the node at ord into every layer up to its drawn level.
func (h *HNSWIndex) insert(ord int) {
	level := h.randomLevel()
	h.levels = append(h.levels, level)
	links := make([][]int, level+1)
	h.neighbors = append(h.neighbors, links)

	if h.entry < 0 {
		h.entry = ord
		h.maxLevel = level
		return
	}

	vec := h.store.vectors[ord]
	cur := h.entry
	for layer := h.maxLevel; layer > level; layer-- {
		cur = h.greedyClosest(vec, cur, layer)
	}

	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for layer := top; layer >= 0; layer-- {
		found := h.searchLayer(vec, cur, h.efConstruction, layer)
		limit := h.maxNeighbors(layer)
		if len(found) > limit {
			found = found[:limit]
		}
		links[layer] = make([]int, len(found))
		for i, c := range found {
			links[layer][i] = c.ordinal
		}
		for _, c := range found {
			h.link(c.ordinal, ord, layer)
		}
		if len(found) > 0 {
			cur = found[0].ordinal
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = ord
	}
}

// link adds dst to src's neighbor list on layer, pruning back to the layer
// cap by keeping the nearest.
func (h *HNSWIndex) link(src, dst, layer int) {
	list := append(h.neighbors[src][layer], dst)
	limit := h.maxNeighbors(layer)
	if len(list) > limit {
		vec := h.store.vectors[src]
		sort.Slice(list, func(i, j int) bool {
			di := squaredL2(vec, h.store.vectors[list[i]])
			dj := squaredL2(vec, h.store.vectors[list[j]])
			if di != dj {
				return di < dj
			}
			return list[i] < list[j]
		})
		list = list[:limit]
	}
	h.neighbors[src][layer] = list
}

// greedyClosest walks one layer, always moving to the closest neighbor,
// until no neighbor improves on the current node.
func (h *HNSWIndex) greedyClosest(query []float32, start, layer int) int {
	cur := start
	curDist := squaredL2(query, h.store.vectors[cur])
	for {
		improved := false
		for _, n := range h.neighbors[cur][layer] {
			if d := squaredL2(query, h.store.vectors[n]); d < curDist {
				cur, curDist = n, d
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer runs a beam search over one layer, keeping the ef closest
// nodes seen. Results come back sorted by ascending distance.
func (h *HNSWIndex) searchLayer(query []float32, start, ef, layer int) []scored {
	startDist := squaredL2(query, h.store.vectors[start])
	visited := map[int]struct{}{start: {}}
	candidates := &minDistHeap{{ordinal: start, distance: startDist}}
	results := &maxDistHeap{{ordinal: start, distance: startDist}}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scored)
		if c.distance > (*results)[0].distance && results.Len() >= ef {
			break
		}
		for _, n := range h.neighbors[c.ordinal][layer] {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			d := squaredL2(query, h.store.vectors[n])
			if results.Len() < ef || d < (*results)[0].distance {
				heap.Push(candidates, scored{ordinal: n, distance: d})
				heap.Push(results, scored{ordinal: n, distance: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scored)
	}
	return out
}

// Search descends the layer hierarchy greedily, then beam-searches layer
// zero with max(efSearch, k) candidates.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int, threshold float64) ([]*Result, error) {
	if len(query) != h.store.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d", ErrDimensionMismatch, len(query), h.store.dims)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || h.store.size() == 0 {
		return []*Result{}, nil
	}

	cur := h.entry
	for layer := h.maxLevel; layer > 0; layer-- {
		cur = h.greedyClosest(query, cur, layer)
	}
	ef := h.efSearch
	if k > ef {
		ef = k
	}
	return h.store.rank(h.searchLayer(query, cur, ef, 0), k, threshold), nil
}

// Save writes the snapshot, including the graph adjacency, to dir.
func (h *HNSWIndex) Save(dir string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return writeSnapshot(dir, VariantHNSW, h.store, func(w io.Writer) error {
		header := []uint32{
			uint32(h.m),
			uint32(h.efConstruction),
			uint32(h.efSearch),
			uint32(h.maxLevel),
			uint32(h.entry + 1), // 0 marks an empty graph
			uint32(len(h.neighbors)),
		}
		for _, v := range header {
			if err := writeUint32(w, v); err != nil {
				return fmt.Errorf("write hnsw header: %w", err)
			}
		}
		for ord, links := range h.neighbors {
			if err := writeUint32(w, uint32(h.levels[ord])); err != nil {
				return fmt.Errorf("write node level: %w", err)
			}
			for _, layer := range links {
				if err := writeUint32(w, uint32(len(layer))); err != nil {
					return fmt.Errorf("write layer degree: %w", err)
				}
				for _, n := range layer {
					if err := writeUint32(w, uint32(n)); err != nil {
						return fmt.Errorf("write neighbor: %w", err)
					}
				}
			}
		}
		return nil
	})
}

// Load replaces the index contents from the snapshot in dir.
func (h *HNSWIndex) Load(dir string) error {
	var m, efC, efS, maxLevel, entry, nodes uint32
	var levels []int
	var neighbors [][][]int
	store, err := readSnapshot(dir, VariantHNSW, h.store.dims, func(r io.Reader) error {
		for _, p := range []*uint32{&m, &efC, &efS, &maxLevel, &entry, &nodes} {
			v, err := readUint32(r)
			if err != nil {
				return fmt.Errorf("%w: read hnsw header: %v", ErrCorruptSnapshot, err)
			}
			*p = v
		}
		if m == 0 {
			return fmt.Errorf("%w: hnsw snapshot has zero connectivity", ErrCorruptSnapshot)
		}
		if int(entry) > int(nodes) {
			return fmt.Errorf("%w: hnsw entry point %d out of range", ErrCorruptSnapshot, int(entry)-1)
		}
		levels = make([]int, nodes)
		neighbors = make([][][]int, nodes)
		for ord := range neighbors {
			lvl, err := readUint32(r)
			if err != nil {
				return fmt.Errorf("%w: read node %d level: %v", ErrCorruptSnapshot, ord, err)
			}
			levels[ord] = int(lvl)
			links := make([][]int, lvl+1)
			for layer := range links {
				degree, err := readUint32(r)
				if err != nil {
					return fmt.Errorf("%w: read node %d layer %d degree: %v", ErrCorruptSnapshot, ord, layer, err)
				}
				layerLinks := make([]int, degree)
				for i := range layerLinks {
					n, err := readUint32(r)
					if err != nil {
						return fmt.Errorf("%w: read node %d neighbor: %v", ErrCorruptSnapshot, ord, err)
					}
					if int(n) >= int(nodes) {
						return fmt.Errorf("%w: node %d links to missing node %d", ErrCorruptSnapshot, ord, n)
					}
					layerLinks[i] = int(n)
				}
				links[layer] = layerLinks
			}
			neighbors[ord] = links
		}
		return nil
	})
	if err != nil {
		return err
	}
	if int(nodes) != len(store.vectors) {
		return fmt.Errorf("%w: hnsw graph has %d nodes, snapshot has %d vectors", ErrCorruptSnapshot, nodes, len(store.vectors))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.store = store
	h.m = int(m)
	h.efConstruction = int(efC)
	h.efSearch = int(efS)
	h.levelMult = 1 / math.Log(float64(h.m))
	h.entry = int(entry) - 1
	h.maxLevel = int(maxLevel)
	h.levels = levels
	h.neighbors = neighbors
	h.rng = rand.New(rand.NewSource(hnswSeed))
	return nil
}

// Size returns the number of entries.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store.size()
}

// Dimensions returns the vector width the index was constructed with.
func (h *HNSWIndex) Dimensions() int {
	return h.store.dims
}

// Variant returns VariantHNSW.
func (h *HNSWIndex) Variant() Variant {
	return VariantHNSW
}

// Close is a no-op.
func (h *HNSWIndex) Close() error {
	return nil
}

// minDistHeap pops the closest candidate first.
type minDistHeap []scored

func (q minDistHeap) Len() int            { return len(q) }
func (q minDistHeap) Less(i, j int) bool  { return q[i].distance < q[j].distance }
func (q minDistHeap) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *minDistHeap) Push(x interface{}) { *q = append(*q, x.(scored)) }
func (q *minDistHeap) Pop() interface{} {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}

// maxDistHeap keeps the farthest kept result on top so it can be evicted.
type maxDistHeap []scored

func (q maxDistHeap) Len() int            { return len(q) }
func (q maxDistHeap) Less(i, j int) bool  { return q[i].distance > q[j].distance }
func (q maxDistHeap) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *maxDistHeap) Push(x interface{}) { *q = append(*q, x.(scored)) }
func (q *maxDistHeap) Pop() interface{} {
	old := *q
	n := len(old)
	v := old[n-1]
	*q = old[:n-1]
	return v
}
