package vector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// A snapshot directory holds two files that are written and read together:
// meta.json carries the entry payloads (texts, metadata) plus the variant and
// dimension, and vectors.bin carries the raw vectors plus any
// variant-specific structure (IVF centroids and assignments, HNSW adjacency).
// If the halves disagree the snapshot is corrupt.
const (
	metaFile    = "meta.json"
	vectorsFile = "vectors.bin"
)

// snapshotMagic identifies vectors.bin; bump snapshotVersion on layout changes.
var snapshotMagic = [4]byte{'F', 'K', 'B', 'I'}

const snapshotVersion uint32 = 1

type snapshotMeta struct {
	Variant   Variant                  `json:"variant"`
	Dimension int                      `json:"dimension"`
	Count     int                      `json:"count"`
	Texts     []string                 `json:"texts"`
	Metadata  []map[string]interface{} `json:"metadata"`
}

// writeSnapshot persists the store (and the variant section produced by
// extra, when non-nil) to dir. The binary half is written first; meta.json
// acts as the commit marker.
func writeSnapshot(dir string, variant Variant, store *entryStore, extra func(w io.Writer) error) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", vectorsFile, err)
	}
	w := bufio.NewWriter(f)
	if err := writeVectors(w, store, extra); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", vectorsFile, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", vectorsFile, err)
	}

	meta := snapshotMeta{
		Variant:   variant,
		Dimension: store.dims,
		Count:     store.size(),
		Texts:     store.texts,
		Metadata:  store.metadata,
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal snapshot meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", metaFile, err)
	}
	return nil
}

func writeVectors(w io.Writer, store *entryStore, extra func(w io.Writer) error) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{snapshotVersion, uint32(store.dims), uint32(store.size())} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, vec := range store.vectors {
		if err := writeFloat32s(w, vec); err != nil {
			return err
		}
	}
	if extra != nil {
		return extra(w)
	}
	return nil
}

// readSnapshot restores a store from dir, verifying that both halves agree
// with each other, with the expected variant, and with the index dimension.
// extra, when non-nil, consumes the variant section of vectors.bin.
func readSnapshot(dir string, variant Variant, wantDims int, extra func(r io.Reader) error) (*entryStore, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptSnapshot, metaFile, err)
	}
	var meta snapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorruptSnapshot, metaFile, err)
	}
	if meta.Variant != variant {
		return nil, fmt.Errorf("%w: snapshot holds variant %q, index is %q", ErrCorruptSnapshot, meta.Variant, variant)
	}
	if wantDims > 0 && meta.Dimension != wantDims {
		return nil, fmt.Errorf("%w: snapshot has %d dimensions, index expects %d", ErrDimensionMismatch, meta.Dimension, wantDims)
	}
	if len(meta.Texts) != meta.Count || len(meta.Metadata) != meta.Count {
		return nil, fmt.Errorf("%w: meta count %d, %d texts, %d metadata entries", ErrCorruptSnapshot, meta.Count, len(meta.Texts), len(meta.Metadata))
	}

	f, err := os.Open(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorruptSnapshot, vectorsFile, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic in %s", ErrCorruptSnapshot, vectorsFile)
	}
	var version, dims, count uint32
	for _, p := range []*uint32{&version, &dims, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("%w: read header: %v", ErrCorruptSnapshot, err)
		}
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorruptSnapshot, version)
	}
	if int(dims) != meta.Dimension || int(count) != meta.Count {
		return nil, fmt.Errorf("%w: halves disagree (binary %dx%d, meta %dx%d)",
			ErrCorruptSnapshot, count, dims, meta.Count, meta.Dimension)
	}

	store := newEntryStore(meta.Dimension)
	store.vectors = make([][]float32, count)
	for i := range store.vectors {
		vec, err := readFloat32s(r, meta.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: read vector %d: %v", ErrCorruptSnapshot, i, err)
		}
		store.vectors[i] = vec
	}
	store.texts = meta.Texts
	store.metadata = meta.Metadata
	for i, m := range store.metadata {
		if m == nil {
			store.metadata[i] = map[string]interface{}{}
		}
	}

	if extra != nil {
		if err := extra(r); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func writeFloat32s(w io.Writer, vals []float32) error {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write vector data: %w", err)
	}
	return nil
}

func readFloat32s(r io.Reader, n int) ([]float32, error) {
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vals, nil
}

// readUint32 / writeUint32 are shared by the variant sections.
func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}
