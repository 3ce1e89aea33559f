package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func addOne(t *testing.T, ix Index, text string, emb []float32) {
	t.Helper()
	if err := ix.Add(context.Background(), [][]float32{emb}, []string{text}, nil); err != nil {
		t.Fatalf("Add(%q): %v", text, err)
	}
}

func TestNewUnknownVariant(t *testing.T) {
	_, err := New("kdtree", 4, nil)
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestFlatEmptySearch(t *testing.T) {
	ix, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(context.Background(), []float32{1, 0, 0}, 5, NoThreshold)
	if err != nil {
		t.Fatalf("search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestFlatSelfQuery(t *testing.T) {
	ix, _ := NewFlatIndex(3)
	addOne(t, ix, "a", []float32{1, 0, 0})
	addOne(t, ix, "b", []float32{0, 1, 0})
	addOne(t, ix, "c", []float32{0, 0, 1})

	results, err := ix.Search(context.Background(), []float32{0, 1, 0}, 1, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "b" {
		t.Fatalf("expected self match 'b', got %+v", results)
	}
	if results[0].Distance != 0 {
		t.Fatalf("self query distance = %v, want 0", results[0].Distance)
	}
}

func TestFlatOrderingAndTieBreak(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	// b and c are equidistant from the query; b was inserted first.
	addOne(t, ix, "a", []float32{0, 0})
	addOne(t, ix, "b", []float32{2, 0})
	addOne(t, ix, "c", []float32{-2, 0})

	results, err := ix.Search(context.Background(), []float32{0, 0}, 3, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.Text
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result order = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("distances not ascending: %v then %v", results[i-1].Distance, results[i].Distance)
		}
	}
}

func TestFlatThreshold(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	addOne(t, ix, "near", []float32{0.1, 0})
	addOne(t, ix, "far", []float32{10, 0})

	results, err := ix.Search(context.Background(), []float32{0, 0}, 10, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "near" {
		t.Fatalf("threshold should keep only 'near', got %+v", results)
	}

	results, err = ix.Search(context.Background(), []float32{0, 0}, 10, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("NoThreshold should keep both entries, got %d", len(results))
	}
}

func TestFlatKCapsResults(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	for i := 0; i < 5; i++ {
		addOne(t, ix, "e", []float32{float32(i), 0})
	}
	results, err := ix.Search(context.Background(), []float32{0, 0}, 3, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("k=3 should cap results at 3, got %d", len(results))
	}
	results, err = ix.Search(context.Background(), []float32{0, 0}, 100, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("k past size should return everything, got %d", len(results))
	}
}

func TestFlatAddValidation(t *testing.T) {
	ix, _ := NewFlatIndex(3)
	ctx := context.Background()

	err := ix.Add(ctx, [][]float32{{1, 0}}, []string{"short"}, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("wrong-width embedding: expected ErrDimensionMismatch, got %v", err)
	}
	err = ix.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}}, []string{"only one"}, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("length mismatch: expected ErrDimensionMismatch, got %v", err)
	}
	// A failed Add must not insert a partial batch.
	err = ix.Add(ctx, [][]float32{{1, 0, 0}, {0, 1}}, []string{"ok", "bad"}, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("mixed batch: expected ErrDimensionMismatch, got %v", err)
	}
	if ix.Size() != 0 {
		t.Fatalf("failed Add changed size to %d", ix.Size())
	}

	_, err = ix.Search(ctx, []float32{1, 0}, 1, NoThreshold)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("wrong-width query: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatNilMetadata(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	addOne(t, ix, "a", []float32{1, 0})
	results, err := ix.Search(context.Background(), []float32{1, 0}, 1, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Metadata == nil {
		t.Fatal("metadata should default to an empty map, got nil")
	}
}

func TestFlatSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix, _ := NewFlatIndex(3)
	err := ix.Add(context.Background(),
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"first", "second"},
		[]map[string]interface{}{{"doc_id": "d1"}, {"doc_id": "d2"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if restored.Variant() != VariantFlat || restored.Size() != 2 || restored.Dimensions() != 3 {
		t.Fatalf("restored index: variant=%s size=%d dims=%d", restored.Variant(), restored.Size(), restored.Dimensions())
	}
	results, err := restored.Search(context.Background(), []float32{0, 1, 0}, 1, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Text != "second" || results[0].Distance != 0 {
		t.Fatalf("restored search returned %+v", results[0])
	}
	if results[0].Metadata["doc_id"] != "d2" {
		t.Fatalf("restored metadata = %v", results[0].Metadata)
	}
}

func TestLoadRejectsVariantMismatch(t *testing.T) {
	dir := t.TempDir()
	flat, _ := NewFlatIndex(2)
	addOne(t, flat, "a", []float32{1, 0})
	if err := flat.Save(dir); err != nil {
		t.Fatal(err)
	}
	ivf, _ := NewIVFIndex(2, 2, 1)
	if err := ivf.Load(dir); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("loading a flat snapshot into ivf: expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	ix, _ := NewFlatIndex(2)
	addOne(t, ix, "a", []float32{1, 0})
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}
	other, _ := NewFlatIndex(3)
	if err := other.Load(dir); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	ix, _ := NewFlatIndex(2)
	addOne(t, ix, "a", []float32{1, 0})
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}

	// Truncate the binary half so it no longer matches meta.json.
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), []byte("FKBI"), 0644); err != nil {
		t.Fatal(err)
	}
	other, _ := NewFlatIndex(2)
	if err := other.Load(dir); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("truncated vectors.bin: expected ErrCorruptSnapshot, got %v", err)
	}

	// Remove the meta half entirely.
	if err := os.Remove(filepath.Join(dir, metaFile)); err != nil {
		t.Fatal(err)
	}
	if err := other.Load(dir); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("missing meta.json: expected ErrCorruptSnapshot, got %v", err)
	}
	if _, err := Open(dir); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("Open on corrupt dir: expected ErrCorruptSnapshot, got %v", err)
	}
}
