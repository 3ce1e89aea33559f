package vector

import (
	"context"
	"fmt"
	"testing"
)

func TestHNSWSelfQuery(t *testing.T) {
	ix, err := NewHNSWIndex(3, 16, 200, 64)
	if err != nil {
		t.Fatal(err)
	}
	addOne(t, ix, "a", []float32{1, 0, 0})
	addOne(t, ix, "b", []float32{0, 1, 0})
	addOne(t, ix, "c", []float32{0, 0, 1})

	results, err := ix.Search(context.Background(), []float32{0, 0, 1}, 1, NoThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "c" || results[0].Distance != 0 {
		t.Fatalf("self query returned %+v", results)
	}
}

func TestHNSWEmptyAndZeroK(t *testing.T) {
	ix, _ := NewHNSWIndex(2, 0, 0, 0) // defaults kick in
	results, err := ix.Search(context.Background(), []float32{1, 0}, 5, NoThreshold)
	if err != nil || len(results) != 0 {
		t.Fatalf("empty index: results=%v err=%v", results, err)
	}
	addOne(t, ix, "a", []float32{1, 0})
	results, err = ix.Search(context.Background(), []float32{1, 0}, 0, NoThreshold)
	if err != nil || len(results) != 0 {
		t.Fatalf("k=0: results=%v err=%v", results, err)
	}
}

// With efSearch at least the entry count and a connected layer-zero graph,
// the beam search degenerates to an exhaustive one, so small graphs must
// agree with the exact scan.
func TestHNSWMatchesFlatOnSmallSets(t *testing.T) {
	const n, dims, k = 20, 4, 5
	flat, _ := NewFlatIndex(dims)
	hnsw, _ := NewHNSWIndex(dims, 16, 200, 64)

	ctx := context.Background()
	for i := 0; i < n; i++ {
		// deterministic spread of points
		vec := []float32{
			float32(i%5) * 0.7,
			float32(i%3) * 1.3,
			float32(i%7) * 0.4,
			float32(i) * 0.05,
		}
		text := fmt.Sprintf("entry-%d", i)
		addOne(t, flat, text, vec)
		addOne(t, hnsw, text, vec)
	}

	queries := [][]float32{
		{0, 0, 0, 0},
		{2, 2, 1, 0.5},
		{3.5, 0.1, 2.4, 1},
	}
	for qi, q := range queries {
		want, err := flat.Search(ctx, q, k, NoThreshold)
		if err != nil {
			t.Fatal(err)
		}
		got, err := hnsw.Search(ctx, q, k, NoThreshold)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("query %d: hnsw returned %d results, flat %d", qi, len(got), len(want))
		}
		for i := range want {
			if got[i].Text != want[i].Text || got[i].Distance != want[i].Distance {
				t.Fatalf("query %d rank %d: hnsw %v/%v, flat %v/%v",
					qi, i, got[i].Text, got[i].Distance, want[i].Text, want[i].Distance)
			}
		}
	}
}

func TestHNSWThreshold(t *testing.T) {
	ix, _ := NewHNSWIndex(2, 16, 200, 64)
	addOne(t, ix, "near", []float32{0.1, 0})
	addOne(t, ix, "far", []float32{10, 0})

	results, err := ix.Search(context.Background(), []float32{0, 0}, 10, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "near" {
		t.Fatalf("threshold should keep only 'near', got %+v", results)
	}
}

func TestHNSWSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix, _ := NewHNSWIndex(3, 4, 32, 16)
	ctx := context.Background()
	var embs [][]float32
	var texts []string
	for i := 0; i < 10; i++ {
		embs = append(embs, []float32{float32(i), float32(i % 3), 0})
		texts = append(texts, fmt.Sprintf("entry-%d", i))
	}
	if err := ix.Add(ctx, embs, texts, nil); err != nil {
		t.Fatal(err)
	}
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}

	restored, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Variant() != VariantHNSW || restored.Size() != 10 {
		t.Fatalf("restored: variant=%s size=%d", restored.Variant(), restored.Size())
	}

	// The persisted graph must answer queries exactly as the original did.
	for _, q := range [][]float32{{0, 0, 0}, {7, 1, 0}, {9, 2, 0}} {
		want, err := ix.Search(ctx, q, 3, NoThreshold)
		if err != nil {
			t.Fatal(err)
		}
		got, err := restored.Search(ctx, q, 3, NoThreshold)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("restored returned %d results, original %d", len(got), len(want))
		}
		for i := range want {
			if got[i].Text != want[i].Text {
				t.Fatalf("rank %d: restored %q, original %q", i, got[i].Text, want[i].Text)
			}
		}
	}
}
