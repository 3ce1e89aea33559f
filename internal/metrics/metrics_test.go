package metrics

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestPrecisionRecallF1(t *testing.T) {
	retrieved := SetOf(1, 2, 3, 4)
	relevant := SetOf(2, 3, 4, 5)

	if p := Precision(retrieved, relevant); !almostEqual(p, 0.75) {
		t.Errorf("Precision = %v, want 0.75", p)
	}
	if r := Recall(retrieved, relevant); !almostEqual(r, 0.75) {
		t.Errorf("Recall = %v, want 0.75", r)
	}
	if f := F1(retrieved, relevant); !almostEqual(f, 0.75) {
		t.Errorf("F1 = %v, want 0.75", f)
	}
}

func TestEmptyInputs(t *testing.T) {
	if p := Precision(SetOf[int](), SetOf(1)); p != 0 {
		t.Errorf("Precision on empty retrieved = %v", p)
	}
	if r := Recall(SetOf(1), SetOf[int]()); r != 0 {
		t.Errorf("Recall on empty relevant = %v", r)
	}
	if f := F1(SetOf[int](), SetOf[int]()); f != 0 {
		t.Errorf("F1 on empty sets = %v", f)
	}
	if ap := AveragePrecision([]int{1, 2}, SetOf[int]()); ap != 0 {
		t.Errorf("AP on empty relevant = %v", ap)
	}
	if m := MeanAveragePrecision[int](nil); m != 0 {
		t.Errorf("MAP on no queries = %v", m)
	}
	if m := MRR[int](nil); m != 0 {
		t.Errorf("MRR on no queries = %v", m)
	}
	if n := NDCG([]int{1}, map[int]float64{}, 10); n != 0 {
		t.Errorf("NDCG with no relevance scores = %v", n)
	}
}

func TestBounds(t *testing.T) {
	retrieved := SetOf("a", "b", "c")
	relevant := SetOf("b", "x")
	for name, v := range map[string]float64{
		"precision": Precision(retrieved, relevant),
		"recall":    Recall(retrieved, relevant),
		"f1":        F1(retrieved, relevant),
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v out of [0,1]", name, v)
		}
	}
}

func TestF1_ZeroIffBothZero(t *testing.T) {
	// No overlap: precision and recall both 0, F1 must be 0.
	if f := F1(SetOf(1, 2), SetOf(3, 4)); f != 0 {
		t.Errorf("disjoint F1 = %v", f)
	}
	// Any overlap: both positive, F1 must be positive.
	if f := F1(SetOf(1, 2), SetOf(2, 3)); f <= 0 {
		t.Errorf("overlapping F1 = %v", f)
	}
}

func TestAveragePrecision(t *testing.T) {
	// Relevant at ranks 1 and 3: AP = (1/1 + 2/3) / 2.
	ap := AveragePrecision([]int{10, 20, 30}, SetOf(10, 30))
	if want := (1.0 + 2.0/3.0) / 2.0; !almostEqual(ap, want) {
		t.Errorf("AP = %v, want %v", ap, want)
	}
	// Nothing relevant retrieved.
	if ap := AveragePrecision([]int{1, 2, 3}, SetOf(9)); ap != 0 {
		t.Errorf("AP with no hits = %v", ap)
	}
}

func TestMeanAveragePrecision(t *testing.T) {
	queries := []Judgment[int]{
		{Ranked: []int{1, 2}, Relevant: SetOf(1)},    // AP = 1
		{Ranked: []int{3, 4}, Relevant: SetOf(4, 9)}, // AP = (1/2) / 2 = 0.25
	}
	if m := MeanAveragePrecision(queries); !almostEqual(m, 0.625) {
		t.Errorf("MAP = %v, want 0.625", m)
	}
}

func TestNDCG_PerfectRankingIsOne(t *testing.T) {
	relevance := map[string]float64{"a": 3, "b": 2, "c": 1, "d": 0}
	// Ranked by descending true relevance.
	if n := NDCG([]string{"a", "b", "c", "d"}, relevance, 10); !almostEqual(n, 1.0) {
		t.Errorf("NDCG of ideal ranking = %v, want 1.0", n)
	}
}

func TestNDCG_WorseRankingBelowOne(t *testing.T) {
	relevance := map[string]float64{"a": 3, "b": 2, "c": 1}
	n := NDCG([]string{"c", "b", "a"}, relevance, 10)
	if n <= 0 || n >= 1 {
		t.Errorf("NDCG of reversed ranking = %v, want in (0,1)", n)
	}
}

func TestNDCG_RespectsK(t *testing.T) {
	relevance := map[string]float64{"a": 1, "b": 1}
	// At k=1 only the first item counts for both DCG and IDCG.
	if n := NDCG([]string{"a", "b"}, relevance, 1); !almostEqual(n, 1.0) {
		t.Errorf("NDCG@1 = %v, want 1.0", n)
	}
}

func TestMRR(t *testing.T) {
	queries := []Judgment[int]{
		{Ranked: []int{1, 2, 3}, Relevant: SetOf(2)}, // first hit at rank 2
		{Ranked: []int{4, 5, 6}, Relevant: SetOf(4)}, // first hit at rank 1
	}
	if m := MRR(queries); !almostEqual(m, 0.75) {
		t.Errorf("MRR = %v, want 0.75", m)
	}
}

func TestMRR_NoRelevant(t *testing.T) {
	queries := []Judgment[int]{
		{Ranked: []int{1, 2}, Relevant: SetOf(9)},
		{Ranked: []int{3}, Relevant: SetOf(3)},
	}
	if m := MRR(queries); !almostEqual(m, 0.5) {
		t.Errorf("MRR = %v, want 0.5", m)
	}
}
