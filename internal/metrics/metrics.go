// Package metrics provides retrieval quality measures over document identifiers.
//
// All functions are pure and total: every input, including empty sets and
// lists, maps to a value in [0, 1] using the conventional zero-value rules
// (empty retrieved set -> precision 0, empty relevant set -> recall 0, and so
// on). Nothing here errors.
package metrics

import (
	"math"
	"sort"
)

// Set is a collection of document identifiers; presence in the map is
// membership.
type Set[T comparable] map[T]struct{}

// SetOf builds a Set from the given identifiers.
func SetOf[T comparable](ids ...T) Set[T] {
	s := make(Set[T], len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Judgment pairs one query's ranked retrieval with its relevant set, for the
// metrics averaged across queries (MAP, MRR).
type Judgment[T comparable] struct {
	Ranked   []T
	Relevant Set[T]
}

// Precision is the fraction of retrieved documents that are relevant.
func Precision[T comparable](retrieved, relevant Set[T]) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	return float64(intersectionSize(retrieved, relevant)) / float64(len(retrieved))
}

// Recall is the fraction of relevant documents that were retrieved.
func Recall[T comparable](retrieved, relevant Set[T]) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(intersectionSize(retrieved, relevant)) / float64(len(relevant))
}

// F1 is the harmonic mean of precision and recall, 0 when both are 0.
func F1[T comparable](retrieved, relevant Set[T]) float64 {
	p := Precision(retrieved, relevant)
	r := Recall(retrieved, relevant)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// AveragePrecision sums precision-at-i over the ranks i where the i-th
// retrieved document is relevant, divided by the number of relevant
// documents. 0 when the relevant set is empty or no relevant document was
// retrieved.
func AveragePrecision[T comparable](ranked []T, relevant Set[T]) float64 {
	if len(relevant) == 0 || len(ranked) == 0 {
		return 0
	}
	var sum float64
	hits := 0
	for i, id := range ranked {
		if _, ok := relevant[id]; ok {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	if hits == 0 {
		return 0
	}
	return sum / float64(len(relevant))
}

// MeanAveragePrecision is the arithmetic mean of AveragePrecision across
// queries; 0 for an empty query list.
func MeanAveragePrecision[T comparable](queries []Judgment[T]) float64 {
	if len(queries) == 0 {
		return 0
	}
	var sum float64
	for _, q := range queries {
		sum += AveragePrecision(q.Ranked, q.Relevant)
	}
	return sum / float64(len(queries))
}

// NDCG computes normalized discounted cumulative gain at k: DCG over the
// first k ranked documents divided by the ideal DCG of the same relevance
// scores sorted descending. 0 when the ideal DCG is 0.
func NDCG[T comparable](ranked []T, relevance map[T]float64, k int) float64 {
	if len(ranked) == 0 || len(relevance) == 0 || k <= 0 {
		return 0
	}
	var dcg float64
	for i, id := range ranked {
		if i >= k {
			break
		}
		dcg += relevance[id] / math.Log2(float64(i+2))
	}
	ideal := make([]float64, 0, len(relevance))
	for _, rel := range relevance {
		ideal = append(ideal, rel)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	var idcg float64
	for i, rel := range ideal {
		if i >= k {
			break
		}
		idcg += rel / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// MRR is the mean over queries of 1/(rank of the first relevant document,
// 1-indexed), counting 0 for queries where no relevant document appears.
func MRR[T comparable](queries []Judgment[T]) float64 {
	if len(queries) == 0 {
		return 0
	}
	var sum float64
	for _, q := range queries {
		for i, id := range q.Ranked {
			if _, ok := q.Relevant[id]; ok {
				sum += 1 / float64(i+1)
				break
			}
		}
	}
	return sum / float64(len(queries))
}

func intersectionSize[T comparable](a, b Set[T]) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for id := range a {
		if _, ok := b[id]; ok {
			n++
		}
	}
	return n
}
