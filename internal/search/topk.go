// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package search

import (
	"container/heap"
	"slices"
	"strings"
)

// Match is one ranked search result.
type Match struct {
	RecordID   string  `json:"record_id"`
	Similarity float64 `json:"similarity"`
}

// ranksBefore orders by similarity descending, then record ID ascending.
func ranksBefore(a, b Match) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.RecordID < b.RecordID
}

// worstFirst is a heap whose root is the lowest-ranked match kept so far.
type worstFirst []Match

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Match)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}

// topK keeps the k best matches offered to it.
type topK struct {
	k int
	h worstFirst
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(worstFirst, 0, min(k, 1024))}
}

func (t *topK) offer(m Match) {
	if len(t.h) < t.k {
		heap.Push(&t.h, m)
		return
	}
	if ranksBefore(m, t.h[0]) {
		t.h[0] = m
		heap.Fix(&t.h, 0)
	}
}

// sorted returns the kept matches best first.
func (t *topK) sorted() []Match {
	out := slices.Clone([]Match(t.h))
	slices.SortFunc(out, func(a, b Match) int {
		switch {
		case ranksBefore(a, b):
			return -1
		case ranksBefore(b, a):
			return 1
		default:
			return strings.Compare(a.RecordID, b.RecordID)
		}
	})
	return out
}
