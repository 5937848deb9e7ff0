// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tree

import (
	"math"
	"sort"
)

// SplitCandidate is a possible split of the rows in a node.
type SplitCandidate struct {
	FeatureIndex int
	SplitValue   float64
	Gain         float64
	LHSSize      int
	RHSSize      int
}

// goesLeft routes a feature value: categorical values equal to split go
// left, numerical values below split go left.
func goesLeft(value, split float64, categorical bool) bool {
	if categorical {
		return value == split
	}
	return value < split
}

// gain scores a split by GL^2/(nL+lambda) + GR^2/(nR+lambda), where GL and
// GR are the gradient sums of both sides. Deterministic gains are floored
// to 10 decimals.
func gain(gl float64, nl int, gr float64, nr int, lambda float64, deterministic bool) float64 {
	g := gl*gl/(float64(nl)+lambda) + gr*gr/(float64(nr)+lambda)
	if deterministic {
		g = math.Floor(g*1e10) / 1e10
	}
	return max(g, 0)
}

// candidateSplits scores every split value of one feature. Values are
// tried in order of first appearance in column, or in grid order when grid
// is non-nil. Splits that leave one side empty are skipped.
func candidateSplits(feature int, column, gradients []float64, categorical bool, grid []float64, lambda float64, deterministic bool) []SplitCandidate {
	n := len(column)
	var total float64
	for _, g := range gradients {
		total += g
	}

	if categorical {
		return categoricalSplits(feature, column, gradients, total, lambda, deterministic)
	}

	values := grid
	if values == nil {
		values = uniqueInOrder(column)
	}

	// rows sorted by value with suffix gradient sums, so both sides of
	// any threshold are a single lookup away
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return column[order[a]] < column[order[b]] })
	sorted := make([]float64, n)
	prefix := make([]float64, n+1)
	suffix := make([]float64, n+1)
	for i, idx := range order {
		sorted[i] = column[idx]
		prefix[i+1] = prefix[i] + gradients[idx]
	}
	for i := n - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + gradients[order[i]]
	}

	out := make([]SplitCandidate, 0, len(values))
	for _, v := range values {
		lhs := sort.SearchFloat64s(sorted, v)
		rhs := n - lhs
		if lhs == 0 || rhs == 0 {
			continue
		}
		out = append(out, SplitCandidate{
			FeatureIndex: feature,
			SplitValue:   v,
			Gain:         gain(prefix[lhs], lhs, suffix[lhs], rhs, lambda, deterministic),
			LHSSize:      lhs,
			RHSSize:      rhs,
		})
	}
	return out
}

func categoricalSplits(feature int, column, gradients []float64, total, lambda float64, deterministic bool) []SplitCandidate {
	type bucket struct {
		sum   float64
		count int
	}
	values := uniqueInOrder(column)
	buckets := make(map[float64]*bucket, len(values))
	for _, v := range values {
		buckets[v] = &bucket{}
	}
	for i, v := range column {
		b := buckets[v]
		b.sum += gradients[i]
		b.count++
	}

	n := len(column)
	out := make([]SplitCandidate, 0, len(values))
	for _, v := range values {
		b := buckets[v]
		if b.count == n {
			continue
		}
		out = append(out, SplitCandidate{
			FeatureIndex: feature,
			SplitValue:   v,
			Gain:         gain(b.sum, b.count, total-b.sum, n-b.count, lambda, deterministic),
			LHSSize:      b.count,
			RHSSize:      n - b.count,
		})
	}
	return out
}

func uniqueInOrder(column []float64) []float64 {
	seen := make(map[float64]struct{}, len(column))
	out := make([]float64, 0, len(column))
	for _, v := range column {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
