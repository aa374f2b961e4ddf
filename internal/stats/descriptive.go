// Package stats provides the descriptive statistics and ranking helpers
// behind quiz reports. All functions are pure and operate on plain score
// slices; inputs are never mutated.
package stats

import (
	"fmt"
	"math"
	"sort"
)

// Extremes is the min/max pair over a score set.
type Extremes struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bucket is one histogram bar: a half-open score range, its count and the
// share of submitted attempts it holds, pre-formatted with two decimals.
type Bucket struct {
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

// Median returns the middle value of scores (mean of the two middle values
// for even counts). An empty input yields an explicit 0 so the statistics
// report stays total.
func Median(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MinMax returns the extremes of scores, or nil for an empty input.
func MinMax(scores []float64) *Extremes {
	if len(scores) == 0 {
		return nil
	}

	ext := &Extremes{Min: scores[0], Max: scores[0]}
	for _, s := range scores[1:] {
		if s < ext.Min {
			ext.Min = s
		}
		if s > ext.Max {
			ext.Max = s
		}
	}
	return ext
}

// Mean returns the arithmetic mean of scores, or 0 for an empty input.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// StdDev returns the population standard deviation of scores, or nil for
// an empty input. Variance is taken around the arithmetic mean, not the
// median.
func StdDev(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}

	mean := Mean(scores)
	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	sd := math.Sqrt(variance)
	return &sd
}

// Dedup returns the distinct values of scores, preserving first-seen order.
func Dedup(scores []float64) []float64 {
	seen := make(map[float64]struct{}, len(scores))
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// histogram bucket geometry over the 0-10 score scale.
const (
	bucketWidth = 2.0
	bucketCount = 5
)

// Histogram distributes scores over the fixed buckets [0,2) [2,4) [4,6)
// [6,8) [8,10]. The top bucket is closed so a perfect 10 is counted.
// Percentages are count/submitted*100; "0.00%" when submitted is zero.
func Histogram(scores []float64, submitted int) []Bucket {
	counts := make([]int, bucketCount)
	for _, s := range scores {
		idx := int(s / bucketWidth)
		if idx < 0 {
			idx = 0
		}
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		counts[idx]++
	}

	buckets := make([]Bucket, bucketCount)
	for i := range buckets {
		lo := float64(i) * bucketWidth
		hi := lo + bucketWidth

		pct := "0.00%"
		if submitted > 0 {
			pct = fmt.Sprintf("%.2f%%", float64(counts[i])/float64(submitted)*100)
		}

		buckets[i] = Bucket{
			Label:      fmt.Sprintf("%g-%g", lo, hi),
			Count:      counts[i],
			Percentage: pct,
		}
	}
	return buckets
}
