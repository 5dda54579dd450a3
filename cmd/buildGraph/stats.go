package main

import (
	"fmt"
	"sort"
)

// point is the median throughput of one concurrency level.
type point struct {
	x, median, min, max float64
}

type points []point

func (s points) Len() int                { return len(s) }
func (s points) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s points) YError(i int) (low, high float64) {
	return s[i].median - s[i].min, s[i].max - s[i].median
}

// groupByCPU buckets throughput samples by CPU count, implementation and
// producers plus consumers.
func groupByCPU(sessions []FullReport) map[int]map[string]map[int][]float64 {
	out := make(map[int]map[string]map[int][]float64)
	for _, session := range sessions {
		cpus := session.SystemInfo.SimulatedCPUCount
		if cpus == 0 {
			cpus = session.SystemInfo.NumCPU
		}
		byImpl, ok := out[cpus]
		if !ok {
			byImpl = make(map[string]map[int][]float64)
			out[cpus] = byImpl
		}
		for _, b := range session.Benchmarks {
			if b.Throughput <= 0 {
				continue
			}
			byLevel, ok := byImpl[b.Implementation]
			if !ok {
				byLevel = make(map[int][]float64)
				byImpl[b.Implementation] = byLevel
			}
			level := b.NumProducers + b.NumConsumers
			byLevel[level] = append(byLevel[level], b.Throughput)
		}
	}
	return out
}

// bestThroughput returns the fastest run of each implementation across all sessions.
func bestThroughput(sessions []FullReport) map[string]float64 {
	best := make(map[string]float64)
	for _, session := range sessions {
		for _, b := range session.Benchmarks {
			if b.Throughput > best[b.Implementation] {
				best[b.Implementation] = b.Throughput
			}
		}
	}
	return best
}

func concurrencyLevels(byImpl map[string]map[int][]float64) []int {
	seen := make(map[int]struct{})
	for _, byLevel := range byImpl {
		for level := range byLevel {
			seen[level] = struct{}{}
		}
	}
	levels := make([]int, 0, len(seen))
	for level := range seen {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// summarize turns samples into points placed at index[level], sorted by x.
func summarize(byLevel map[int][]float64, index map[int]float64) points {
	var out points
	for level, vals := range byLevel {
		if len(vals) == 0 {
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		out = append(out, point{
			x:      index[level],
			median: median(sorted),
			min:    sorted[0],
			max:    sorted[len(sorted)-1],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].x < out[j].x })
	return out
}

func median(sorted []float64) float64 {
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatRate prints a messages-per-second value with a k/M/G suffix.
func formatRate(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fG", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
