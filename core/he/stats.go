package he

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/montanaflynn/stats"

	"github.com/helago/helago/core/dcrt"
)

// NoiseStats collects the named noise-ratio samples emitted by the
// noise-estimating operations (mod-switching, key-switching). Attach an
// instance to a context via its Stats field to enable recording.
type NoiseStats struct {
	mu      sync.Mutex
	samples map[string][]float64
}

var _ dcrt.Recorder = (*NoiseStats)(nil)

// NewNoiseStats returns an empty collector.
func NewNoiseStats() *NoiseStats {
	return &NoiseStats{samples: make(map[string][]float64)}
}

// Update records one sample under the given name.
func (s *NoiseStats) Update(name string, ratio float64) {
	s.mu.Lock()
	s.samples[name] = append(s.samples[name], ratio)
	s.mu.Unlock()
}

// NoiseSummary aggregates the samples recorded under one name.
type NoiseSummary struct {
	Count  int
	Mean   float64
	Median float64
	Max    float64
}

// Summary returns the per-name aggregates of the recorded samples.
func (s *NoiseStats) Summary() map[string]NoiseSummary {

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]NoiseSummary, len(s.samples))
	for name, v := range s.samples {
		mean, _ := stats.Mean(v)
		median, _ := stats.Median(v)
		max, _ := stats.Max(v)
		out[name] = NoiseSummary{Count: len(v), Mean: mean, Median: median, Max: max}
	}
	return out
}

func (s *NoiseStats) String() string {

	summary := s.Summary()

	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		v := summary[name]
		fmt.Fprintf(&b, "%s: count=%d mean=%.4g median=%.4g max=%.4g\n",
			name, v.Count, v.Mean, v.Median, v.Max)
	}
	return b.String()
}
