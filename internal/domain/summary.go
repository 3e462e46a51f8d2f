package domain

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SampleSummary describes the distribution of a DamageSample.
type SampleSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P5     float64 `json:"p5"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// Summarize computes descriptive statistics. An empty sample gives a zero
// summary.
func Summarize(sample DamageSample) SampleSummary {
	if len(sample) == 0 {
		return SampleSummary{}
	}

	sorted := slices.Clone([]float64(sample))
	slices.Sort(sorted)

	s := SampleSummary{
		Count: len(sorted),
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
		P5:    stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) == 1 {
		s.Mean = sorted[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(sorted, nil)
	return s
}
