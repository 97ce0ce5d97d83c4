package segments

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the duration distribution of a result's segments.
type Summary struct {
	Count          int     `json:"count"`
	CoveredSeconds float64 `json:"covered_seconds"`
	MeanDuration   float64 `json:"mean_duration"`
	StdDevDuration float64 `json:"stddev_duration"`
	MinDuration    float64 `json:"min_duration"`
	MaxDuration    float64 `json:"max_duration"`
	// Coverage is CoveredSeconds over the video length, zero when the
	// length is unknown.
	Coverage float64 `json:"coverage"`
}

func Summarize(res *SegmentationResult) Summary {
	if res == nil || len(res.Segments) == 0 {
		return Summary{}
	}

	durations := make([]float64, len(res.Segments))
	for i, s := range res.Segments {
		durations[i] = s.Duration
	}

	sum := Summary{
		Count:          len(durations),
		CoveredSeconds: floats.Sum(durations),
		MinDuration:    floats.Min(durations),
		MaxDuration:    floats.Max(durations),
	}
	if len(durations) > 1 {
		sum.MeanDuration, sum.StdDevDuration = stat.MeanStdDev(durations, nil)
	} else {
		sum.MeanDuration = durations[0]
	}
	if res.FPS > 0 && res.TotalFrames > 0 {
		sum.Coverage = sum.CoveredSeconds / (float64(res.TotalFrames) / res.FPS)
	}
	return sum
}
