package segments

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// ValidateInput checks a run request before any remote call is made.
func ValidateInput(in Input) error {
	if strings.TrimSpace(in.VideoURL) == "" {
		return NewInvalidInputError("videoUrl is required", nil)
	}
	u, err := url.Parse(in.VideoURL)
	if err != nil || u.Scheme == "" {
		return NewInvalidInputError("videoUrl must be an absolute URL", err)
	}

	if len(in.ObjectQueries) == 0 {
		return NewInvalidInputError("objectQueries must not be empty", nil)
	}
	for i, q := range in.ObjectQueries {
		if strings.TrimSpace(q) == "" {
			return NewInvalidInputError(fmt.Sprintf("objectQueries[%d] is blank", i), nil)
		}
	}

	if !in.SplitStrategy.Valid() {
		return NewInvalidInputError(fmt.Sprintf("unknown splitStrategy %q", in.SplitStrategy), nil)
	}
	if !in.SplitStrategy.Supported() {
		return NewInvalidInputError(fmt.Sprintf("splitStrategy %q", in.SplitStrategy), ErrStrategyNotSupported)
	}

	minDur, maxDur := in.MinDuration(), in.MaxDuration()
	if math.IsNaN(minDur) || math.IsNaN(maxDur) {
		return NewInvalidInputError("segment durations must be numbers", nil)
	}
	if minDur < 0 {
		return NewInvalidInputError("minSegmentDuration must not be negative", nil)
	}
	if maxDur <= 0 {
		return NewInvalidInputError("maxSegmentDuration must be positive", nil)
	}
	if minDur > maxDur {
		return NewInvalidInputError("minSegmentDuration must not exceed maxSegmentDuration", nil)
	}
	if !splitKeepsFloor(minDur, maxDur) {
		return NewInvalidInputError("maxSegmentDuration must be at least twice minSegmentDuration", nil)
	}

	if th := in.Threshold(); math.IsNaN(th) || th < 0 || th > 1 {
		return NewInvalidInputError("confidenceThreshold must be within [0,1]", nil)
	}
	return nil
}
