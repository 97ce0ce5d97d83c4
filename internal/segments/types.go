// Package segments holds the segmentation data model and the pure timeline
// synthesis that turns object tracks into exportable video segments.
package segments

// BoundingBox is expressed in frame pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ObjectDetection is one observation of one object in one frame.
// Timestamp is always FrameNumber / fps of the run that produced it.
type ObjectDetection struct {
	Label       string      `json:"label"`
	Confidence  float64     `json:"confidence"`
	BBox        BoundingBox `json:"bbox"`
	FrameNumber int         `json:"frameNumber"`
	Timestamp   float64     `json:"timestamp"`
}

// TrackedObject is one physical object followed across a frame range.
// Tracks are immutable once built.
type TrackedObject struct {
	TrackID    string            `json:"trackId"`
	Label      string            `json:"label"`
	Detections []ObjectDetection `json:"detections"`
	FirstFrame int               `json:"firstFrame"`
	LastFrame  int               `json:"lastFrame"`
	Duration   float64           `json:"duration"`
}

// StartTime returns the track's first frame in seconds.
func (t TrackedObject) StartTime(fps float64) float64 {
	return float64(t.FirstFrame) / fps
}

// EndTime returns the track's last frame in seconds.
func (t TrackedObject) EndTime(fps float64) float64 {
	return float64(t.LastFrame) / fps
}

// VideoSegment is a contiguous span of the source video.
type VideoSegment struct {
	ID              string          `json:"id"`
	StartTime       float64         `json:"startTime"`
	EndTime         float64         `json:"endTime"`
	Duration        float64         `json:"duration"`
	DetectedObjects []string        `json:"detectedObjects"`
	Tracks          []TrackedObject `json:"tracks"`
}

// SegmentationResult is the envelope returned by one pipeline run.
type SegmentationResult struct {
	Segments       []VideoSegment `json:"segments"`
	TotalDuration  float64        `json:"totalDuration"`
	FPS            float64        `json:"fps"`
	TotalFrames    int            `json:"totalFrames"`
	ProcessingTime int64          `json:"processingTime"` // milliseconds
}

// Strategy selects how tracks become segment boundaries.
type Strategy string

const (
	StrategyObjectPresence Strategy = "object-presence"
	StrategyObjectAbsence  Strategy = "object-absence"
	StrategySceneChange    Strategy = "scene-change"
)

// Valid reports whether s names a known strategy, supported or not.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyObjectPresence, StrategyObjectAbsence, StrategySceneChange:
		return true
	}
	return false
}

// Supported reports whether Synthesize can produce segments for s.
func (s Strategy) Supported() bool {
	return s == StrategyObjectPresence || s == StrategyObjectAbsence
}

const (
	DefaultMinSegmentDuration  = 3.0
	DefaultMaxSegmentDuration  = 30.0
	DefaultConfidenceThreshold = 0.5
)

// Input is the request for one detect-and-split run. The optional numeric
// fields fall back to the package defaults when nil.
type Input struct {
	VideoURL            string   `json:"videoUrl"`
	ObjectQueries       []string `json:"objectQueries"`
	SplitStrategy       Strategy `json:"splitStrategy"`
	MinSegmentDuration  *float64 `json:"minSegmentDuration,omitempty"`
	MaxSegmentDuration  *float64 `json:"maxSegmentDuration,omitempty"`
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
}

// MinDuration returns the effective minimum segment duration.
func (in Input) MinDuration() float64 {
	if in.MinSegmentDuration == nil {
		return DefaultMinSegmentDuration
	}
	return *in.MinSegmentDuration
}

// MaxDuration returns the effective maximum segment duration.
func (in Input) MaxDuration() float64 {
	if in.MaxSegmentDuration == nil {
		return DefaultMaxSegmentDuration
	}
	return *in.MaxSegmentDuration
}

// Threshold returns the effective detection confidence threshold.
func (in Input) Threshold() float64 {
	if in.ConfidenceThreshold == nil {
		return DefaultConfidenceThreshold
	}
	return *in.ConfidenceThreshold
}
