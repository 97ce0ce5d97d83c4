// Package runs persists segmentation runs and executes queued ones in the
// background.
package runs

import (
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one queued or executed detect-and-split request.
type Run struct {
	ID          string                       `json:"id"`
	Status      Status                       `json:"status"`
	Stage       pipeline.Stage               `json:"stage,omitempty"`
	Progress    int                          `json:"progress"`
	Input       segments.Input               `json:"input"`
	Result      *segments.SegmentationResult `json:"result,omitempty"`
	Error       string                       `json:"error,omitempty"`
	ErrorKind   segments.Kind                `json:"error_kind,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
}

// Event is one persisted progress checkpoint of a run.
type Event struct {
	Seq       int       `json:"seq"`
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}

// StatusCounts is the number of runs per status.
type StatusCounts map[Status]int
