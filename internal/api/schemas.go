package api

import (
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State       string                  `json:"state"`
	LastError   string                  `json:"last_error,omitempty"`
	JobsPending int                     `json:"jobs_pending"`
	JobsRunning int                     `json:"jobs_running"`
	JobsDone    int                     `json:"jobs_completed"`
	JobsFailed  int                     `json:"jobs_failed"`
	ActiveJob   *JobResponse            `json:"active_job,omitempty"`
	Provider    *ProviderStatusResponse `json:"provider,omitempty"`
}

type ProviderStatusResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version,omitempty"`
	Models      []string `json:"models,omitempty"`
	LastProbeAt string   `json:"last_probe_at,omitempty"`
}

// SegmentResponse is the body of a successful POST /segment.
type SegmentResponse struct {
	Data     *segments.SegmentationResult `json:"data"`
	Progress []pipeline.ProgressEvent     `json:"progress"`
	Summary  segments.Summary             `json:"summary"`
}

type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	Progress    int    `json:"progress"`
	VideoURL    string `json:"video_url"`
	Strategy    string `json:"strategy"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// JobDetailResponse adds the input, event history and, once complete, the result.
type JobDetailResponse struct {
	JobResponse
	Input   segments.Input               `json:"input"`
	Events  []runs.Event                 `json:"events"`
	Result  *segments.SegmentationResult `json:"result,omitempty"`
	Summary *segments.Summary            `json:"summary,omitempty"`
}

type SplitRequest struct {
	VideoURL string                  `json:"video_url"`
	Segments []segments.VideoSegment `json:"segments"`
}

type SplitResponse struct {
	URLs []string `json:"urls"`
}

type ExportEDLRequest struct {
	JobID       string  `json:"job_id"`
	ProjectName string  `json:"project_name"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
	OutputDir   string  `json:"output_dir"`
	MediaPath   string  `json:"media_path,omitempty"`
}

type ExportResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(r *runs.Run) JobResponse {
	resp := JobResponse{
		ID:        r.ID,
		Status:    string(r.Status),
		Stage:     string(r.Stage),
		Progress:  r.Progress,
		VideoURL:  r.Input.VideoURL,
		Strategy:  string(r.Input.SplitStrategy),
		Error:     r.Error,
		ErrorKind: string(r.ErrorKind),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
