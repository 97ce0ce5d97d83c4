package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// maxBodyBytes bounds request bodies; /split carries full segment lists.
const maxBodyBytes = 8 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	if cfg.Clips != nil {
		r.With(LoopbackGuard()).Get("/splits/{name}", clipHandler(cfg))
		r.With(LoopbackGuard()).Head("/splits/{name}", clipHandler(cfg))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Config, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/segment", segmentHandler(cfg))
		r.Post("/split", splitHandler(cfg))
		r.Post("/jobs", submitJobHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
	})

	return r
}

// writeSegmentError maps a typed segmentation error onto an HTTP status.
// The body code is the error kind.
func writeSegmentError(w http.ResponseWriter, err error) {
	kind := segments.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case segments.KindInvalidInput:
		status = http.StatusBadRequest
	case segments.KindAuth:
		status = http.StatusUnauthorized
	}

	msg := err.Error()
	var segErr *segments.Error
	if errors.As(err, &segErr) {
		msg = segErr.Message
		if segErr.Cause != nil {
			msg += ": " + segErr.Cause.Error()
		}
	}
	WriteError(w, status, msg, string(kind))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", string(segments.KindInvalidInput))
		return false
	}
	return true
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := StatusResponse{State: "idle"}

		if cfg.Runs != nil {
			counts, err := cfg.Runs.Counts(ctx)
			if err != nil {
				cfg.Logger.Error("failed to count runs", "error", err)
				resp.LastError = "run store unavailable: " + err.Error()
			}
			resp.JobsPending = counts[runs.StatusPending]
			resp.JobsRunning = counts[runs.StatusRunning]
			resp.JobsDone = counts[runs.StatusCompleted]
			resp.JobsFailed = counts[runs.StatusFailed]

			recent, err := cfg.Runs.List(ctx, 10)
			if err != nil {
				cfg.Logger.Error("failed to list recent runs", "error", err)
				if resp.LastError == "" {
					resp.LastError = "run store unavailable: " + err.Error()
				}
			}
			for _, run := range recent {
				if run.Status == runs.StatusRunning && resp.ActiveJob == nil {
					job := JobToResponse(run)
					resp.ActiveJob = &job
				}
				if run.Status == runs.StatusFailed && resp.LastError == "" {
					resp.LastError = run.Error
				}
			}
		}

		switch {
		case cfg.Runner != nil && cfg.Runner.IsPaused():
			resp.State = "paused"
		case resp.ActiveJob != nil || (cfg.Runner != nil && cfg.Runner.ActiveRunCount() > 0):
			resp.State = "segmenting"
		case resp.LastError != "":
			resp.State = "error"
		}

		if cfg.Probe != nil {
			if h := cfg.Probe.Peek(); h != nil {
				ps := &ProviderStatusResponse{Status: h.Status, Version: h.Version, Models: h.Models}
				if !h.ProbedAt.IsZero() {
					ps.LastProbeAt = h.ProbedAt.Format(time.RFC3339)
				}
				resp.Provider = ps
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func segmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in segments.Input
		if !decodeBody(w, r, &in) {
			return
		}

		events := []pipeline.ProgressEvent{}
		result, err := cfg.Segmenter.DetectAndSplit(r.Context(), in, func(ev pipeline.ProgressEvent) {
			events = append(events, ev)
		})
		if err != nil {
			writeSegmentError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, SegmentResponse{
			Data:     result,
			Progress: events,
			Summary:  segments.Summarize(result),
		})
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.VideoURL) == "" {
			WriteError(w, http.StatusBadRequest, "video_url is required", string(segments.KindInvalidInput))
			return
		}

		urls, err := cfg.Segmenter.SplitVideo(r.Context(), req.VideoURL, req.Segments)
		if err != nil {
			writeSegmentError(w, err)
			return
		}
		if urls == nil {
			urls = []string{}
		}
		WriteJSON(w, http.StatusOK, SplitResponse{URLs: urls})
	}
}

func submitJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in segments.Input
		if !decodeBody(w, r, &in) {
			return
		}

		run, err := cfg.Runs.Submit(r.Context(), in)
		if err != nil {
			if segments.KindOf(err) == segments.KindInvalidInput {
				writeSegmentError(w, err)
				return
			}
			cfg.Logger.Error("failed to queue run", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to queue job", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, SubmitJobResponse{JobID: run.ID})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		list, err := cfg.Runs.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, run := range list {
			resp.Jobs[i] = JobToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		run, events, err := cfg.Runs.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		resp := JobDetailResponse{
			JobResponse: JobToResponse(run),
			Input:       run.Input,
			Events:      events,
			Result:      run.Result,
		}
		if run.Result != nil {
			summary := segments.Summarize(run.Result)
			resp.Summary = &summary
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func clipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := cfg.Clips.ServeClip(w, r, name); err != nil {
			cfg.Logger.Error("clip playback error", "error", err, "name", name)
		}
	}
}
