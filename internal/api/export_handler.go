package api

import (
	"net/http"
	"strings"

	"github.com/heimdex/heimdex-segmenter/internal/export"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportEDLRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.JobID) == "" {
			WriteError(w, http.StatusBadRequest, "job_id is required", "BAD_REQUEST")
			return
		}
		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		run, _, err := cfg.Runs.Get(r.Context(), req.JobID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if run.Status != runs.StatusCompleted || run.Result == nil {
			WriteError(w, http.StatusConflict, "job has not completed", "JOB_NOT_COMPLETE")
			return
		}
		if len(run.Result.Segments) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "job produced no segments", "NO_SEGMENTS")
			return
		}

		projectName := export.SanitizeName(req.ProjectName, 120)
		if projectName == "" {
			projectName = "heimdex_segments"
		}
		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = run.Result.FPS
		}
		mediaPath := req.MediaPath
		if mediaPath == "" {
			mediaPath = run.Input.VideoURL
		}

		clips := export.ClipsFromResult(run.Result, mediaPath)
		outputPath, err := export.WriteEDL(req.OutputDir, projectName, export.GenerateEDL(clips, projectName, frameRate))
		if err != nil {
			cfg.Logger.Error("edl export failed", "job_id", run.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		cfg.Logger.Info("edl exported", "job_id", run.ID, "clips", len(clips), "output", outputPath)
		WriteJSON(w, http.StatusOK, ExportResponse{
			Status:     "ok",
			Format:     "edl",
			OutputPath: outputPath,
			ClipCount:  len(clips),
		})
	}
}
