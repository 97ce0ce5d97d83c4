package splitter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-segmenter/internal/export"
	"github.com/heimdex/heimdex-segmenter/internal/segments"
)

// FFmpegSplitter stream-copies each segment into its own file under outDir
// and returns file:// URLs. It reads any input ffmpeg can open. Files are
// named <batch>_<segment id><ext>, with a fresh batch per Split call.
type FFmpegSplitter struct {
	ffmpeg  string
	outDir  string
	logger  *slog.Logger
	batchID func() string
}

func NewFFmpegSplitter(ffmpegPath, outDir string, logger *slog.Logger) (*FFmpegSplitter, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create split output dir: %w", err)
	}
	return &FFmpegSplitter{
		ffmpeg:  resolved,
		outDir:  outDir,
		logger:  logger,
		batchID: func() string { return uuid.NewString()[:8] },
	}, nil
}

func (f *FFmpegSplitter) Split(ctx context.Context, videoURL string, segs []segments.VideoSegment) ([]string, error) {
	input, ext, err := inputPath(videoURL)
	if err != nil {
		return nil, err
	}

	for _, s := range segs {
		if err := validateClipID(s.ID); err != nil {
			return nil, err
		}
	}

	batch := f.batchID()
	urls := make([]string, len(segs))
	for i, s := range segs {
		out := filepath.Join(f.outDir, batch+"_"+s.ID+ext)
		args := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-ss", formatSeconds(s.StartTime),
			"-to", formatSeconds(s.EndTime),
			"-i", input,
			"-c", "copy",
			out,
		}

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, f.ffmpeg, args...)
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg split of %s failed: %w: %s", s.ID, err, truncate(stderr.String(), 512))
		}

		f.logger.Info("segment written", "segment_id", s.ID, "output", filepath.Base(out))
		urls[i] = (&url.URL{Scheme: "file", Path: filepath.ToSlash(out)}).String()
	}
	return urls, nil
}

// validateClipID accepts only ids that are already safe single file names,
// so every output stays directly under outDir.
func validateClipID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
	case strings.ContainsAny(id, `/\`), filepath.Base(id) != id:
	case export.SanitizeName(id, 0) != id:
	default:
		return nil
	}
	return segments.NewInvalidInputError(fmt.Sprintf("segment id %q is not a valid clip name", id), nil)
}

// inputPath resolves file:// URLs to local paths; other URLs are handed to
// ffmpeg unchanged.
func inputPath(videoURL string) (string, string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid video url: %w", err)
	}
	ext := path.Ext(u.Path)
	if ext == "" {
		ext = ".mp4"
	}
	if u.Scheme == "file" || u.Scheme == "" {
		return filepath.FromSlash(u.Path), ext, nil
	}
	return videoURL, ext, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
