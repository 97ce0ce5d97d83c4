package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	// EnvProviderToken carries the credential into the provider subprocess.
	EnvProviderToken = "HEIMDEX_PROVIDER_TOKEN"
)

type SubprocessConfig struct {
	PythonPath string        // path to python binary; empty = auto-detect
	ModuleName string        // e.g. "heimdex_vision"
	WorkDir    string        // request/response files live under here
	Token      string        // exported to the subprocess environment
	Timeout    time.Duration // per command
	Logger     *slog.Logger
}

// RunResult is the structured outcome of one provider subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// SubprocessProvider runs `python -m <module> <command> --request <in> --out <out>`
// and parses the same JSON contracts the HTTP provider uses.
type SubprocessProvider struct {
	cfg    SubprocessConfig
	python string
}

func NewSubprocessProvider(cfg SubprocessConfig) (*SubprocessProvider, error) {
	python, err := resolvePython(cfg.PythonPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create provider work dir: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}

	cfg.Logger.Info("subprocess provider initialised",
		"python", python,
		"module", cfg.ModuleName,
		"work_dir", cfg.WorkDir,
	)

	return &SubprocessProvider{cfg: cfg, python: python}, nil
}

func (p *SubprocessProvider) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	var resp DetectResponse
	if err := p.invoke(ctx, "detect", req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *SubprocessProvider) Track(ctx context.Context, req TrackRequest) (*TrackResponse, error) {
	var resp TrackResponse
	if err := p.invoke(ctx, "track", req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *SubprocessProvider) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := p.invoke(ctx, "health", struct{}{}, &h); err != nil {
		return nil, err
	}
	h.ProbedAt = time.Now()
	return &h, nil
}

func (p *SubprocessProvider) invoke(ctx context.Context, command string, req, out any) error {
	dir := filepath.Join(p.cfg.WorkDir, command+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create call dir: %w", err)
	}
	defer os.RemoveAll(dir)

	reqPath := filepath.Join(dir, "request.json")
	outPath := filepath.Join(dir, "result.json")

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", command, err)
	}
	if err := os.WriteFile(reqPath, data, 0600); err != nil {
		return fmt.Errorf("write %s request: %w", command, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	result := p.exec(ctx, outPath, command, "--request", reqPath, "--out", outPath)
	if !result.IsSuccess() {
		return fmt.Errorf("provider %s exited %d: %s", command, result.ExitCode, truncate(result.StderrTail, 512))
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("cannot read %s output: %w", command, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: parse %s output: %v", ErrMalformedResponse, command, err)
	}
	return nil
}

// exec is the core subprocess execution helper.
func (p *SubprocessProvider) exec(ctx context.Context, outPath string, args ...string) RunResult {
	start := time.Now()

	cmdArgs := append([]string{"-m", p.cfg.ModuleName}, args...)
	cmd := exec.CommandContext(ctx, p.python, cmdArgs...)
	cmd.Env = append(os.Environ(), EnvProviderToken+"="+p.cfg.Token)

	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard // CLI writes to --out file, not stdout

	p.cfg.Logger.Info("executing provider command", "args", cmdArgs)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderrBuf.WriteString(err.Error())
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 {
		p.cfg.Logger.Warn("provider command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		p.cfg.Logger.Info("provider command succeeded",
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

// resolvePython finds a usable python binary.
func resolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
