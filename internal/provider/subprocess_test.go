package provider

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got, want := buf.String(), " test data"; got != want {
		t.Errorf("after overflow got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestResolvePython_PreferredNotFound(t *testing.T) {
	if _, err := resolvePython("/nonexistent/python999"); err == nil {
		t.Fatal("expected error for nonexistent python")
	}
}

// fakePython writes a shell script that answers every provider command with
// the given JSON body, or fails with exit code 3 when body is empty.
func fakePython(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}

	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
if [ -z "$HEIMDEX_PROVIDER_TOKEN" ]; then echo "no token" >&2; exit 4; fi
`
	if body == "" {
		script += "echo 'model load failed' >&2\nexit 3\n"
	} else {
		script += "cat > \"$out\" <<'JSON'\n" + body + "\nJSON\n"
	}

	path := filepath.Join(t.TempDir(), "fakepython")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake python: %v", err)
	}
	return path
}

func newTestSubprocess(t *testing.T, python string) *SubprocessProvider {
	t.Helper()
	p, err := NewSubprocessProvider(SubprocessConfig{
		PythonPath: python,
		ModuleName: "heimdex_vision",
		WorkDir:    t.TempDir(),
		Token:      "secret",
		Timeout:    10 * time.Second,
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSubprocessProvider() error = %v", err)
	}
	return p
}

func TestSubprocessProvider_Track(t *testing.T) {
	p := newTestSubprocess(t, fakePython(t, `{"tracks":[{"object_id":"a","frame_indices":[4,5,6]}]}`))

	resp, err := p.Track(context.Background(), TrackRequest{VideoURL: "file:///v.mp4", Label: "car"})
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if len(resp.Tracks) != 1 || len(resp.Tracks[0].FrameIndices) != 3 {
		t.Errorf("unexpected tracks: %+v", resp.Tracks)
	}

	entries, _ := os.ReadDir(p.cfg.WorkDir)
	if len(entries) != 0 {
		t.Errorf("call dirs not cleaned up: %d left", len(entries))
	}
}

func TestSubprocessProvider_NonZeroExit(t *testing.T) {
	p := newTestSubprocess(t, fakePython(t, ""))

	_, err := p.Detect(context.Background(), DetectRequest{Queries: []string{"car"}})
	if err == nil {
		t.Fatal("expected error for failing subprocess")
	}
	if !strings.Contains(err.Error(), "exited 3") || !strings.Contains(err.Error(), "model load failed") {
		t.Errorf("error %q missing exit code or stderr tail", err)
	}
}

func TestSubprocessProvider_MalformedOutput(t *testing.T) {
	p := newTestSubprocess(t, fakePython(t, `{"fps": 30}`))

	if _, err := p.Detect(context.Background(), DetectRequest{Queries: []string{"car"}}); err == nil {
		t.Fatal("expected validation error for missing frames")
	}
}
