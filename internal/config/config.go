// Package config loads segmenter settings from HEIMDEX_* environment
// variables, falling back to defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort     = 8788
	DefaultLogLevel = "info"
	DefaultDataDir  = ".heimdex-segmenter"

	DefaultProviderMode       = "http"
	DefaultProviderURL        = "http://127.0.0.1:8500"
	DefaultProviderModule     = "heimdex_vision"
	DefaultProviderTimeout    = 120 // seconds
	DefaultProviderMaxRetries = 2

	DefaultFPS                 = 30.0
	DefaultTrackingConcurrency = 4
	DefaultTrackingPolicy      = "lenient"
	DefaultSplitter            = "fragment"

	DBFilename = "segmenter.db"

	EnvPort     = "HEIMDEX_PORT"
	EnvLogLevel = "HEIMDEX_LOG_LEVEL"
	EnvDataDir  = "HEIMDEX_DATA_DIR"
	EnvHeadless = "HEIMDEX_HEADLESS"

	EnvProviderMode       = "HEIMDEX_PROVIDER_MODE"
	EnvProviderURL        = "HEIMDEX_PROVIDER_URL"
	EnvProviderToken      = "HEIMDEX_PROVIDER_TOKEN"
	EnvProviderTimeout    = "HEIMDEX_PROVIDER_TIMEOUT"
	EnvProviderMaxRetries = "HEIMDEX_PROVIDER_MAX_RETRIES"
	EnvProviderPython     = "HEIMDEX_PROVIDER_PYTHON"
	EnvProviderModule     = "HEIMDEX_PROVIDER_MODULE"

	EnvDefaultFPS          = "HEIMDEX_DEFAULT_FPS"
	EnvTrackingConcurrency = "HEIMDEX_TRACKING_CONCURRENCY"
	EnvTrackingPolicy      = "HEIMDEX_TRACKING_POLICY"
	EnvSplitter            = "HEIMDEX_SPLITTER"
	EnvFFmpegPath          = "HEIMDEX_FFMPEG_PATH"
)

type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ArtifactsDir() string
	SplitsDir() string
	Headless() bool

	ProviderMode() string
	ProviderURL() string
	ProviderToken() string
	ProviderTimeout() time.Duration
	ProviderMaxRetries() int
	ProviderPython() string
	ProviderModule() string

	DefaultFPS() float64
	TrackingConcurrency() int
	TrackingPolicy() string
	Splitter() string
	FFmpegPath() string
}

type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	providerMode       string
	providerURL        string
	providerToken      string
	providerTimeout    time.Duration
	providerMaxRetries int
	providerPython     string
	providerModule     string

	defaultFPS          float64
	trackingConcurrency int
	trackingPolicy      string
	splitter            string
	ffmpegPath          string
}

// New reads the environment. The provider token is not checked here; the
// pipeline service rejects a missing credential when it is constructed.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:                DefaultPort,
		logLevel:            DefaultLogLevel,
		dataDir:             defaultDataDir(),
		providerMode:        DefaultProviderMode,
		providerURL:         DefaultProviderURL,
		providerTimeout:     DefaultProviderTimeout * time.Second,
		providerMaxRetries:  DefaultProviderMaxRetries,
		providerModule:      DefaultProviderModule,
		defaultFPS:          DefaultFPS,
		trackingConcurrency: DefaultTrackingConcurrency,
		trackingPolicy:      DefaultTrackingPolicy,
		splitter:            DefaultSplitter,
	}

	var err error
	if cfg.port, err = intEnv(EnvPort, cfg.port, 1, 65535); err != nil {
		return nil, err
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if cfg.headless, err = boolEnv(EnvHeadless); err != nil {
		return nil, err
	}

	if cfg.providerMode, err = enumEnv(EnvProviderMode, cfg.providerMode, "http", "subprocess"); err != nil {
		return nil, err
	}
	if pu := os.Getenv(EnvProviderURL); pu != "" {
		u, perr := url.Parse(pu)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid %s: must be an http(s) URL", EnvProviderURL)
		}
		cfg.providerURL = strings.TrimRight(pu, "/")
	}
	cfg.providerToken = strings.TrimSpace(os.Getenv(EnvProviderToken))

	timeoutSec, err := intEnv(EnvProviderTimeout, DefaultProviderTimeout, 1, 3600)
	if err != nil {
		return nil, err
	}
	cfg.providerTimeout = time.Duration(timeoutSec) * time.Second
	if cfg.providerMaxRetries, err = intEnv(EnvProviderMaxRetries, cfg.providerMaxRetries, 0, 10); err != nil {
		return nil, err
	}
	cfg.providerPython = os.Getenv(EnvProviderPython)
	if pm := os.Getenv(EnvProviderModule); pm != "" {
		cfg.providerModule = pm
	}

	if v := os.Getenv(EnvDefaultFPS); v != "" {
		fps, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDefaultFPS, perr)
		}
		if fps <= 0 || fps > 1000 {
			return nil, fmt.Errorf("invalid %s: must be in (0, 1000]", EnvDefaultFPS)
		}
		cfg.defaultFPS = fps
	}
	if cfg.trackingConcurrency, err = intEnv(EnvTrackingConcurrency, cfg.trackingConcurrency, 1, 64); err != nil {
		return nil, err
	}
	if cfg.trackingPolicy, err = enumEnv(EnvTrackingPolicy, cfg.trackingPolicy, "lenient", "strict"); err != nil {
		return nil, err
	}
	if cfg.splitter, err = enumEnv(EnvSplitter, cfg.splitter, "fragment", "ffmpeg"); err != nil {
		return nil, err
	}
	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)

	return cfg, nil
}

func (c *EnvConfig) Port() int        { return c.port }
func (c *EnvConfig) LogLevel() string { return c.logLevel }
func (c *EnvConfig) DataDir() string  { return c.dataDir }
func (c *EnvConfig) Headless() bool   { return c.headless }

func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ArtifactsDir holds request/response files of subprocess provider calls.
func (c *EnvConfig) ArtifactsDir() string {
	return filepath.Join(c.dataDir, "artifacts")
}

// SplitsDir receives media written by the ffmpeg splitter.
func (c *EnvConfig) SplitsDir() string {
	return filepath.Join(c.dataDir, "splits")
}

func (c *EnvConfig) ProviderMode() string           { return c.providerMode }
func (c *EnvConfig) ProviderURL() string            { return c.providerURL }
func (c *EnvConfig) ProviderToken() string          { return c.providerToken }
func (c *EnvConfig) ProviderTimeout() time.Duration { return c.providerTimeout }
func (c *EnvConfig) ProviderMaxRetries() int        { return c.providerMaxRetries }
func (c *EnvConfig) ProviderPython() string         { return c.providerPython }
func (c *EnvConfig) ProviderModule() string         { return c.providerModule }

func (c *EnvConfig) DefaultFPS() float64      { return c.defaultFPS }
func (c *EnvConfig) TrackingConcurrency() int { return c.trackingConcurrency }
func (c *EnvConfig) TrackingPolicy() string   { return c.trackingPolicy }
func (c *EnvConfig) Splitter() string         { return c.splitter }
func (c *EnvConfig) FFmpegPath() string       { return c.ffmpegPath }

func intEnv(name string, def, lo, hi int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

func boolEnv(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func enumEnv(name, def string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return def, nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s: %q is not one of %s", name, v, strings.Join(allowed, ", "))
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
