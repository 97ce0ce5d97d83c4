package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-segmenter/internal/api"
	"github.com/heimdex/heimdex-segmenter/internal/config"
	"github.com/heimdex/heimdex-segmenter/internal/db"
	"github.com/heimdex/heimdex-segmenter/internal/logging"
	"github.com/heimdex/heimdex-segmenter/internal/pipeline"
	"github.com/heimdex/heimdex-segmenter/internal/playback"
	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
	"github.com/heimdex/heimdex-segmenter/internal/splitter"
	"github.com/heimdex/heimdex-segmenter/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.ArtifactsDir(), cfg.SplitsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex segmenter",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", cfg.DataDir(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := runs.NewRepository(database.Conn())

	deviceID, err := ensureSecret(repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureSecret(repo, api.ConfigKeyAuthToken, 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  HEIMDEX SEGMENTER v%-38s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	prov, err := newProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}
	probe := provider.NewCachedProbe(prov, logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout())
	if h, err := probe.Refresh(initCtx); err != nil {
		logger.Warn("initial provider probe failed", "error", err)
	} else {
		logger.Info("provider detected", "status", h.Status, "version", h.Version, "models", h.Models)
	}
	initCancel()

	split, err := newSplitter(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize splitter: %w", err)
	}

	policy, err := pipeline.ParseTrackingPolicy(cfg.TrackingPolicy())
	if err != nil {
		return err
	}

	segmenter, err := pipeline.NewService(pipeline.Config{
		Credential:          cfg.ProviderToken(),
		Provider:            prov,
		Splitter:            split,
		DefaultFPS:          cfg.DefaultFPS(),
		TrackingConcurrency: cfg.TrackingConcurrency(),
		TrackingPolicy:      policy,
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize segmentation pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runSvc := runs.NewService(repo, segmenter, logger)
	runner := runs.NewRunner(runSvc, repo, probe, logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Segmenter: segmenter,
		Runs:      runSvc,
		Runner:    runner,
		Config:    repo,
		Probe:     probe,
		Clips:     playback.NewServer(cfg.SplitsDir(), logger),
		Logger:    logger,
		StartTime: startTime,
		DeviceID:  deviceID,
		Version:   config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner:  runner,
			Counter: runSvc,
			Probe:   probe,
			Logger:  logger,
			OnOpenSplits: func() error {
				return openFolder(cfg.SplitsDir())
			},
			OnQuit: quit,
		})
		go tray.Run(ctx)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newProvider(cfg config.Config, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.ProviderMode() {
	case "subprocess":
		return provider.NewSubprocessProvider(provider.SubprocessConfig{
			PythonPath: cfg.ProviderPython(),
			ModuleName: cfg.ProviderModule(),
			WorkDir:    cfg.ArtifactsDir(),
			Token:      cfg.ProviderToken(),
			Timeout:    cfg.ProviderTimeout(),
			Logger:     logging.WithComponent(logger, "provider"),
		})
	default:
		logger.Info("using http provider", "url", logging.SanitizeURL(cfg.ProviderURL()))
		return provider.NewHTTPProvider(provider.HTTPConfig{
			BaseURL:    cfg.ProviderURL(),
			Token:      cfg.ProviderToken(),
			Timeout:    cfg.ProviderTimeout(),
			MaxRetries: cfg.ProviderMaxRetries(),
			Logger:     logging.WithComponent(logger, "provider"),
		}), nil
	}
}

func newSplitter(cfg config.Config, logger *slog.Logger) (splitter.Splitter, error) {
	if cfg.Splitter() == "ffmpeg" {
		return splitter.NewFFmpegSplitter(cfg.FFmpegPath(), cfg.SplitsDir(), logging.WithComponent(logger, "splitter"))
	}
	return splitter.NewFragmentSplitter(), nil
}

func ensureSecret(repo runs.Repository, key string, size int) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}

func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	return cmd.Start()
}
