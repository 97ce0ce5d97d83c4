package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-segmenter/internal/provider"
	"github.com/heimdex/heimdex-segmenter/internal/runs"
)

// RunQueue is the slice of the background runner the tray controls.
type RunQueue interface {
	Pause()
	Resume()
	IsPaused() bool
	ActiveRunCount() int
}

type RunCounter interface {
	Counts(ctx context.Context) (runs.StatusCounts, error)
}

type ProviderHealth interface {
	Peek() *provider.Health
}

type Tray struct {
	runner   RunQueue
	counter  RunCounter
	probe    ProviderHealth
	logger   *slog.Logger
	interval time.Duration

	statusItem   *systray.MenuItem
	jobsItem     *systray.MenuItem
	providerItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onOpenSplits func() error
	onQuit       func()
}

type TrayConfig struct {
	Runner       RunQueue
	Counter      RunCounter
	Probe        ProviderHealth
	Logger       *slog.Logger
	OnOpenSplits func() error
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner:       cfg.Runner,
		counter:      cfg.Counter,
		probe:        cfg.Probe,
		logger:       cfg.Logger,
		interval:     5 * time.Second,
		onOpenSplits: cfg.OnOpenSplits,
		onQuit:       cfg.OnQuit,
	}
}

// Run blocks on the systray event loop until Quit.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, t.onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Segmenter")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current segmenter status")
	t.statusItem.Disable()

	t.jobsItem = systray.AddMenuItem("Jobs: 0 queued", "Queued segmentation jobs")
	t.jobsItem.Disable()

	t.providerItem = systray.AddMenuItem("Provider: unknown", "Vision provider health")
	t.providerItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause queued segmentation")
	openItem := systray.AddMenuItem("Open Splits Folder", "Show split clips")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Segmenter")

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.refresh(ctx)
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-openItem.ClickedCh:
				if t.onOpenSplits != nil {
					if err := t.onOpenSplits(); err != nil {
						t.logger.Error("failed to open splits folder", "error", err)
					}
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
	}
	t.statusItem.SetTitle("Status: " + trayState(t.runner.IsPaused(), t.runner.ActiveRunCount()))
}

func (t *Tray) refresh(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil {
		t.statusItem.SetTitle("Status: " + trayState(t.runner.IsPaused(), t.runner.ActiveRunCount()))
	}
	if t.counter != nil {
		if counts, err := t.counter.Counts(ctx); err == nil {
			t.jobsItem.SetTitle(jobsTitle(counts))
		}
	}
	if t.probe != nil {
		t.providerItem.SetTitle(providerTitle(t.probe.Peek()))
	}
}

func trayState(paused bool, active int) string {
	switch {
	case paused:
		return "Paused"
	case active > 0:
		return "Segmenting"
	default:
		return "Idle"
	}
}

func jobsTitle(c runs.StatusCounts) string {
	if n := c[runs.StatusFailed]; n > 0 {
		return fmt.Sprintf("Jobs: %d queued, %d failed", c[runs.StatusPending], n)
	}
	return fmt.Sprintf("Jobs: %d queued", c[runs.StatusPending])
}

func providerTitle(h *provider.Health) string {
	switch {
	case h == nil:
		return "Provider: unknown"
	case h.OK():
		if h.Version != "" {
			return "Provider: ready (" + h.Version + ")"
		}
		return "Provider: ready"
	default:
		return "Provider: " + h.Status
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
