package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/history"
	"shuttle/internal/hosts"
	"shuttle/internal/logging"
	"shuttle/internal/remote"
	"shuttle/internal/transfer"
)

// Daemon enforces single-instance execution and runs the HTTP API, the
// transfer engine's admission loop, and the periodic sweep.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *hosts.Registry
	sessions  *remote.Manager
	transfers *transfer.Manager
	hub       *events.Hub
	journal   *history.Journal

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	sweeper sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	HistoryDBPath string
	Hosts         []string
	Sessions      []string
	Stats         transfer.Stats
}

// New constructs a daemon with initialized dependencies. The journal may
// be nil when history is disabled.
func New(cfg *config.Config, registry *hosts.Registry, sessions *remote.Manager, transfers *transfer.Manager, hub *events.Hub, journal *history.Journal, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || registry == nil || sessions == nil || transfers == nil || hub == nil {
		return nil, errors.New("daemon requires config, registry, sessions, transfers, and event hub")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "shuttled.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		sessions:  sessions,
		transfers: transfers,
		hub:       hub,
		journal:   journal,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the engine, sweep loop, and
// API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shuttle daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.transfers.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start transfer engine: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.transfers.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.sweeper.Add(1)
	go d.runSweep(runCtx)

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("hosts", len(d.registry.All())))
	return nil
}

// Stop shuts the API down, drains the transfer engine, and releases every
// SSH session and the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.running.Store(false)

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.sweeper.Wait()
	d.transfers.Stop()
	d.sessions.ReleaseAll()
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.Warn("history close failed", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("lock release failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Wait blocks until ctx ends, then stops the daemon.
func (d *Daemon) Wait(ctx context.Context) {
	<-ctx.Done()
	d.Stop()
}

func (d *Daemon) runSweep(ctx context.Context) {
	defer d.sweeper.Done()
	interval := time.Duration(d.cfg.Transfers.SweepInterval) * time.Minute
	if interval <= 0 {
		return
	}
	maxAge := time.Duration(d.cfg.Transfers.SweepMaxAge) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.transfers.Sweep(maxAge)
		}
	}
}

// Status reports daemon runtime information.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Sessions:     d.sessions.ActiveSessions(),
		Stats:        d.transfers.Stats(),
	}
	if d.journal != nil {
		status.HistoryDBPath = d.journal.Path()
	}
	for _, host := range d.registry.All() {
		status.Hosts = append(status.Hosts, host.ID)
	}
	return status
}
