//go:build linux

// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/asio/internal/command"
	"firestige.xyz/asio/internal/config"
	"firestige.xyz/asio/internal/echo"
	"firestige.xyz/asio/internal/log"
	"firestige.xyz/asio/internal/metrics"
)

// Version is reported by daemon_status and the start banner.
const Version = "0.1.0"

// Daemon manages the asio daemon process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string

	// Core components
	lg            log.Logger
	listener      *echo.Listener
	server        *echo.Server
	cmdHandler    *command.Handler
	udsServer     *command.UDSServer // nil if control socket disabled
	metricsServer *metrics.Server    // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdownChan chan struct{}
	stopOnce     sync.Once
	serverDone   chan error
	sigChan      chan os.Signal // promoted from Run() local for cleanup in Stop()
	startedAt    time.Time
}

// New creates a new Daemon instance. cfg is the fully loaded and
// validated configuration; configPath is kept for SIGHUP reloads.
func New(cfg *config.GlobalConfig, configPath string) *Daemon {
	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		shutdownChan: make(chan struct{}),
		serverDone:   make(chan error, 1),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes and starts all daemon components.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	lg, err := log.New(&d.config.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	d.lg = lg

	d.lg.Infof("starting asio daemon version %s, config %q", Version, d.configPath)

	// 2. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Bind the echo socket. A bind failure is fatal.
	family, err := echo.ParseFamily(d.config.Listen.Family)
	if err != nil {
		return err
	}
	listener, err := echo.Listen(family, d.config.Listen.Port)
	if err != nil {
		return err
	}
	d.listener = listener
	d.lg.Infof("listening on %s (%s)", listener.LocalAddr(), family)

	// 4. Ask for destination metadata. Failure degrades the service to
	// plain echoing instead of taking it down.
	if err := listener.EnableDestinationInfo(); err != nil {
		d.lg.WithError(err).Warn("destination discovery unavailable, replies use default source selection")
	}

	// 5. Start metrics server
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 6. Create the echo server over the listener
	d.server = echo.NewServer(listener, d.config.Echo.Count, d.lg)

	// 7. Create command handler and wire the control plane callbacks
	d.cmdHandler = command.NewHandler(d.lg)
	d.cmdHandler.SetStatusFunc(d.status)
	d.cmdHandler.SetStatsFunc(d.stats)
	d.cmdHandler.SetShutdownFunc(func() {
		d.lg.Info("shutdown triggered via daemon_shutdown command")
		d.TriggerShutdown()
	})

	// 8. Start UDS server for CLI control
	if d.config.Control.Socket != "" {
		d.udsServer = command.NewUDSServer(d.config.Control.Socket, d.cmdHandler, d.lg)
		if err := d.udsServer.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start control server: %w", err)
		}
	}

	// 9. Run the serve loop in background; Run() collects its result
	d.startedAt = time.Now()
	go func() {
		d.serverDone <- d.server.Run()
	}()

	d.lg.Info("daemon started successfully")
	return nil
}

// Run runs the daemon main loop, blocking until shutdown is triggered.
// Shutdown can be triggered by:
//  1. OS signals (SIGTERM, SIGINT)
//  2. daemon_shutdown command via UDS
//  3. the serve loop finishing (budget exhausted or receive failure)
//
// SIGHUP triggers a config reload. A receive failure is returned to the
// caller; every other path is a regular shutdown.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	d.lg.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				d.lg.Infof("received shutdown signal %s", sig)
				d.Stop()
				return nil

			case syscall.SIGHUP:
				d.lg.Info("received reload signal")
				if err := d.Reload(); err != nil {
					d.lg.WithError(err).Error("failed to reload config")
				}
			}

		case <-d.shutdownChan:
			// Shutdown triggered by daemon_shutdown command
			d.Stop()
			return nil

		case err := <-d.serverDone:
			d.Stop()
			if err != nil {
				return err
			}
			return nil

		case <-d.ctx.Done():
			d.lg.Infof("context cancelled: %v", d.ctx.Err())
			d.Stop()
			return nil
		}
	}
}

// Stop performs graceful shutdown of all daemon components. Safe to
// call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	d.lg.Info("initiating graceful shutdown")

	// 1. Stop the serve loop (closes the echo socket)
	if d.server != nil {
		d.server.Stop()
	}

	// 2. Stop UDS server (no new CLI commands)
	if d.udsServer != nil {
		d.udsServer.Stop()
	}

	// 3. Stop metrics server
	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			d.lg.WithError(err).Error("error stopping metrics server")
		}
	}

	// 4. Cancel context to signal all goroutines
	d.cancel()

	// 5. Unregister signal handler to prevent goroutine leak
	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	// 6. Remove PID file
	if err := d.removePIDFile(); err != nil {
		d.lg.WithError(err).Error("error removing PID file")
	}

	d.lg.Info("daemon stopped gracefully")
}

// TriggerShutdown triggers graceful shutdown from an external caller,
// e.g. the daemon_shutdown command. Safe to call more than once.
func (d *Daemon) TriggerShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownChan) })
}

// Reload re-reads the configuration file and applies what can change at
// runtime. Hot: log level. Cold (requires restart): listen address and
// family, reply budget, control socket, metrics address.
func (d *Daemon) Reload() error {
	if d.configPath == "" {
		d.lg.Info("no config file, nothing to reload")
		return nil
	}

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	hotReloaded := []string{}

	if newConfig.Log.Level != d.config.Log.Level {
		if ls, ok := d.lg.(log.LevelSetter); ok {
			if err := ls.SetLevel(newConfig.Log.Level); err != nil {
				d.lg.WithError(err).Error("failed to apply new log level")
			} else {
				d.config.Log.Level = newConfig.Log.Level
				hotReloaded = append(hotReloaded, "log.level")
			}
		}
	}

	requiresRestart := []string{}
	if newConfig.Listen.Port != d.config.Listen.Port {
		requiresRestart = append(requiresRestart, "listen.port")
	}
	if newConfig.Listen.Family != d.config.Listen.Family {
		requiresRestart = append(requiresRestart, "listen.family")
	}
	if newConfig.Echo.Count != d.config.Echo.Count {
		requiresRestart = append(requiresRestart, "echo.count")
	}
	if newConfig.Control.Socket != d.config.Control.Socket {
		requiresRestart = append(requiresRestart, "control.socket")
	}
	if newConfig.Metrics.Listen != d.config.Metrics.Listen {
		requiresRestart = append(requiresRestart, "metrics.listen")
	}

	d.lg.Infof("configuration reloaded, hot=%v requires_restart=%v", hotReloaded, requiresRestart)
	return nil
}

// status builds the daemon_status result.
func (d *Daemon) status() command.DaemonStatus {
	remaining, finite := d.server.Remaining()
	return command.DaemonStatus{
		Version:         Version,
		PID:             os.Getpid(),
		UptimeSec:       int64(time.Since(d.startedAt).Seconds()),
		Listen:          d.listener.LocalAddr().String(),
		Family:          d.listener.Family().String(),
		DestinationInfo: d.listener.DestinationInfoEnabled(),
		Unbounded:       !finite,
		Remaining:       remaining,
	}
}

// stats builds the daemon_stats result from a counters snapshot.
func (d *Daemon) stats() command.EchoStats {
	snap := d.server.Stats().Snapshot()
	return command.EchoStats{
		Received:       snap.Received,
		Replied:        snap.Replied,
		ReplyErrors:    snap.ReplyErrors,
		AbsentInfo:     snap.AbsentInfo,
		FamilyMismatch: snap.FamilyMismatch,
		Anomalies:      snap.Anomalies,
		Truncated:      snap.Truncated,
	}
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		d.lg.Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path, d.lg)
	return d.metricsServer.Start()
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.config.Control.PIDFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(d.config.Control.PIDFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.config.Control.PIDFile, err)
	}

	d.lg.Debugf("PID file written, path=%s pid=%d", d.config.Control.PIDFile, pid)
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.config.Control.PIDFile == "" {
		return nil
	}

	if err := os.Remove(d.config.Control.PIDFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.config.Control.PIDFile, err)
	}

	return nil
}
