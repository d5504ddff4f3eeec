// Package main implements the devicelink command: a long-running client that
// holds an authenticated telemetry stream open, keeps the device inventory in
// sync with it and exposes metrics, health and an optional NATS fan-out.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/c360/devicelink/config"
	"github.com/c360/devicelink/credential"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/health"
	"github.com/c360/devicelink/metric"
	"github.com/c360/devicelink/output/natsbridge"
	"github.com/c360/devicelink/session"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "devicelink"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, shouldExit, err := initializeCLI(args)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg, os.Getenv)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	return a.serve(ctx, sigs, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string) (*CLIConfig, bool, error) {
	cliCfg, fs, err := parseFlags(args, os.Getenv)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp(os.Stderr, fs)
		return nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting devicelink",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// loadConfig layers the config file over defaults, applies environment and
// flag overrides, then validates.
func loadConfig(cliCfg *CLIConfig, getenv func(string) string) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.set["credentials"] {
		cfg.Credentials.File = cliCfg.CredentialsFile
	}
	if cliCfg.set["endpoint"] {
		cfg.Stream.Endpoint = cliCfg.Endpoint
	}
	if cliCfg.set["metrics-port"] {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}
	if cfg.Credentials.File == "" {
		cfg.Credentials.File = defaultCredentialsFile(getenv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultCredentialsFile(getenv func(string) string) string {
	if home := getenv("HOME"); home != "" {
		return home + "/." + appName + "/session.json"
	}
	return "session.json"
}

// app owns every long-lived component of the running client
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	creds    *credential.FileStore
	session  *session.Session
	bridge   *natsbridge.Bridge
	server   *metric.Server
	monitor  *health.Monitor
}

// newApp builds the session and its satellites. Nothing is dialled until serve.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, sessionOpts ...session.Option) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(),
	}
	a.registry.CoreMetrics().SetBuildInfo(Version)

	creds, err := credential.NewFileStore(cfg.Credentials.File, logger)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	a.creds = creds

	devices, err := cfg.DeviceInventory()
	if err != nil {
		return nil, fmt.Errorf("load device inventory: %w", err)
	}

	opts := append([]session.Option{
		session.WithLogger(logger),
		session.WithMetricsRegistry(a.registry),
	}, sessionOpts...)
	a.session, err = session.New(session.Config{
		Connection:  cfg.Stream,
		Devices:     devices,
		HistorySize: cfg.History.Size,
	}, creds, opts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if cfg.NATS.Enabled {
		if err := a.connectBridge(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Metrics.Enabled {
		var healthHandler http.Handler
		if cfg.Health.Enabled {
			healthHandler = health.Handler(a.healthStatus)
		}
		a.server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.registry, healthHandler)
	}

	return a, nil
}

func (a *app) connectBridge(ctx context.Context) error {
	bridgeMetrics, err := natsbridge.NewMetrics(a.registry)
	if err != nil {
		return fmt.Errorf("register bridge metrics: %w", err)
	}

	n := a.cfg.NATS
	bridge, err := natsbridge.Connect(ctx, natsbridge.Config{
		URLs:          n.URLs,
		SubjectPrefix: n.SubjectPrefix,
		MaxReconnects: n.MaxReconnects,
		ReconnectWait: n.ReconnectWait,
		ConnectRetry:  n.ConnectRetry,
		Token:         n.Token,
		TLS:           n.TLS,
	},
		natsbridge.WithSessionID(a.session.ID()),
		natsbridge.WithLogger(a.logger),
		natsbridge.WithMetrics(bridgeMetrics, a.registry))
	if err != nil {
		return fmt.Errorf("connect NATS bridge: %w", err)
	}

	a.bridge = bridge
	a.session.Observe(bridge)
	return nil
}

// healthStatus aggregates the stream and, when present, the bridge
func (a *app) healthStatus() health.Status {
	a.monitor.Update("stream", a.session.Health())
	if a.bridge != nil {
		a.monitor.Update("nats-bridge", a.bridge.Health())
	}
	return a.monitor.AggregateHealth(appName)
}

func (a *app) start() error {
	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		a.logger.Info("Metrics server started", "address", a.server.Address())
	}

	if _, ok := a.creds.Identity(); !ok {
		a.logger.Warn("No session identity, waiting for login", "path", a.creds.Path())
	}
	a.session.Start()
	return nil
}

// reloadCredentials re-reads the session file and resyncs the stream
func (a *app) reloadCredentials() {
	changed, err := a.creds.Reload()
	if err != nil {
		a.registry.CoreMetrics().RecordError("credential-store", err)
	}
	if changed || err != nil {
		a.session.IdentityChanged()
	}
	a.logger.Info("Credentials reloaded", "changed", changed, "state", a.session.State())
}

// serve starts the client and blocks until a terminating signal or ctx ends.
// SIGHUP reloads credentials.
func (a *app) serve(ctx context.Context, sigs <-chan os.Signal, shutdownTimeout time.Duration) error {
	if err := a.start(); err != nil {
		_ = a.shutdown(context.Background())
		return err
	}
	a.logger.Info("devicelink started", "session_id", a.session.ID())

	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				a.reloadCredentials()
				continue
			}
			a.logger.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			a.logger.Info("Context cancelled, shutting down")
		}
		break
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.logger.Info("devicelink shutdown complete")
	return nil
}

// shutdown closes the stream first so the last state change still reaches the bridge
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.session.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), "app", "shutdown", "stop components")
	}
	return nil
}
