package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	CredentialsFile string
	Endpoint        string
	LogLevel        string
	LogFormat       string
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool

	// set records which overriding flags were given explicitly
	set map[string]bool
}

func parseFlags(args []string, getenv func(string) string) (*CLIConfig, *pflag.FlagSet, error) {
	cfg := &CLIConfig{set: make(map[string]bool)}
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)

	fs.StringVarP(&cfg.ConfigPath, "config", "c",
		envOr(getenv, "DEVICELINK_CONFIG", ""),
		"Path to configuration file, .json/.jsonc/.yaml (env: DEVICELINK_CONFIG)")
	fs.StringVar(&cfg.CredentialsFile, "credentials", "",
		"Session file written at login; overrides credentials.file")
	fs.StringVar(&cfg.Endpoint, "endpoint", "",
		"Stream endpoint (ws:// or wss://); overrides stream.endpoint")
	fs.StringVar(&cfg.LogLevel, "log-level",
		envOr(getenv, "DEVICELINK_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: DEVICELINK_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		envOr(getenv, "DEVICELINK_LOG_FORMAT", "json"),
		"Log format: json, text (env: DEVICELINK_LOG_FORMAT)")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", 0,
		"Metrics and health port; overrides metrics.port")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		envDuration(getenv, "DEVICELINK_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: DEVICELINK_SHUTDOWN_TIMEOUT)")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "Show version information")
	fs.BoolVarP(&cfg.ShowHelp, "help", "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs.Output(), fs) }

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	for _, name := range []string{"credentials", "endpoint", "metrics-port"} {
		cfg.set[name] = fs.Changed(name)
	}
	return cfg, fs, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.set["metrics-port"] && (cfg.MetricsPort < 0 || cfg.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp(w io.Writer, fs *pflag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - live device telemetry client

Usage: %s [options]

Options:
`, appName, appName)
	_, _ = fmt.Fprint(w, fs.FlagUsages())
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run against a stream with a session file from login
  %s --config=devicelink.yaml --credentials=$HOME/.devicelink/session.json

  # Debug logging in text form
  %s -c devicelink.jsonc --log-level=debug --log-format=text

  # Validate configuration only
  %s -c devicelink.yaml --validate

Signals:
  SIGHUP           re-read the session file and resync the stream identity
  SIGINT, SIGTERM  close the stream and exit

Version: %s
Build: %s
`, appName, appName, appName, Version, BuildTime)
}

func envOr(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
