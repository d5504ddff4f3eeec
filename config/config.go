package config

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode"

	"github.com/c360/devicelink/connection"
	"github.com/c360/devicelink/devicestate"
	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/pkg/retry"
	"github.com/c360/devicelink/pkg/tlsutil"
)

// Config represents the complete client configuration
type Config struct {
	Stream      connection.Config `json:"stream"`
	Credentials CredentialsConfig `json:"credentials"`
	Devices     []DeviceConfig    `json:"devices,omitempty"`
	Inventory   string            `json:"inventory,omitempty"` // Optional YAML inventory file, merged after Devices
	History     HistoryConfig     `json:"history"`
	NATS        NATSConfig        `json:"nats"`
	Metrics     MetricsConfig     `json:"metrics"`
	Health      HealthConfig      `json:"health"`
}

// CredentialsConfig locates the session file written at login
type CredentialsConfig struct {
	File string `json:"file"`
}

// DeviceConfig is one inventory entry as written in config files
type DeviceConfig struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Status     string             `json:"status,omitempty"`
	Location   string             `json:"location,omitempty"`
	CanControl bool               `json:"can_control,omitempty"`
	IsOn       bool               `json:"is_on,omitempty"`
	Readings   map[string]float64 `json:"readings,omitempty"`
}

// ToDevice converts the entry into a device record
func (d DeviceConfig) ToDevice() devicestate.Device {
	return devicestate.Device{
		ID:         d.ID,
		Name:       d.Name,
		Type:       devicestate.Type(d.Type),
		Status:     devicestate.Status(d.Status),
		Location:   d.Location,
		CanControl: d.CanControl,
		IsOn:       d.IsOn,
		Readings:   d.Readings,
	}
}

// HistoryConfig sizes the telemetry history window
type HistoryConfig struct {
	Size int `json:"size"`
}

// NATSConfig defines the optional NATS bridge
type NATSConfig struct {
	Enabled       bool           `json:"enabled"`
	URLs          []string       `json:"urls,omitempty"`
	SubjectPrefix string         `json:"subject_prefix"`
	MaxReconnects int            `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration  `json:"reconnect_wait,omitempty"`
	ConnectRetry  retry.Config   `json:"connect_retry"`
	Token         string         `json:"token,omitempty"`
	TLS           tlsutil.Config `json:"tls,omitempty"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// HealthConfig toggles the /health endpoint on the metrics server
type HealthConfig struct {
	Enabled bool `json:"enabled"`
}

// Default returns the stock configuration. The stream endpoint has no default.
func Default() *Config {
	return &Config{
		Stream:  connection.DefaultConfig(),
		History: HistoryConfig{Size: 50},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			SubjectPrefix: "devicelink",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			ConnectRetry:  retry.DefaultConfig(),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Health: HealthConfig{Enabled: true},
	}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.Stream.Validate(); err != nil {
		return errors.WrapFatal(err, "Config", "Validate", "check stream")
	}

	if c.History.Size < 0 {
		return invalid("history.size must not be negative")
	}

	if c.NATS.Enabled {
		if len(c.NATS.URLs) == 0 {
			return invalid("nats.urls is required when nats is enabled")
		}
		if !isValidNATSSubjectPart(c.NATS.SubjectPrefix) {
			return invalid(fmt.Sprintf(
				"nats.subject_prefix '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
				c.NATS.SubjectPrefix))
		}
		if err := c.NATS.ConnectRetry.Validate(); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: nats.connect_retry: %v", errors.ErrInvalidConfig, err),
				"Config", "Validate", "check nats retry")
		}
		if err := c.NATS.TLS.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return invalid(fmt.Sprintf("metrics.port %d out of range", c.Metrics.Port))
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if seen[d.ID] {
			return invalid(fmt.Sprintf("devices[%d]: duplicate id %s", i, d.ID))
		}
		seen[d.ID] = true
		if err := d.ToDevice().Validate(); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: devices[%d]: %v", errors.ErrInvalidConfig, i, err),
				"Config", "Validate", "check devices")
		}
	}

	return nil
}

// DeviceInventory returns the inline devices followed by the inventory file's
func (c *Config) DeviceInventory() ([]devicestate.Device, error) {
	devices := make([]devicestate.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		devices = append(devices, d.ToDevice())
	}
	if c.Inventory == "" {
		return devices, nil
	}

	fromFile, err := LoadInventory(c.Inventory)
	if err != nil {
		return nil, err
	}
	return append(devices, fromFile...), nil
}

// String returns a JSON rendering with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Token != "" {
		masked.NATS.Token = "[REDACTED]"
	}
	data, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

func invalid(msg string) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "Config", "Validate", "check fields")
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}
