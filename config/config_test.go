package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/devicelink/devicestate"
	"github.com/c360/devicelink/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// newTestLoader isolates the loader from the process environment
func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(key string) string { return env[key] }
	return l
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Second, cfg.Stream.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.Stream.Reconnect.Delay(1))
	assert.Equal(t, 5*time.Second, cfg.Stream.Reconnect.Delay(7))
	assert.Equal(t, 50, cfg.History.Size)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "devicelink", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.True(t, cfg.Health.Enabled)

	// No endpoint default
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestLoader_LoadJSON(t *testing.T) {
	path := writeFile(t, "devicelink.json", `{
		"stream": {
			"endpoint": "wss://stream.example.com/ws",
			"connect_timeout": "3s",
			"reconnect": {"initial_delay": "2s", "max_delay": "2s"}
		},
		"credentials": {"file": "/var/lib/devicelink/session.json"},
		"devices": [
			{"id": "pump-1", "name": "Water Pump Station", "type": "pump", "can_control": true,
			 "readings": {"pressure": 110, "flow": 30}}
		],
		"nats": {"enabled": true, "urls": ["nats://a:4222", "nats://b:4222"], "reconnect_wait": "1m"}
	}`)

	loader := newTestLoader(nil)
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://stream.example.com/ws", cfg.Stream.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Stream.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Stream.Reconnect.Delay(1))
	// Untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Stream.HandshakeTimeout)
	assert.Equal(t, 1.0, cfg.Stream.Reconnect.Multiplier)

	assert.Equal(t, "/var/lib/devicelink/session.json", cfg.Credentials.File)
	require.Len(t, cfg.Devices, 1)
	assert.True(t, cfg.Devices[0].CanControl)

	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, time.Minute, cfg.NATS.ReconnectWait)
	assert.Equal(t, "devicelink", cfg.NATS.SubjectPrefix)
}

func TestLoader_LoadJSONC(t *testing.T) {
	path := writeFile(t, "devicelink.jsonc", `{
		// production stream
		"stream": {
			"endpoint": "wss://stream.example.com/ws", /* token appended at dial */
		},
		"history": {"size": 20},
	}`)

	cfg, err := newTestLoader(nil).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://stream.example.com/ws", cfg.Stream.Endpoint)
	assert.Equal(t, 20, cfg.History.Size)
}

func TestLoader_LoadYAML(t *testing.T) {
	path := writeFile(t, "devicelink.yaml", `
stream:
  endpoint: wss://stream.example.com/ws
  write_timeout: 2s
devices:
  - id: sensor-1
    name: Pressure Sensor Beta
    type: sensor
    readings:
      temperature: 32.1
metrics:
  port: 9191
`)

	loader := newTestLoader(nil)
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Stream.WriteTimeout)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, 32.1, cfg.Devices[0].Readings["temperature"])
}

func TestLoader_Layers(t *testing.T) {
	base := writeFile(t, "base.yaml", `
stream:
  endpoint: wss://base.example.com/ws
history:
  size: 10
`)
	override := writeFile(t, "override.json", `{"history": {"size": 30}}`)

	loader := newTestLoader(nil)
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://base.example.com/ws", cfg.Stream.Endpoint)
	assert.Equal(t, 30, cfg.History.Size)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "devicelink.json", `{"stream": {"endpoint": "wss://file.example.com/ws"}}`)

	cfg, err := newTestLoader(map[string]string{
		"DEVICELINK_STREAM_ENDPOINT":  "wss://env.example.com/ws",
		"DEVICELINK_CREDENTIALS_FILE": "/tmp/session.json",
		"DEVICELINK_NATS_ENABLED":     "true",
		"DEVICELINK_NATS_URLS":        "nats://x:4222,nats://y:4222",
		"DEVICELINK_METRICS_PORT":     "9300",
		"DEVICELINK_HISTORY_SIZE":     "5",
	}).LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://env.example.com/ws", cfg.Stream.Endpoint)
	assert.Equal(t, "/tmp/session.json", cfg.Credentials.File)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, []string{"nats://x:4222", "nats://y:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 9300, cfg.Metrics.Port)
	assert.Equal(t, 5, cfg.History.Size)
}

func TestLoader_EnvOverrideErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad bool", map[string]string{"DEVICELINK_NATS_ENABLED": "sometimes"}},
		{"bad port", map[string]string{"DEVICELINK_METRICS_PORT": "ninety"}},
		{"null byte", map[string]string{"DEVICELINK_STREAM_ENDPOINT": "wss://x\x00"}},
		{"too long", map[string]string{"DEVICELINK_NATS_TOKEN": strings.Repeat("a", maxEnvVarLen+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(tt.env).Load()
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestLoader_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad json", "bad.json", `{"stream": `},
		{"bad yaml", "bad.yaml", "stream: [unclosed"},
		{"bad duration", "bad.json", `{"stream": {"connect_timeout": "soon"}}`},
		{"unsupported extension", "devicelink.toml", `stream = {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := newTestLoader(nil).LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
		})
	}

	_, err := newTestLoader(nil).LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Stream.Endpoint = "wss://stream.example.com/ws"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"http endpoint", func(c *Config) { c.Stream.Endpoint = "https://stream.example.com" }, true},
		{"negative history", func(c *Config) { c.History.Size = -1 }, true},
		{"nats without urls", func(c *Config) { c.NATS.Enabled = true; c.NATS.URLs = nil }, true},
		{"nats bad prefix", func(c *Config) { c.NATS.Enabled = true; c.NATS.SubjectPrefix = "dev link" }, true},
		{"nats disabled ignores prefix", func(c *Config) { c.NATS.SubjectPrefix = "" }, false},
		{"nats bad tls", func(c *Config) { c.NATS.Enabled = true; c.NATS.TLS.CertFile = "client.pem" }, true},
		{"stream bad tls", func(c *Config) { c.Stream.TLS.MinVersion = "1.0" }, true},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }, true},
		{"bad device type", func(c *Config) { c.Devices = []DeviceConfig{{ID: "b", Type: "boiler"}} }, true},
		{"field not in schema", func(c *Config) {
			c.Devices = []DeviceConfig{{ID: "s", Type: "sensor", Readings: map[string]float64{"flow": 1}}}
		}, true},
		{"duplicate device", func(c *Config) {
			c.Devices = []DeviceConfig{{ID: "p", Type: "pump"}, {ID: "p", Type: "valve"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsFatal(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_CloneAndString(t *testing.T) {
	cfg := Default()
	cfg.NATS.Token = "s3cret"
	cfg.Devices = []DeviceConfig{{ID: "pump-1", Type: "pump", Readings: map[string]float64{"pressure": 1}}}

	clone := cfg.Clone()
	clone.Devices[0].Readings["pressure"] = 2
	assert.Equal(t, 1.0, cfg.Devices[0].Readings["pressure"])

	s := cfg.String()
	assert.NotContains(t, s, "s3cret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "s3cret", cfg.NATS.Token)
}

func TestLoadInventory(t *testing.T) {
	path := writeFile(t, "inventory.yaml", `
devices:
  - id: pump-1
    name: Water Pump Station
    type: pump
    can_control: true
    readings: {pressure: 110, flow: 30}
  - id: valve-1
    name: Tank Valve Gamma
    type: valve
    location: Basement
`)

	devices, err := LoadInventory(path)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, devicestate.TypePump, devices[0].Type)
	assert.True(t, devices[0].CanControl)
	assert.Equal(t, 110.0, devices[0].Readings[devicestate.FieldPressure])
	assert.Equal(t, "Basement", devices[1].Location)

	bad := writeFile(t, "bad.yaml", `
devices:
  - id: s
    type: sensor
    readings: {flow: 3}
`)
	_, err = LoadInventory(bad)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestConfig_DeviceInventory(t *testing.T) {
	inv := writeFile(t, "inventory.yml", `
devices:
  - id: valve-1
    type: valve
`)

	cfg := Default()
	cfg.Devices = []DeviceConfig{{ID: "pump-1", Type: "pump", CanControl: true}}
	cfg.Inventory = inv

	devices, err := cfg.DeviceInventory()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "pump-1", devices[0].ID)
	assert.Equal(t, "valve-1", devices[1].ID)
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": ["{", "]"]}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": 1}]`)))
	assert.Error(t, validateJSONDepth([]byte(strings.Repeat("[", maxJSONDepth+1))))
	assert.Error(t, validateJSONDepth([]byte(`{"a": 1`)))
}
