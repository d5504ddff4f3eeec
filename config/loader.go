package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/c360/devicelink/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DEVICELINK"

// durationPaths lists the keys holding duration strings
var durationPaths = [][]string{
	{"stream", "connect_timeout"},
	{"stream", "handshake_timeout"},
	{"stream", "write_timeout"},
	{"stream", "reconnect", "initial_delay"},
	{"stream", "reconnect", "max_delay"},
	{"nats", "reconnect_wait"},
	{"nats", "connect_retry", "initial_delay"},
	{"nats", "connect_retry", "max_delay"},
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:    []string{},
		envPrefix: EnvPrefix,
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, path, err),
				"Loader", "Load", "merge layer")
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads one layer into a generic map, choosing the decoder by extension
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", errors.ErrInvalidConfig, err)
		}
	case ".jsonc":
		data = jsonc.ToJSON(data)
		fallthrough
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON structure: %v", errors.ErrInvalidConfig, err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: json: %v", errors.ErrInvalidConfig, err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) error {
	for _, path := range durationPaths {
		parent := data
		for _, key := range path[:len(path)-1] {
			next, ok := parent[key].(map[string]any)
			if !ok {
				parent = nil
				break
			}
			parent = next
		}
		if parent == nil {
			continue
		}

		leaf := path[len(path)-1]
		s, ok := parent[leaf].(string)
		if !ok {
			continue
		}
		d, err := parseDurationWithDays(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, strings.Join(path, "."), err)
		}
		parent[leaf] = d.Nanoseconds()
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	get := func(suffix string) (string, string, error) {
		key := l.envPrefix + "_" + suffix
		val := l.getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return "", key, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
				"Loader", "applyEnvOverrides", "read environment")
		}
		return val, key, nil
	}

	strs := []struct {
		suffix string
		target *string
	}{
		{"STREAM_ENDPOINT", &cfg.Stream.Endpoint},
		{"CREDENTIALS_FILE", &cfg.Credentials.File},
		{"INVENTORY", &cfg.Inventory},
		{"NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"METRICS_PATH", &cfg.Metrics.Path},
	}
	for _, s := range strs {
		val, _, err := get(s.suffix)
		if err != nil {
			return err
		}
		if val != "" {
			*s.target = val
		}
	}

	val, _, err := get("NATS_URLS")
	if err != nil {
		return err
	}
	if val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}

	bools := []struct {
		suffix string
		target *bool
	}{
		{"NATS_ENABLED", &cfg.NATS.Enabled},
		{"METRICS_ENABLED", &cfg.Metrics.Enabled},
		{"HEALTH_ENABLED", &cfg.Health.Enabled},
	}
	for _, b := range bools {
		val, key, err := get(b.suffix)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		parsed, perr := strconv.ParseBool(val)
		if perr != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, key, perr),
				"Loader", "applyEnvOverrides", "parse bool")
		}
		*b.target = parsed
	}

	val, key, err := get("METRICS_PORT")
	if err != nil {
		return err
	}
	if val != "" {
		port, perr := strconv.Atoi(val)
		if perr != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, key, perr),
				"Loader", "applyEnvOverrides", "parse port")
		}
		cfg.Metrics.Port = port
	}

	val, key, err = get("HISTORY_SIZE")
	if err != nil {
		return err
	}
	if val != "" {
		size, perr := strconv.Atoi(val)
		if perr != nil {
			return errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, key, perr),
				"Loader", "applyEnvOverrides", "parse history size")
		}
		cfg.History.Size = size
	}

	return nil
}
