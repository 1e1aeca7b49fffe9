package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SCHEMAOCR_OPENAI_MODEL.
const EnvPrefix = "SCHEMAOCR"

// Manager handles loading, saving and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	path      string
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a config manager for the JSON file at path and loads
// it. A missing file yields the defaults. A file that cannot be parsed is
// logged and also yields the defaults.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &Manager{
		v:         viper.New(),
		path:      path,
		callbacks: make([]func(*Config), 0),
		logger:    logger,
	}
	cm.initViper()

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

// initViper sets up viper with defaults, env overrides and the config file.
func (cm *Manager) initViper() {
	for _, e := range DefaultEntries() {
		cm.v.SetDefault(e.Key, e.Value)
	}
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.AutomaticEnv()
	cm.v.SetConfigFile(cm.path)
	cm.v.SetConfigType("json")
}

// read loads the file into viper. Missing and unreadable files are not
// errors.
func (cm *Manager) read() {
	if cm.path == "" {
		return
	}
	err := cm.v.ReadInConfig()
	if err == nil || isNotFound(err) {
		return
	}
	cm.logger.Warn("config file unreadable, using defaults", "path", cm.path, "error", err)
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// fileConfig returns the defaults overlaid with the file only. Environment
// overrides are left out so they never end up persisted.
func (cm *Manager) fileConfig() (*Config, error) {
	fv := viper.New()
	for _, e := range DefaultEntries() {
		fv.SetDefault(e.Key, e.Value)
	}
	fv.SetConfigFile(cm.path)
	fv.SetConfigType("json")
	if err := fv.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("config file %s is unreadable: %w", cm.path, err)
	}
	var cfg Config
	if err := fv.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	cm.read()
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Path returns the config file path.
func (cm *Manager) Path() string {
	return cm.path
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Set parses raw for key and writes it to the file. The file keeps only
// what it held before plus key; environment overrides still apply on top of
// it. Callbacks see the new effective configuration.
func (cm *Manager) Set(key, raw string) error {
	value, err := ParseValue(key, raw)
	if err != nil {
		return err
	}
	if cm.path == "" {
		return errors.New("no config file path")
	}

	cm.mu.Lock()
	onDisk, err := cm.fileConfig()
	if err != nil {
		cm.mu.Unlock()
		return err
	}
	if err := onDisk.set(key, value); err != nil {
		cm.mu.Unlock()
		return err
	}
	if err := writeFile(cm.path, onDisk); err != nil {
		cm.mu.Unlock()
		return err
	}
	next, err := cm.load()
	if err != nil {
		cm.mu.Unlock()
		return err
	}
	cm.config = next
	callbacks := cm.snapshotCallbacks()
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(next)
	}
	return nil
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// Reload re-reads the config file and notifies callbacks.
func (cm *Manager) Reload() error {
	cfg, err := cm.load()
	if err != nil {
		return err
	}
	cm.mu.Lock()
	cm.config = cfg
	callbacks := cm.snapshotCallbacks()
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		if err := cm.Reload(); err != nil {
			cm.logger.Warn("config reload failed", "path", e.Name, "error", err)
		}
	})
	cm.v.WatchConfig()
}

func (cm *Manager) snapshotCallbacks() []func(*Config) {
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	return callbacks
}

// writeFile writes cfg as JSON with 4-space indentation.
func writeFile(path string, cfg *Config) error {
	if path == "" {
		return errors.New("no config file path")
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	return writeFile(path, DefaultConfig())
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ResolveAPIKey returns the API key with ${ENV_VAR} references expanded,
// falling back to OPENAI_API_KEY when none is configured.
func (c *Config) ResolveAPIKey() string {
	if key := ResolveEnvVars(c.APIKey); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if c.APIKey != "" && !envRef.MatchString(c.APIKey) {
		out.APIKey = redact(c.APIKey)
	}
	return &out
}

func redact(key string) string {
	if len(key) <= 8 {
		return "********"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
