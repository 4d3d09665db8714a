package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel    = "gemini-2.0-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultRender   = "dark"
)

// Config represents chat runtime configuration. It deliberately has no field
// for the API key: credentials never reach durable storage.
type Config struct {
	Model    string `yaml:"model,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`
	Render   string `yaml:"render,omitempty"`
}

// Store provides access to persisted configurations.
type Store interface {
	Default() (Config, bool)
	Load(name string) (Config, bool)
	Save(name string, cfg Config) error
	SaveDefault(cfg Config) error
	Path() string
}

type fileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Config
}

// Load opens or creates a config store at the provided path.
func Load(path string) (Store, error) {
	if path == "" {
		return nil, nil
	}

	store := &fileStore{path: path, data: make(map[string]Config)}

	bytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(bytes, &store.data); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if store.data == nil {
		store.data = make(map[string]Config)
	}

	return store, nil
}

// ResolveProfile merges the default config with a named profile.
func ResolveProfile(store Store, name string) (Config, error) {
	merged := Config{}
	trimmed := strings.TrimSpace(name)

	if store != nil {
		if base, ok := store.Default(); ok {
			merged = Merge(merged, base)
		}
		if trimmed != "" && !strings.EqualFold(trimmed, "default") {
			cfg, ok := store.Load(trimmed)
			if !ok {
				return Config{}, fmt.Errorf("unknown profile %q", trimmed)
			}
			merged = Merge(merged, cfg)
		}
	} else if trimmed != "" {
		return Config{}, fmt.Errorf("unknown profile %q", trimmed)
	}

	return Normalize(merged), nil
}

// Merge overlays non-zero fields from overlay onto base.
func Merge(base, overlay Config) Config {
	result := base
	if overlay.Model != "" {
		result.Model = overlay.Model
	}
	if overlay.Endpoint != "" {
		result.Endpoint = overlay.Endpoint
	}
	if overlay.LogFile != "" {
		result.LogFile = overlay.LogFile
	}
	if overlay.Render != "" {
		result.Render = overlay.Render
	}
	return result
}

// Normalize fills in default values and trims stray whitespace.
func Normalize(cfg Config) Config {
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)
	cfg.Render = strings.ToLower(strings.TrimSpace(cfg.Render))
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Render == "" {
		cfg.Render = DefaultRender
	}
	return cfg
}

// Summary returns human-friendly summary lines for display.
func Summary(cfg Config) []string {
	lines := []string{
		"  model: " + cfg.Model,
		"  endpoint: " + cfg.Endpoint,
		"  render: " + cfg.Render,
	}
	if cfg.LogFile != "" {
		lines = append(lines, "  log file: "+cfg.LogFile)
	} else {
		lines = append(lines, "  log file: disabled")
	}
	return lines
}

// DefaultPath returns the default config file path in the user's home directory.
func DefaultPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".gemchat.yaml")
}

// DefaultLogFile returns the default log location under the user cache directory.
func DefaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gemchat", "gemchat.log")
}

func (f *fileStore) Path() string {
	return f.path
}

func (f *fileStore) Save(name string, cfg Config) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("profile name cannot be empty")
	}
	if strings.EqualFold(trimmed, "default") {
		return errors.New("profile name \"default\" is reserved")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		f.data = make(map[string]Config)
	}
	f.data[trimmed] = cfg

	return f.persist()
}

func (f *fileStore) Default() (Config, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.data["default"]
	return cfg, ok
}

func (f *fileStore) Load(name string) (Config, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Config{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.data[trimmed]
	return cfg, ok
}

func (f *fileStore) SaveDefault(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		f.data = make(map[string]Config)
	}
	f.data["default"] = cfg

	return f.persist()
}

func (f *fileStore) persist() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	bytes, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("persist config: %w", err)
	}

	return nil
}
