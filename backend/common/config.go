package common

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPort        = 53579
	DefaultPassword    = "quickshare"
	DefaultMaxFileSize = 4096
)

type NetworkConfig struct {
	Port           int    `ini:"port" validate:"min=1,max=65535"`
	DefaultNetwork string `ini:"default_network"`
	EnableMDNS     bool   `ini:"enable_mdns"`
}

type TransmitConfig struct {
	Password string `ini:"password"`
	// MaxFileSize is the per-request upload ceiling in MiB.
	MaxFileSize int64  `ini:"max_file_size" validate:"gt=0"`
	SavePath    string `ini:"save_path" validate:"required"`
}

type ShareConfig struct {
	EnforceFileOwnership bool `ini:"enforce_file_ownership"`
}

// Config is an immutable snapshot once handed out by ConfigStore.
type Config struct {
	Network  NetworkConfig  `ini:"network"`
	Transmit TransmitConfig `ini:"transmit"`
	Share    ShareConfig    `ini:"share"`
}

func DefaultConfig(dataDir string) Config {
	return Config{
		Network: NetworkConfig{
			Port: DefaultPort,
		},
		Transmit: TransmitConfig{
			Password:    DefaultPassword,
			MaxFileSize: DefaultMaxFileSize,
			SavePath:    filepath.Join(dataDir, "uploads"),
		},
	}
}

// MaxUploadBytes converts MaxFileSize to bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.Transmit.MaxFileSize * 1024 * 1024
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ConfigStore publishes the current Config. Readers never block; Apply
// validates and persists before swapping the snapshot.
type ConfigStore struct {
	path    string
	mu      sync.Mutex
	current atomic.Pointer[Config]
}

// LoadConfigStore reads path, creating it with defaults on first run.
func LoadConfigStore(path string, dataDir string) (*ConfigStore, error) {
	defaults := DefaultConfig(dataDir)
	if err := ensureConfigFile(path, defaults); err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(path, defaults)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	s := &ConfigStore{path: path}
	s.current.Store(&cfg)
	return s, nil
}

// NewMemoryConfigStore returns a store that never touches disk.
func NewMemoryConfigStore(cfg Config) *ConfigStore {
	s := &ConfigStore{}
	s.current.Store(&cfg)
	return s
}

func (s *ConfigStore) Snapshot() Config {
	return *s.current.Load()
}

func (s *ConfigStore) Path() string {
	return s.path
}

// Apply replaces the configuration. The old snapshot stays live when
// validation or persistence fails.
func (s *ConfigStore) Apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := saveConfigFile(s.path, cfg); err != nil {
			return err
		}
	}
	s.current.Store(&cfg)
	return nil
}
