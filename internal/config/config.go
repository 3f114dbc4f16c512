package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Transport TransportConfig  `yaml:"transport"`
	Auth      AuthConfig       `yaml:"auth"`
	DB        DBConfig         `yaml:"db"`
	Log       LogConfig        `yaml:"log"`
	Remote    RemoteConfig     `yaml:"remote"`
	Queue     syncqueue.Limits `yaml:"queue"`
	Cache     CacheConfig      `yaml:"cache"`
	Sync      SyncConfig       `yaml:"sync"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TransportConfig selects how the tool server is exposed: "stdio" or "http".
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// RemoteConfig selects the remote document store. Backend is "memory" or
// "firestore"; ProjectID is required for firestore.
type RemoteConfig struct {
	Backend   string        `yaml:"backend"`
	ProjectID string        `yaml:"project_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
}

type SyncConfig struct {
	DrainInterval  time.Duration `yaml:"drain_interval"`
	IndicatorDelay time.Duration `yaml:"indicator_delay"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{Mode: "stdio"},
		DB: DBConfig{
			Path: "adherence.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Remote: RemoteConfig{
			Backend: "memory",
			Timeout: 10 * time.Second,
		},
		Queue: syncqueue.DefaultLimits(),
		Cache: CacheConfig{DuplicateWindow: 2 * time.Hour},
		Sync: SyncConfig{
			DrainInterval:  30 * time.Second,
			IndicatorDelay: 120 * time.Millisecond,
			PersistTimeout: 10 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("ADHERENCE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("ADHERENCE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("ADHERENCE_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if mode := os.Getenv("ADHERENCE_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if err := envBool("ADHERENCE_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return err
	}
	if dbPath := os.Getenv("ADHERENCE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("ADHERENCE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("ADHERENCE_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if backend := os.Getenv("ADHERENCE_REMOTE_BACKEND"); backend != "" {
		cfg.Remote.Backend = backend
	}
	if project := os.Getenv("ADHERENCE_FIRESTORE_PROJECT"); project != "" {
		cfg.Remote.ProjectID = project
	}
	if err := envDuration("ADHERENCE_REMOTE_TIMEOUT", &cfg.Remote.Timeout); err != nil {
		return err
	}
	if err := envInt("ADHERENCE_QUEUE_SOFT_LIMIT", &cfg.Queue.Soft); err != nil {
		return err
	}
	if err := envInt("ADHERENCE_QUEUE_HARD_LIMIT", &cfg.Queue.Hard); err != nil {
		return err
	}
	if err := envInt("ADHERENCE_QUEUE_MAX_ATTEMPTS", &cfg.Queue.MaxAttempts); err != nil {
		return err
	}
	if err := envDuration("ADHERENCE_DUPLICATE_WINDOW", &cfg.Cache.DuplicateWindow); err != nil {
		return err
	}
	if err := envDuration("ADHERENCE_DRAIN_INTERVAL", &cfg.Sync.DrainInterval); err != nil {
		return err
	}
	if err := envDuration("ADHERENCE_INDICATOR_DELAY", &cfg.Sync.IndicatorDelay); err != nil {
		return err
	}
	return envDuration("ADHERENCE_PERSIST_TIMEOUT", &cfg.Sync.PersistTimeout)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("transport.mode must be stdio or http, got %q", c.Transport.Mode))
	}
	switch c.Remote.Backend {
	case "memory":
	case "firestore":
		if c.Remote.ProjectID == "" {
			errs = append(errs, errors.New("remote.project_id is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.backend must be memory or firestore, got %q", c.Remote.Backend))
	}
	if c.Queue.Soft <= 0 || c.Queue.Hard <= 0 {
		errs = append(errs, errors.New("queue limits must be positive"))
	} else if c.Queue.Soft >= c.Queue.Hard {
		errs = append(errs, fmt.Errorf("queue.soft_limit (%d) must be below queue.hard_limit (%d)", c.Queue.Soft, c.Queue.Hard))
	}
	if c.Queue.MaxAttempts <= 0 {
		errs = append(errs, errors.New("queue.max_attempts must be positive"))
	}
	if c.Cache.DuplicateWindow <= 0 {
		errs = append(errs, errors.New("cache.duplicate_window must be positive"))
	}
	if c.Sync.PersistTimeout <= 0 {
		errs = append(errs, errors.New("sync.persist_timeout must be positive"))
	}
	if c.Sync.DrainInterval < 0 || c.Sync.IndicatorDelay < 0 {
		errs = append(errs, errors.New("sync durations must not be negative"))
	}
	if c.Transport.Mode == "http" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = b
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
