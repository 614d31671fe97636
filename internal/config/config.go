package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// CallbackURL is the absolute URL the provider posts callbacks to
	// (resURL / vpc_ReturnURL on outbound requests).
	CallbackURL string `yaml:"callback_url"`
	// ProcessURL is the generic "payment processing" page payers are
	// redirected to regardless of validation outcome.
	ProcessURL string `yaml:"process_url"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// AcquirerConfig mirrors one provider integration instance. Secrets stay in
// the config file; they are loaded into the acquirers table at startup when
// seeding is enabled.
type AcquirerConfig struct {
	ID              string `yaml:"id"`
	MerchantAccount string `yaml:"merchant_account"`
	AccessCode      string `yaml:"access_code"`
	SecretHash      string `yaml:"secret_hash"`
	Scheme          string `yaml:"scheme"` // sha256|sha1|cc; empty = infer from secret shape
	Environment     string `yaml:"environment"`
	Locale          string `yaml:"locale"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Acquirers  []AcquirerConfig `yaml:"acquirers"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ProcessURL == "" {
		cfg.Server.ProcessURL = "/payment/process"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}

	if cfg.Server.CallbackURL == "" {
		return nil, fmt.Errorf("config: server.callback_url is required")
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}
