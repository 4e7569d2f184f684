package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"achieveit/internal/keyring"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix     = "ACHIEVEIT"
	envConfigPath = "ACHIEVEIT_CONFIG_PATH"
	fileName      = "achieveit"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Google  GoogleConfig  `mapstructure:"google" yaml:"google"`
	Suggest SuggestConfig `mapstructure:"suggest" yaml:"suggest"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	// PublicURL is the externally reachable base used for OAuth redirects.
	PublicURL       string        `mapstructure:"public_url" yaml:"public_url"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RateLimit       int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	// Driver is one of "memory", "postgres" or "disk".
	Driver         string        `mapstructure:"driver" yaml:"driver"`
	URL            string        `mapstructure:"url" yaml:"url"`
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int32         `mapstructure:"max_connections" yaml:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections" yaml:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

type LoggingConfig struct {
	Development bool   `mapstructure:"development" yaml:"development"`
	File        string `mapstructure:"file" yaml:"file"`
}

type GoogleConfig struct {
	// CredentialsFile is a client secrets JSON downloaded from the cloud console.
	CredentialsFile string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	RevokeURL       string        `mapstructure:"revoke_url" yaml:"revoke_url"`
	FitnessEndpoint string        `mapstructure:"fitness_endpoint" yaml:"fitness_endpoint"`
	ConsentTimeout  time.Duration `mapstructure:"consent_timeout" yaml:"consent_timeout"`
}

type SuggestConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Model   string        `mapstructure:"model" yaml:"model"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SessionConfig struct {
	Secret            string        `mapstructure:"secret" yaml:"secret"`
	CookieName        string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	SecureCookie      bool          `mapstructure:"secure_cookie" yaml:"secure_cookie"`
	TTL               time.Duration `mapstructure:"ttl" yaml:"ttl"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	RecentLoginWindow time.Duration `mapstructure:"recent_login_window" yaml:"recent_login_window"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.url", "")
	v.SetDefault("store.path", "~/.achieveit/data")
	v.SetDefault("store.max_connections", 10)
	v.SetDefault("store.min_connections", 2)
	v.SetDefault("store.idle_timeout", 5*time.Minute)

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")

	v.SetDefault("google.credentials_file", "~/.achieveit/credentials.json")
	v.SetDefault("google.revoke_url", "https://oauth2.googleapis.com/revoke")
	v.SetDefault("google.fitness_endpoint", "")
	v.SetDefault("google.consent_timeout", 2*time.Minute)

	v.SetDefault("suggest.api_key", "")
	v.SetDefault("suggest.model", "gemini-2.0-flash")
	v.SetDefault("suggest.base_url", "")
	v.SetDefault("suggest.timeout", 30*time.Second)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "achieveit_session")
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.idle_timeout", 2*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.recent_login_window", 5*time.Minute)
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads achieveit.yml (or the file at path) and ACHIEVEIT_* env vars.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		if override := os.Getenv(envConfigPath); override != "" {
			v.AddConfigPath(override)
		}
		v.AddConfigPath("./")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	cfg.resolveSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Store.Path, &c.Logging.File, &c.Google.CredentialsFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// resolveSecrets fills empty secrets from the OS keyring. Lookup failures are
// ignored; the caller decides whether a missing secret is fatal.
func (c *Config) resolveSecrets() {
	lookup := func(dst *string, name string) {
		if *dst != "" {
			return
		}
		if val, err := keyring.Get(name); err == nil {
			*dst = val
		}
	}
	lookup(&c.Session.Secret, keyring.SessionSecret)
	lookup(&c.Suggest.APIKey, keyring.GeminiAPIKey)
	if c.Store.Driver == "postgres" {
		lookup(&c.Store.URL, keyring.DatabaseURL)
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "disk":
	case "postgres":
		if c.Store.URL == "" {
			return errors.New("config: store.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "disk" && c.Store.Path == "" {
		return errors.New("config: store.path is required for the disk driver")
	}
	if c.Server.Port == "" {
		return errors.New("config: server.port is required")
	}
	if c.Session.TTL <= 0 || c.Session.IdleTimeout <= 0 {
		return errors.New("config: session.ttl and session.idle_timeout must be positive")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Write renders cfg as YAML at path. Existing files are not overwritten.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
