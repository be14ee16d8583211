package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variables that override config keys,
// e.g. CALENDAR_MCP_SERVER_PORT.
const EnvPrefix = "CALENDAR_MCP"

// ServerConfig holds settings for the HTTP tool endpoint.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	// WatchConfig reloads the account list when the config file changes.
	WatchConfig bool `mapstructure:"watch_config" yaml:"watch_config"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`

	// File enables rotating file output in addition to stderr when set.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// StoreConfig holds settings for the local state database.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps state in-process.
	Path string `mapstructure:"path" yaml:"path"`
}

// FanoutConfig bounds multi-account requests.
type FanoutConfig struct {
	// AccountTimeout caps each per-account call.
	AccountTimeout time.Duration `mapstructure:"account_timeout" yaml:"account_timeout"`

	// MaxConcurrency limits in-flight per-account calls. Zero or less
	// means one goroutine per account.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// SearchMaxPages bounds how many result pages a date-restricted search
	// reads from providers that filter dates client-side.
	SearchMaxPages int `mapstructure:"search_max_pages" yaml:"search_max_pages"`

	// RequestsPerSecond and RequestBurst throttle calls to each cloud
	// provider API, shared by all accounts of that provider. Zero or less
	// disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	RequestBurst      int     `mapstructure:"request_burst" yaml:"request_burst"`
}

// CredentialsConfig selects where cached tokens are kept.
type CredentialsConfig struct {
	// Backend forces a keyring backend ("keychain", "secret-service",
	// "wincred", "pass", "file"). Empty tries them in that order.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// FileDir is used by the encrypted file backend.
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// ProbeConfig controls the background credential prober.
type ProbeConfig struct {
	// Interval between probes. Zero disables probing.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Accounts    []Account         `mapstructure:"accounts" yaml:"accounts"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Fanout      FanoutConfig      `mapstructure:"fanout" yaml:"fanout"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Probe       ProbeConfig       `mapstructure:"probe" yaml:"probe"`
}

// configDir returns ~/.config/calendar-mcp, or "." when the home directory
// cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "calendar-mcp")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/calendar-mcp/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultStorePath returns the default state database path.
func DefaultStorePath() string {
	return filepath.Join(configDir(), "state.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Accounts: []Account{},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8765,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     7,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Fanout: FanoutConfig{
			AccountTimeout:    30 * time.Second,
			SearchMaxPages:    10,
			RequestsPerSecond: 20,
			RequestBurst:      40,
		},
		Credentials: CredentialsConfig{
			FileDir: filepath.Join(configDir(), "keyring"),
		},
		Probe: ProbeConfig{
			Interval: 15 * time.Minute,
		},
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	def := defaultAppConfig()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.watch_config", false)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", def.Log.MaxSize)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age", def.Log.MaxAge)
	v.SetDefault("log.compress", false)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("fanout.account_timeout", def.Fanout.AccountTimeout)
	v.SetDefault("fanout.max_concurrency", 0)
	v.SetDefault("fanout.search_max_pages", def.Fanout.SearchMaxPages)
	v.SetDefault("fanout.requests_per_second", def.Fanout.RequestsPerSecond)
	v.SetDefault("fanout.request_burst", def.Fanout.RequestBurst)
	v.SetDefault("credentials.backend", "")
	v.SetDefault("credentials.file_dir", def.Credentials.FileDir)
	v.SetDefault("probe.interval", def.Probe.Interval)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first so CALENDAR_MCP_*
// variables can live there. If the config file does not exist, the default
// configuration (with no accounts) is returned.
func LoadConfig(path string) (*AppConfig, error) {
	loadEnvFile()

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Accounts {
		acct := &cfg.Accounts[i]
		acct.ID = strings.TrimSpace(acct.ID)
		if acct.DisplayName == "" {
			acct.DisplayName = acct.ID
		}
		if !acct.Enabled {
			// Viper unmarshals missing bools as false; treat unset as true.
			key := fmt.Sprintf("accounts.%d.enabled", i)
			if !v.IsSet(key) {
				acct.Enabled = true
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks account identity constraints: every account needs an ID
// and a provider, and IDs must be unique ignoring case.
func (c *AppConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, acct := range c.Accounts {
		if acct.ID == "" {
			return fmt.Errorf("account #%d: missing id", i)
		}
		if strings.TrimSpace(acct.Provider) == "" {
			return fmt.Errorf("account %q: missing provider", acct.ID)
		}
		key := strings.ToLower(acct.ID)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("account %q: duplicate id", acct.ID)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("accounts", cfg.Accounts)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)
	v.Set("fanout", cfg.Fanout)
	v.Set("credentials", cfg.Credentials)
	v.Set("probe", cfg.Probe)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// WatchConfig calls onChange with a freshly loaded configuration every time
// the file at path is written. A load error is passed through so the caller
// can keep its previous state.
func WatchConfig(path string, onChange func(*AppConfig, error)) {
	v := newViper(path)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(LoadConfig(path))
	})
	v.WatchConfig()
}

// loadEnvFile loads .env from the working directory when present.
// Existing environment variables win.
func loadEnvFile() {
	_ = godotenv.Load(".env")
}
