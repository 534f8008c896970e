package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Network  NetworkConfig  `toml:"network"`
	Secrets  SecretsConfig  `toml:"secrets"`
	Database DatabaseConfig `toml:"database"`
	Notify   NotifyConfig   `toml:"notify"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig describes the OpenList server and how user supplied addresses are rewritten.
type ServerConfig struct {
	URL          string        `toml:"url"`
	DefaultURL   string        `toml:"default_url"`
	ForceHTTP    bool          `toml:"force_http"`
	HostRewrites []HostRewrite `toml:"host_rewrites"`
}

// HostRewrite substitutes the host From with To during URL normalization.
type HostRewrite struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// NetworkConfig contains request pipeline and connectivity probe settings.
type NetworkConfig struct {
	MaxRetries        int      `toml:"max_retries"`
	RetryBaseDelay    Duration `toml:"retry_base_delay"`
	ConnectTimeout    Duration `toml:"connect_timeout"`
	ReadTimeout       Duration `toml:"read_timeout"`
	WriteTimeout      Duration `toml:"write_timeout"`
	CallTimeout       Duration `toml:"call_timeout"`
	PingInterval      Duration `toml:"ping_interval"`
	KeepAlive         Duration `toml:"keep_alive"`
	MaxIdleConns      int      `toml:"max_idle_conns"`
	RateLimit         float64  `toml:"rate_limit"`
	RateBurst         int      `toml:"rate_burst"`
	UserAgent         string   `toml:"user_agent"`
	ConnectivityCheck bool     `toml:"connectivity_check"`
	ProbeAddress      string   `toml:"probe_address"`
	ProbeInterval     Duration `toml:"probe_interval"`
}

// SecretsConfig locates the encrypted credential store and its key material.
type SecretsConfig struct {
	Path          string `toml:"path"`
	KeyFile       string `toml:"key_file"`
	PassphraseEnv string `toml:"passphrase_env"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// NotifyConfig paces the error notification queue.
type NotifyConfig struct {
	MinInterval  Duration `toml:"min_interval"`
	SameInterval Duration `toml:"same_interval"`
}

// LogConfig sets the log level and optional log file (used by the TUI).
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Duration is a [time.Duration] decoded from strings such as "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.expandPaths()

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.expandPaths()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// HostRewriteMap flattens the configured rewrite rules.
func (c *Config) HostRewriteMap() map[string]string {
	rules := make(map[string]string, len(c.Server.HostRewrites))
	for _, r := range c.Server.HostRewrites {
		if r.From == "" || r.To == "" {
			continue
		}
		rules[r.From] = r.To
	}
	return rules
}

func (c *Config) expandPaths() {
	c.Secrets.Path = ExpandHome(c.Secrets.Path)
	c.Secrets.KeyFile = ExpandHome(c.Secrets.KeyFile)
	c.Database.Path = ExpandHome(c.Database.Path)
	c.Log.File = ExpandHome(c.Log.File)
}

// ConfigDir returns the per-user directory holding olx state (~/.olx).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".olx"
	}
	return filepath.Join(home, ".olx")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
