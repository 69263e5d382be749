package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/timecalc"
)

// Config is the root configuration for tsheet, stored in ~/.tsheet/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Records RecordsConfig `mapstructure:"records"`
}

// ServerConfig points the client at the backend.
type ServerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig locates the persisted session.
type AuthConfig struct {
	SessionFile string `mapstructure:"session_file"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
	// File receives logs while the terminal UI owns the screen. Empty
	// discards them.
	File string `mapstructure:"file"`
}

// RecordsConfig holds record view defaults.
type RecordsConfig struct {
	// DefaultRange is the window shown when no dates are given.
	DefaultRange string `mapstructure:"default_range"`
	// PreferredHours is the daily target used when the signed-in user has
	// none configured.
	PreferredHours float64 `mapstructure:"preferred_hours"`
}

const (
	// EnvPrefix prefixes environment overrides, e.g. TSHEET_SERVER_BASE_URL.
	EnvPrefix = "TSHEET"

	DefaultBaseURL      = "http://localhost:5000/api"
	DefaultTimeout      = 10 * time.Second
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultRecordsRange = "last7"
)

// BaseDir returns the root data directory (~/.tsheet).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tsheet"), nil
}

// DefaultPath returns ~/.tsheet/config.json.
func DefaultPath() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.json"), nil
}

// Default returns a Config pre-filled with the built-in defaults.
func Default() *Config {
	session := ""
	if base, err := BaseDir(); err == nil {
		session = filepath.Join(base, "auth", "session.json")
	}
	return &Config{
		Server:  ServerConfig{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout},
		Auth:    AuthConfig{SessionFile: session},
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Records: RecordsConfig{DefaultRange: DefaultRecordsRange, PreferredHours: model.DefaultPreferredHours},
	}
}

// SetDefaults registers every key with v so that environment overrides are
// honoured by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("auth.session_file", d.Auth.SessionFile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("records.default_range", d.Records.DefaultRange)
	v.SetDefault("records.preferred_hours", d.Records.PreferredHours)
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// tsheet configuration – ~/.tsheet/config.json
//
// Every setting can also be given as an environment variable, e.g.
// TSHEET_SERVER_BASE_URL, or in a .env file in the working directory.
{
  "server": {
    // Root of the time-tracking REST API.
    "base_url": "http://localhost:5000/api",
    // Per-request timeout, e.g. "10s" or "1m".
    "timeout": "10s"
  },
  "auth": {
    // Where the login token is kept. Defaults to ~/.tsheet/auth/session.json.
    // "session_file": "/path/to/session.json"
  },
  "log": {
    // debug, info, warn or error
    "level": "info",
    // console or json
    "format": "console",
    // Log file used while the interactive table is open. Empty discards logs.
    "file": ""
  },
  "records": {
    // Window shown by default: last7, last14, last30, last90 or week.
    "default_range": "last7",
    // Daily target used when your account has none.
    "preferred_hours": 8
  }
}
`

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads the config at path (DefaultPath when empty), creating it with
// annotated defaults on first run. A .env file in the working directory and
// TSHEET_* environment variables override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Default(), err
		}
		path = p
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := v.ReadConfig(bytes.NewReader(stripLineComments(data))); err != nil {
			return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.base_url: %q is not an http(s) URL", c.Server.BaseURL)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout: must be positive, got %s", c.Server.Timeout)
	}
	if c.Auth.SessionFile == "" {
		return fmt.Errorf("auth.session_file: must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format: %q is not console or json", c.Log.Format)
	}
	if _, err := timecalc.Preset(c.Records.DefaultRange, time.Now()); err != nil {
		return fmt.Errorf("records.default_range: %w", err)
	}
	if c.Records.PreferredHours < 0 || c.Records.PreferredHours >= model.MaxPreferredHours {
		return fmt.Errorf("records.preferred_hours: must be in [0, %d), got %v", model.MaxPreferredHours, c.Records.PreferredHours)
	}
	return nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
