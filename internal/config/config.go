package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultOllamaURL  = "http://localhost:11434"
	DefaultTimeout    = 300 * time.Second
	DefaultDBPath     = "chat_history.db"
	DefaultSessionKey = "default"
	DefaultLogDir     = "logs"
	DefaultStyle      = "auto"
	DefaultWidth      = 100
)

// Environment variables consulted by ApplyEnvOverrides
const (
	EnvConfig    = "LOCALCHAT_CONFIG"
	EnvOllamaURL = "LOCALCHAT_OLLAMA_URL"
	EnvTimeout   = "LOCALCHAT_TIMEOUT"
	EnvModel     = "LOCALCHAT_MODEL"
	EnvDBPath    = "LOCALCHAT_DB"
	EnvLogDir    = "LOCALCHAT_LOG_DIR"
)

// Config holds application configuration
type Config struct {
	OllamaURL string   `toml:"ollama_url"`
	Timeout   Duration `toml:"timeout"` // per chat call, "300s" or 300
	Model     string   `toml:"model"`   // empty selects the first catalog entry

	DBPath     string `toml:"db_path"`
	SessionKey string `toml:"session_key"`

	LogDir string `toml:"log_dir"`
	Debug  bool   `toml:"debug"`

	RenderStyle string `toml:"render_style"` // glamour style name or "auto"
	Width       int    `toml:"width"`
}

// Default returns the configuration used when nothing else is set
func Default() Config {
	return Config{
		OllamaURL:   DefaultOllamaURL,
		Timeout:     Duration(DefaultTimeout),
		DBPath:      DefaultDBPath,
		SessionKey:  DefaultSessionKey,
		LogDir:      DefaultLogDir,
		RenderStyle: DefaultStyle,
		Width:       DefaultWidth,
	}
}

// Load builds a Config from defaults, the optional TOML file at path and the
// environment. An empty path falls back to $LOCALCHAT_CONFIG; a missing file
// at the fallback location is not an error. The result is not validated so
// callers can layer further overrides before calling Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := LoadTOML(&cfg, path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

// LoadTOML decodes the file at path over cfg
func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides copies LOCALCHAT_* variables into c
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvOllamaURL); v != "" {
		c.OllamaURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = Duration(d)
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		c.LogDir = v
	}
	return nil
}

// Duration is a timeout that reads the same way from every source: a TOML
// integer or a bare number string is seconds, anything else is a Go duration.
type Duration time.Duration

// UnmarshalTOML implements toml.Unmarshaler
func (d *Duration) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case int64:
		*d = Duration(time.Duration(v) * time.Second)
	case string:
		parsed, err := ParseTimeout(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid timeout %v: want seconds or a duration string", v)
	}
	return nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseTimeout accepts a Go duration ("90s", "5m") or a plain number of seconds
func ParseTimeout(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", v)
	}
	return d, nil
}

// SetDefaults fills zero values that have a sensible default
func (c *Config) SetDefaults() {
	def := Default()
	if c.SessionKey == "" {
		c.SessionKey = def.SessionKey
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.LogDir == "" {
		c.LogDir = def.LogDir
	}
	if c.RenderStyle == "" {
		c.RenderStyle = def.RenderStyle
	}
	if c.Width <= 0 {
		c.Width = def.Width
	}
	c.OllamaURL = strings.TrimRight(c.OllamaURL, "/")
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.OllamaURL == "" {
		return errors.New("ollama_url must not be empty")
	}
	u, err := url.Parse(c.OllamaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ollama_url %q is not an http(s) URL", c.OllamaURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
