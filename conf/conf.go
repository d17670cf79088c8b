package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	EnvConfigPath   = "CONTEST_CLIENT_CONFIG"
	EnvAPIURL       = "CONTEST_API_URL"
	EnvWSURL        = "CONTEST_WS_URL"
	EnvToken        = "CONTEST_TOKEN"
	EnvLogLevel     = "CONTEST_LOG_LEVEL"
	EnvLogFormat    = "CONTEST_LOG_FORMAT"
	EnvJudgeTimeout = "CONTEST_JUDGE_TIMEOUT"
	EnvLocale       = "CONTEST_LOCALE"
	EnvMockAddr     = "MOCK_ADDR"
	EnvJWTKey       = "JWT_KEY"
)

type Config struct {
	APIURL string `toml:"api_url"`
	// WSURL defaults to APIURL
	WSURL  string `toml:"ws_url"`
	Token  string `toml:"token"`
	Locale string `toml:"locale"`

	ClassID string `toml:"class_id"`

	JudgeTimeout Duration `toml:"judge_timeout"`
	CaseCacheTTL Duration `toml:"case_cache_ttl"`

	Log  LogConfig  `toml:"log"`
	Mock MockConfig `toml:"mock"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MockConfig configures the development backend
type MockConfig struct {
	Addr       string   `toml:"addr"`
	JWTKey     string   `toml:"jwt_key"`
	SeedFile   string   `toml:"seed_file"`
	StageDelay Duration `toml:"stage_delay"`
	// submissions per user per window
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow Duration `toml:"rate_limit_window"`
}

// Duration is a time.Duration written as "90s" in toml
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Default() *Config {
	return &Config{
		APIURL:       "http://localhost:8080",
		Locale:       "en",
		JudgeTimeout: Duration{2 * time.Minute},
		CaseCacheTTL: Duration{5 * time.Minute},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mock: MockConfig{
			Addr:            ":8080",
			JWTKey:          "dev-secret",
			StageDelay:      Duration{300 * time.Millisecond},
			RateLimit:       5,
			RateLimitWindow: Duration{time.Minute},
		},
	}
}

// DefaultPath returns $CONTEST_CLIENT_CONFIG or ~/.config/contest-client/config.toml
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "contest-client", "config.toml"), nil
}

// Load reads the toml file at path over the defaults, then applies .env
// and environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		EnvAPIURL:    &c.APIURL,
		EnvWSURL:     &c.WSURL,
		EnvToken:     &c.Token,
		EnvLogLevel:  &c.Log.Level,
		EnvLogFormat: &c.Log.Format,
		EnvLocale:    &c.Locale,
		EnvMockAddr:  &c.Mock.Addr,
		EnvJWTKey:    &c.Mock.JWTKey,
	}
	for env, dst := range strs {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv(EnvJudgeTimeout); v != "" {
		if err := c.JudgeTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvJudgeTimeout, err)
		}
	}
	return nil
}

// LiveURL is the base url of live judging channels
func (c *Config) LiveURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return c.APIURL
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{"api_url": c.APIURL, "ws_url": c.WSURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url, got %q", name, raw)
		}
	}
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.JudgeTimeout.Duration < 0 {
		return fmt.Errorf("judge_timeout must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch c.Locale {
	case "", "en", "lv":
	default:
		return fmt.Errorf("locale must be en or lv, got %q", c.Locale)
	}
	if c.Mock.RateLimit < 0 {
		return fmt.Errorf("mock.rate_limit must not be negative")
	}
	if c.Mock.StageDelay.Duration < 0 {
		return fmt.Errorf("mock.stage_delay must not be negative")
	}
	if c.Mock.RateLimitWindow.Duration < 0 {
		return fmt.Errorf("mock.rate_limit_window must not be negative")
	}
	return nil
}

// SaveToken stores token in the config file at path and leaves every other
// key as the file has it. Defaults and environment overrides are not written.
func SaveToken(path string, token string) error {
	raw := map[string]any{}
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	raw["token"] = token

	data, err = toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
