// Package config loads shopcheck settings from the environment.
//
// Every key is read from SHOPCHECK_<KEY>. An optional .env file is loaded
// first; variables already set in the environment win over it. Command-line
// flags override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "SHOPCHECK_"

// Defaults.
const (
	DefaultBaseURL    = "https://www.saucedemo.com/"
	DefaultDriver     = "playwright"
	DefaultBrowser    = "chromium"
	DefaultTimeout    = 30 * time.Second
	DefaultAssertWait = 5 * time.Second
	DefaultParallel   = 1
)

// Drivers and browsers accepted by Validate.
var (
	Drivers  = []string{"playwright", "cdp"}
	Browsers = []string{"chromium", "firefox", "webkit"}
)

// Config holds the settings of a run.
type Config struct {
	BaseURL  string
	Driver   string // playwright | cdp
	Browser  string // playwright only
	Headless bool

	// RemoteURL attaches the cdp driver to a running browser.
	RemoteURL string

	// Timeout bounds every single action, read and precondition step.
	Timeout time.Duration

	// AssertWait is how long assertions retry before failing. Zero checks
	// once.
	AssertWait time.Duration

	Parallel int

	// DB is the run history database. Empty disables history.
	DB string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Driver:     DefaultDriver,
		Browser:    DefaultBrowser,
		Headless:   true,
		Timeout:    DefaultTimeout,
		AssertWait: DefaultAssertWait,
		Parallel:   DefaultParallel,
	}
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load overlays the SHOPCHECK_ variables found through getenv on Default.
// It only rejects values that do not parse; call Validate once every
// override is applied.
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()
	get := func(key string) string { return getenv(EnvPrefix + key) }

	if v := get("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := get("DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := get("BROWSER"); v != "" {
		cfg.Browser = v
	}
	if v := get("REMOTE_URL"); v != "" {
		cfg.RemoteURL = v
	}
	if v := get("DB"); v != "" {
		cfg.DB = v
	}

	var err error
	if v := get("HEADLESS"); v != "" {
		if cfg.Headless, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err)
		}
	}
	if v := get("TIMEOUT"); v != "" {
		if cfg.Timeout, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
	}
	if v := get("ASSERT_WAIT"); v != "" {
		if cfg.AssertWait, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("%sASSERT_WAIT: %w", EnvPrefix, err)
		}
	}
	if v := get("PARALLEL"); v != "" {
		if cfg.Parallel, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("%sPARALLEL: %w", EnvPrefix, err)
		}
	}

	return cfg, nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if _, err := c.ParseBaseURL(); err != nil {
		return err
	}
	if !contains(Drivers, c.Driver) {
		return fmt.Errorf("unknown driver %q: must be one of %v", c.Driver, Drivers)
	}
	if !contains(Browsers, c.Browser) {
		return fmt.Errorf("unknown browser %q: must be one of %v", c.Browser, Browsers)
	}
	if c.Driver == "cdp" && c.Browser != DefaultBrowser {
		return fmt.Errorf("driver cdp only supports %s, got %q", DefaultBrowser, c.Browser)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.AssertWait < 0 {
		return fmt.Errorf("assert wait must not be negative, got %s", c.AssertWait)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	return nil
}

// ParseBaseURL returns BaseURL as an absolute URL.
func (c Config) ParseBaseURL() (*url.URL, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be absolute", c.BaseURL)
	}
	return u, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
