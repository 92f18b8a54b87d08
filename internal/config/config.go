// Package config assembles the runtime configuration from defaults, the
// YAML config file, the environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"twittermoo/internal/feed"
	"twittermoo/internal/filter"
	"twittermoo/internal/model"
)

// Upstream providers.
const (
	ProviderAPI = "api"
	ProviderRSS = "rss"
)

// MinEvery is the shortest polling interval the providers tolerate.
const MinEvery = 300 * time.Second

// Config holds the application configuration.
type Config struct {
	Host       string
	Port       int
	DBFile     string
	ConfigFile string
	KeyFile    string
	Secret     string

	Verbose  bool
	LogLevel string
	Once     bool

	Wait   time.Duration
	Period time.Duration
	Every  time.Duration

	Oversize  string
	MaxLength int

	Email    string
	Password string

	Provider    string
	APIURL      string
	TimelineURL string

	TelegramToken  string
	TelegramChatID int64

	Friends []string
	Filters []model.Filter
}

type fileConfig struct {
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Options  fileOptions `yaml:"options"`
}

// fileOptions mirrors the flag names; nil means "not set in the file".
type fileOptions struct {
	Host           *string        `yaml:"host"`
	Port           *int           `yaml:"port"`
	DBFile         *string        `yaml:"dbfile"`
	KeyFile        *string        `yaml:"key"`
	Verbose        *bool          `yaml:"verbose"`
	Once           *bool          `yaml:"once"`
	Wait           *int           `yaml:"wait"`
	Period         *int           `yaml:"period"`
	Every          *int           `yaml:"every"`
	Oversize       *string        `yaml:"oversize"`
	MaxLength      *int           `yaml:"max_length"`
	LogLevel       *string        `yaml:"log_level"`
	Provider       *string        `yaml:"provider"`
	APIURL         *string        `yaml:"api_url"`
	TimelineURL    *string        `yaml:"timeline_url"`
	TelegramChatID *int64         `yaml:"telegram_chat_id"`
	Friends        []string       `yaml:"friends"`
	Filters        []model.Filter `yaml:"filters"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Host:       "localhost",
		DBFile:     filepath.Join(home, ".twittermoo.db"),
		ConfigFile: filepath.Join(home, ".twittermoo"),
		LogLevel:   "warn",
		Wait:       20 * time.Second,
		Period:     3600 * time.Second,
		Every:      300 * time.Second,
		Oversize:   "abort",
		MaxLength:  250,
		Provider:   ProviderAPI,
		APIURL:     feed.DefaultAPIURL,
	}
}

// Load builds the configuration from command line arguments (without the
// program name). Precedence, lowest first: defaults, config file options,
// environment, flags given on the command line.
func Load(args []string, usage io.Writer) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("twittermoo", pflag.ContinueOnError)
	fs.SetOutput(usage)
	verbose := fs.BoolP("verbose", "v", false, "run verbosely")
	once := fs.BoolP("once", "o", false, "run once and quit")
	wait := fs.IntP("wait", "w", int(cfg.Wait/time.Second), "delay between sending messages (seconds)")
	period := fs.Int("period", int(cfg.Period/time.Second), "time period to check for new messages on first run (seconds)")
	every := fs.IntP("every", "e", int(cfg.Every/time.Second), "time period to sleep between checks (seconds, 300+)")
	port := fs.IntP("port", "p", 0, "relay port (unset: print to stdout)")
	host := fs.StringP("host", "H", cfg.Host, "relay host")
	dbFile := fs.StringP("dbfile", "d", cfg.DBFile, "fingerprint database")
	configFile := fs.StringP("config", "c", cfg.ConfigFile, "config file")
	keyFile := fs.StringP("key", "k", "", "shared key file")
	oversize := fs.String("oversize", cfg.Oversize, "what to do with messages over the length limit: abort or truncate")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ConfigFile = *configFile
	if err := cfg.mergeFile(cfg.ConfigFile, fs.Changed("config")); err != nil {
		return nil, err
	}

	cfg.mergeEnv()

	if fs.Changed("verbose") {
		cfg.Verbose = *verbose
	}
	if fs.Changed("once") {
		cfg.Once = *once
	}
	if fs.Changed("wait") {
		cfg.Wait = seconds(*wait)
	}
	if fs.Changed("period") {
		cfg.Period = seconds(*period)
	}
	if fs.Changed("every") {
		cfg.Every = seconds(*every)
	}
	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("host") {
		cfg.Host = *host
	}
	if fs.Changed("dbfile") {
		cfg.DBFile = *dbFile
	}
	if fs.Changed("key") {
		cfg.KeyFile = *keyFile
	}
	if fs.Changed("oversize") {
		cfg.Oversize = *oversize
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.KeyFile != "" {
		secret, err := LoadSecret(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Secret = secret
	}

	return cfg, nil
}

// mergeFile applies the YAML config file. A missing file is only an error
// when it was asked for explicitly.
func (c *Config) mergeFile(path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.Email = fc.Email
	c.Password = fc.Password

	o := fc.Options
	setString(&c.Host, o.Host)
	setInt(&c.Port, o.Port)
	setString(&c.DBFile, o.DBFile)
	setString(&c.KeyFile, o.KeyFile)
	setBool(&c.Verbose, o.Verbose)
	setBool(&c.Once, o.Once)
	setSeconds(&c.Wait, o.Wait)
	setSeconds(&c.Period, o.Period)
	setSeconds(&c.Every, o.Every)
	setString(&c.Oversize, o.Oversize)
	setInt(&c.MaxLength, o.MaxLength)
	setString(&c.LogLevel, o.LogLevel)
	setString(&c.Provider, o.Provider)
	setString(&c.APIURL, o.APIURL)
	setString(&c.TimelineURL, o.TimelineURL)
	if o.TelegramChatID != nil {
		c.TelegramChatID = *o.TelegramChatID
	}
	if o.Friends != nil {
		c.Friends = o.Friends
	}
	if o.Filters != nil {
		c.Filters = o.Filters
	}
	return nil
}

func (c *Config) mergeEnv() {
	if v := os.Getenv("TWITTERMOO_EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv("TWITTERMOO_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("TWITTERMOO_TELEGRAM_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if c.Wait < 0 || c.Period < 0 || c.Every < 0 {
		return fmt.Errorf("wait, period and every must not be negative")
	}
	if c.MaxLength < 1 {
		return fmt.Errorf("max_length must be positive, got %d", c.MaxLength)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Oversize {
	case "abort", "truncate":
	default:
		return fmt.Errorf("invalid oversize policy %q, use abort or truncate", c.Oversize)
	}
	switch c.Provider {
	case ProviderAPI:
		if c.APIURL == "" {
			return fmt.Errorf("api_url is required for the api provider")
		}
	case ProviderRSS:
		if c.TimelineURL == "" {
			return fmt.Errorf("timeline_url is required for the rss provider")
		}
	default:
		return fmt.Errorf("unknown provider %q, use %s or %s", c.Provider, ProviderAPI, ProviderRSS)
	}
	for i, f := range c.Filters {
		if f.Scope == "" {
			c.Filters[i].Scope = model.ScopeAll
		}
		if err := filter.Validate(f); err != nil {
			return fmt.Errorf("filter %d: %w", i+1, err)
		}
	}
	return nil
}

// Sink names the delivery destination the configuration selects.
func (c *Config) Sink() string {
	switch {
	case c.Port > 0:
		return "tcp"
	case c.TelegramToken != "" && c.TelegramChatID != 0:
		return "telegram"
	default:
		return "stdout"
	}
}

// LoadSecret reads the shared secret from path, dropping trailing whitespace.
func LoadSecret(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return "", fmt.Errorf("error getting secret key from %s: %w", path, err)
	}
	return strings.TrimRight(string(data), " \t\r\n"), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setSeconds(dst *time.Duration, v *int) {
	if v != nil {
		*dst = seconds(*v)
	}
}
