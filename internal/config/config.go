// Package config loads service configuration from an optional TOML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// Seed variable prefixes. Any suffix pairs a user id with its token,
// e.g. INSTAGRAM_USER_ID_2 and INSTAGRAM_ACCESS_TOKEN_2.
const (
	UserIDPrefix      = "INSTAGRAM_USER_ID"
	AccessTokenPrefix = "INSTAGRAM_ACCESS_TOKEN"
)

// Defaults.
const (
	DefaultDatabaseURL = "data/ingestor.db"
	DefaultListenAddr  = ":8080"
	DefaultLogMaxSize  = 10
)

// Config is the resolved service configuration.
type Config struct {
	// Path is the TOML file the configuration was read from, if any.
	Path string

	DatabaseURL string
	ListenAddr  string

	Graph GraphConfig
	Batch BatchConfig
	Log   LogConfig

	// ScheduleInterval re-runs the batch periodically. Zero disables it.
	ScheduleInterval time.Duration

	// Accounts are seeded before each run. Environment pairs follow file
	// entries; duplicates are dropped.
	Accounts []domain.SeedAccount
}

// GraphConfig configures the Graph API client.
type GraphConfig struct {
	BaseURL    string
	RefreshURL string
	Timeout    time.Duration
	PageSize   int
}

// BatchConfig configures batch runs.
type BatchConfig struct {
	MaxRequests  int
	AccountDelay time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	File      string
	MaxSizeMB int
	Verbose   bool
}

// fileConfig mirrors the TOML layout. Durations are strings like "2s".
type fileConfig struct {
	DatabaseURL      string `toml:"database_url"`
	ListenAddr       string `toml:"listen_addr"`
	ScheduleInterval string `toml:"schedule_interval"`

	Graph struct {
		BaseURL    string `toml:"base_url"`
		RefreshURL string `toml:"refresh_url"`
		Timeout    string `toml:"timeout"`
		PageSize   int    `toml:"page_size"`
	} `toml:"graph"`

	Batch struct {
		MaxRequests  int    `toml:"max_requests"`
		AccountDelay string `toml:"account_delay"`
	} `toml:"batch"`

	Log struct {
		File      string `toml:"file"`
		MaxSizeMB int    `toml:"max_size_mb"`
		Verbose   bool   `toml:"verbose"`
	} `toml:"log"`

	Accounts []struct {
		UserID      string `toml:"user_id"`
		AccessToken string `toml:"access_token"`
	} `toml:"accounts"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DatabaseURL: DefaultDatabaseURL,
		ListenAddr:  DefaultListenAddr,
		Graph: GraphConfig{
			Timeout:  30 * time.Second,
			PageSize: 50,
		},
		Batch: BatchConfig{
			MaxRequests:  domain.MaxRequestsPerRun,
			AccountDelay: 2 * time.Second,
		},
		Log: LogConfig{
			MaxSizeMB: DefaultLogMaxSize,
		},
	}
}

// Load resolves configuration. path names an optional TOML file; a missing
// file is only an error when path was given explicitly. A .env file in the
// working directory is loaded without overriding the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SeedAccounts re-reads seed pairs from the file and environment. It lets
// long-running processes pick up edits without a restart.
func (c *Config) SeedAccounts() ([]domain.SeedAccount, error) {
	fresh := &Config{}
	if c.Path != "" {
		if err := fresh.readFile(c.Path); err != nil {
			return nil, err
		}
	}
	return dedupeSeeds(append(fresh.Accounts, envSeeds(os.Environ())...)), nil
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if c.Batch.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("MAX_REQUESTS_PER_RUN must be positive, got %d", c.Batch.MaxRequests))
	}
	if c.Graph.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.Graph.PageSize))
	}
	if c.Batch.AccountDelay < 0 {
		errs = append(errs, errors.New("ACCOUNT_DELAY must not be negative"))
	}
	if c.ScheduleInterval < 0 {
		errs = append(errs, errors.New("SCHEDULE_INTERVAL must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	c.Path = path
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.Graph.BaseURL, fc.Graph.BaseURL)
	setString(&c.Graph.RefreshURL, fc.Graph.RefreshURL)
	setString(&c.Log.File, fc.Log.File)
	setInt(&c.Graph.PageSize, fc.Graph.PageSize)
	setInt(&c.Batch.MaxRequests, fc.Batch.MaxRequests)
	setInt(&c.Log.MaxSizeMB, fc.Log.MaxSizeMB)
	c.Log.Verbose = c.Log.Verbose || fc.Log.Verbose

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"schedule_interval", fc.ScheduleInterval, &c.ScheduleInterval},
		{"graph.timeout", fc.Graph.Timeout, &c.Graph.Timeout},
		{"batch.account_delay", fc.Batch.AccountDelay, &c.Batch.AccountDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", d.key, err)
		}
		*d.dst = v
	}

	for _, a := range fc.Accounts {
		c.Accounts = append(c.Accounts, domain.SeedAccount{
			ExternalUserID: strings.TrimSpace(a.UserID),
			AccessToken:    strings.TrimSpace(a.AccessToken),
		})
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	envString(&c.DatabaseURL, "DATABASE_URL")
	envString(&c.ListenAddr, "HTTP_LISTEN_ADDR")
	envString(&c.Graph.BaseURL, "GRAPH_BASE_URL")
	envString(&c.Graph.RefreshURL, "GRAPH_REFRESH_URL")
	envString(&c.Log.File, "LOG_FILE")
	errs = append(errs,
		envDuration(&c.Graph.Timeout, "GRAPH_TIMEOUT"),
		envDuration(&c.Batch.AccountDelay, "ACCOUNT_DELAY"),
		envDuration(&c.ScheduleInterval, "SCHEDULE_INTERVAL"),
		envInt(&c.Graph.PageSize, "PAGE_SIZE"),
		envInt(&c.Batch.MaxRequests, "MAX_REQUESTS_PER_RUN"),
		envInt(&c.Log.MaxSizeMB, "LOG_MAX_SIZE_MB"),
		envBool(&c.Log.Verbose, "VERBOSE"),
	)

	c.Accounts = dedupeSeeds(append(c.Accounts, envSeeds(os.Environ())...))
	return errors.Join(errs...)
}

// envSeeds collects INSTAGRAM_USER_ID{suffix} / INSTAGRAM_ACCESS_TOKEN{suffix}
// pairs from environ, ordered by suffix. Pairs missing either half are kept
// so the seeder can report them.
func envSeeds(environ []string) []domain.SeedAccount {
	values := make(map[string]string, len(environ))
	var suffixes []string
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		values[key] = value
		if suffix, found := strings.CutPrefix(key, UserIDPrefix); found {
			suffixes = append(suffixes, suffix)
		}
	}
	sort.Strings(suffixes)

	seeds := make([]domain.SeedAccount, 0, len(suffixes))
	for _, suffix := range suffixes {
		seeds = append(seeds, domain.SeedAccount{
			ExternalUserID: strings.TrimSpace(values[UserIDPrefix+suffix]),
			AccessToken:    strings.TrimSpace(values[AccessTokenPrefix+suffix]),
		})
	}
	return seeds
}

// dedupeSeeds drops later entries for a user id already listed.
func dedupeSeeds(seeds []domain.SeedAccount) []domain.SeedAccount {
	seen := make(map[string]bool, len(seeds))
	out := make([]domain.SeedAccount, 0, len(seeds))
	for _, s := range seeds {
		if s.ExternalUserID != "" {
			if seen[s.ExternalUserID] {
				continue
			}
			seen[s.ExternalUserID] = true
		}
		out = append(out, s)
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
