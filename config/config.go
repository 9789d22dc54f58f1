// Package config loads provider endpoints and hedge settings for the
// hedgerpc binary.
//
// Sources are applied in order, later ones winning:
//
//  1. Built-in defaults
//  2. A .env file in the working directory, if present
//  3. A YAML file, if a path is given
//  4. Environment variables
//
// Providers come from HELIUS_RPC_URL, TRITON_RPC_URL and QUICKNODE_RPC_URL
// (ids helius, triton and quicknode, in that order), then from
// HEDGE_PROVIDERS as a comma-separated list of id=url pairs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

const (
	DefaultServiceName = "hedgerpc"
	DefaultStatsAddr   = ":2112"
	DefaultLogLevel    = "info"
	DefaultPreset      = "default"
	DefaultCommitment  = "confirmed"
)

// ErrNoProviders is returned when no provider endpoint is configured.
var ErrNoProviders = errors.New("config: no RPC providers configured")

// wellKnown are the providers read from their own environment variables.
var wellKnown = []struct {
	id  hedge.ProviderID
	env string
}{
	{id: "helius", env: "HELIUS_RPC_URL"},
	{id: "triton", env: "TRITON_RPC_URL"},
	{id: "quicknode", env: "QUICKNODE_RPC_URL"},
}

// Provider is one configured RPC endpoint.
type Provider struct {
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint"`
}

// Hedge holds the hedge knobs. Zero values keep the preset's setting.
type Hedge struct {
	Preset           string        `yaml:"preset"`
	InitialProviders int           `yaml:"initial_providers"`
	HedgeAfter       time.Duration `yaml:"hedge_after"`
	MaxProviders     int           `yaml:"max_providers"`
	MinSlot          uint64        `yaml:"min_slot"`
	Timeout          time.Duration `yaml:"timeout"`
	WidenStep        int           `yaml:"widen_step"`

	// Adaptive derives the hedge delay from observed P95 latency.
	Adaptive bool `yaml:"adaptive"`
}

// Breaker enables per-provider circuit breakers.
type Breaker struct {
	Enabled bool `yaml:"enabled"`

	// RedisAddr shares breaker state through Redis when set.
	RedisAddr string `yaml:"redis_addr"`
}

// RateLimit caps calls per provider. Zero RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	Wait  bool    `yaml:"wait"`
}

// Config is the complete binary configuration.
type Config struct {
	ServiceName string     `yaml:"service_name"`
	LogLevel    string     `yaml:"log_level"`
	StatsAddr   string     `yaml:"stats_addr"`
	Commitment  string     `yaml:"commitment"`
	Providers   []Provider `yaml:"providers"`
	Hedge       Hedge      `yaml:"hedge"`
	Breaker     Breaker    `yaml:"breaker"`
	RateLimit   RateLimit  `yaml:"rate_limit"`
}

// Default returns the configuration before any source is applied.
func Default() Config {
	return Config{
		ServiceName: DefaultServiceName,
		LogLevel:    DefaultLogLevel,
		StatsAddr:   DefaultStatsAddr,
		Commitment:  DefaultCommitment,
		Hedge:       Hedge{Preset: DefaultPreset},
	}
}

// Load reads the configuration. path may be empty to skip the YAML file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	for _, wk := range wellKnown {
		if url, ok := lookup(wk.env); ok && url != "" {
			c.setProvider(string(wk.id), url)
		}
	}

	if list, ok := lookup("HEDGE_PROVIDERS"); ok && list != "" {
		for _, entry := range strings.Split(list, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			id, url, found := strings.Cut(entry, "=")
			if !found || id == "" || url == "" {
				return fmt.Errorf("config: HEDGE_PROVIDERS entry %q is not id=url", entry)
			}
			c.setProvider(strings.TrimSpace(id), strings.TrimSpace(url))
		}
	}

	setString(lookup, "HEDGE_SERVICE_NAME", &c.ServiceName)
	setString(lookup, "HEDGE_LOG_LEVEL", &c.LogLevel)
	setString(lookup, "HEDGE_STATS_ADDR", &c.StatsAddr)
	setString(lookup, "HEDGE_COMMITMENT", &c.Commitment)
	setString(lookup, "HEDGE_PRESET", &c.Hedge.Preset)
	setString(lookup, "HEDGE_REDIS_ADDR", &c.Breaker.RedisAddr)

	return errors.Join(
		setInt(lookup, "HEDGE_INITIAL_PROVIDERS", &c.Hedge.InitialProviders),
		setDuration(lookup, "HEDGE_AFTER", &c.Hedge.HedgeAfter),
		setInt(lookup, "HEDGE_MAX_PROVIDERS", &c.Hedge.MaxProviders),
		setUint(lookup, "HEDGE_MIN_SLOT", &c.Hedge.MinSlot),
		setDuration(lookup, "HEDGE_TIMEOUT", &c.Hedge.Timeout),
		setInt(lookup, "HEDGE_WIDEN_STEP", &c.Hedge.WidenStep),
		setBool(lookup, "HEDGE_ADAPTIVE", &c.Hedge.Adaptive),
		setBool(lookup, "HEDGE_BREAKER", &c.Breaker.Enabled),
		setFloat(lookup, "HEDGE_RATE_LIMIT_RPS", &c.RateLimit.RPS),
		setInt(lookup, "HEDGE_RATE_LIMIT_BURST", &c.RateLimit.Burst),
		setBool(lookup, "HEDGE_RATE_LIMIT_WAIT", &c.RateLimit.Wait),
	)
}

// setProvider replaces the endpoint of an existing id or appends a new one.
func (c *Config) setProvider(id, url string) {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			c.Providers[i].Endpoint = url
			return
		}
	}
	c.Providers = append(c.Providers, Provider{ID: id, Endpoint: url})
}

// Validate checks that the configuration can build a hedged client.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("%w: set HELIUS_RPC_URL, TRITON_RPC_URL, QUICKNODE_RPC_URL or HEDGE_PROVIDERS",
			ErrNoProviders)
	}
	if _, err := hedge.NewRegistry(c.HedgeProviders()); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.HedgeConfig(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HedgeProviders returns the providers in launch order.
func (c Config) HedgeProviders() []hedge.ProviderConfig {
	out := make([]hedge.ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		out[i] = hedge.ProviderConfig{ID: hedge.ProviderID(p.ID), Endpoint: p.Endpoint}
	}
	return out
}

// HedgeConfig resolves the preset and applies explicit overrides.
func (c Config) HedgeConfig() (hedge.HedgeConfig, error) {
	n := len(c.Providers)
	hc, err := hedge.Preset(c.Hedge.Preset, n)
	if err != nil {
		return hedge.HedgeConfig{}, err
	}

	if c.Hedge.InitialProviders > 0 {
		hc.InitialProviders = c.Hedge.InitialProviders
	}
	if c.Hedge.HedgeAfter > 0 {
		hc.HedgeAfter = c.Hedge.HedgeAfter
	}
	if c.Hedge.MaxProviders > 0 {
		hc.MaxProviders = c.Hedge.MaxProviders
	}
	if c.Hedge.MinSlot > 0 {
		hc.MinFreshness = hedge.AtLeast(c.Hedge.MinSlot)
	}
	if c.Hedge.Timeout > 0 {
		hc.OverallTimeout = c.Hedge.Timeout
	}
	if c.Hedge.WidenStep > 0 {
		hc.WidenStep = c.Hedge.WidenStep
	}

	if err := hc.Validate(n); err != nil {
		return hedge.HedgeConfig{}, err
	}
	return hc, nil
}

func setString(lookup lookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func setInt(lookup lookupFunc, key string, dst *int) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setUint(lookup lookupFunc, key string, dst *uint64) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(lookup lookupFunc, key string, dst *float64) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(lookup lookupFunc, key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(lookup lookupFunc, key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}
