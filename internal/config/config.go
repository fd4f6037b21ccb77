// Package config loads investrun settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/investrun/internal/data"
	"github.com/sawpanic/investrun/internal/infrastructure/db"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/providers/yahoo"
)

// Config is the complete application configuration
type Config struct {
	Study      StudySection      `yaml:"study"`
	MonteCarlo MonteCarloSection `yaml:"montecarlo"`
	Provider   ProviderSection   `yaml:"provider"`
	Cache      CacheSection      `yaml:"cache"`
	Database   db.Config         `yaml:"database"`
	Server     ServerSection     `yaml:"server"`
	Output     OutputSection     `yaml:"output"`
}

// StudySection describes the analysis inputs
type StudySection struct {
	YearlyInvestment float64  `yaml:"yearly_investment"`
	EndYear          int      `yaml:"end_year"`
	HorizonStartYear int      `yaml:"horizon_start_year"`
	Symbols          []string `yaml:"symbols"`
	HighBeta         []string `yaml:"high_beta"`
	Benchmark        string   `yaml:"benchmark"`
}

// MonteCarloSection holds simulation defaults
type MonteCarloSection struct {
	Iterations  int   `yaml:"iterations"`
	Frequencies []int `yaml:"frequencies"`
	Seed        int64 `yaml:"seed"`
	Workers     int   `yaml:"workers"`
}

// ProviderSection configures the market data client and its breaker
type ProviderSection struct {
	Yahoo   yahoo.Config   `yaml:"yahoo"`
	Breaker circuit.Config `yaml:"breaker"`
}

// CacheSection configures the price cache. An empty RedisAddr selects the
// in-process cache.
type CacheSection struct {
	Enabled   bool          `yaml:"enabled"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// ServerSection configures the HTTP API
type ServerSection struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// OutputSection configures where results are written
type OutputSection struct {
	Dir     string `yaml:"dir"`
	DataDir string `yaml:"data_dir"`
	Charts  bool   `yaml:"charts"`
}

// Default returns the configuration of the published study
func Default() *Config {
	return &Config{
		Study: StudySection{
			YearlyInvestment: 12000,
			EndYear:          2024,
			HorizonStartYear: 2014,
			Symbols:          []string{"^GSPC", "TQQQ", "HIBL", "BTC-USD"},
			HighBeta:         []string{"TQQQ", "BTC-USD"},
			Benchmark:        "^GSPC",
		},
		MonteCarlo: MonteCarloSection{
			Iterations:  1000,
			Frequencies: []int{2, 4, 12},
		},
		Provider: ProviderSection{
			Yahoo:   yahoo.DefaultConfig(),
			Breaker: circuit.DefaultConfig(),
		},
		Cache: CacheSection{
			Enabled: true,
			TTL:     12 * time.Hour,
		},
		Database: db.DefaultConfig(),
		Server: ServerSection{
			Host:           "127.0.0.1",
			Port:           8090,
			RequestTimeout: 2 * time.Minute,
		},
		Output: OutputSection{
			Dir:    "out",
			Charts: true,
		},
	}
}

// Load reads configPath over the defaults, applies environment overrides and
// validates the result. A missing or empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}

			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies INVESTRUN_*, PG_* and REDIS_ADDR variables
func applyEnvOverrides(config *Config) error {
	var err error
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", name, perr)
				return
			}
			*dst = n
		}
	}
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("INVESTRUN_YEARLY_INVESTMENT"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return fmt.Errorf("INVESTRUN_YEARLY_INVESTMENT: %w", perr)
		}
		config.Study.YearlyInvestment = f
	}
	setInt("INVESTRUN_END_YEAR", &config.Study.EndYear)
	setInt("INVESTRUN_ITERATIONS", &config.MonteCarlo.Iterations)
	setInt("INVESTRUN_WORKERS", &config.MonteCarlo.Workers)
	setInt("INVESTRUN_SERVER_PORT", &config.Server.Port)
	setString("INVESTRUN_OUTPUT_DIR", &config.Output.Dir)
	setString("INVESTRUN_DATA_DIR", &config.Output.DataDir)
	setString("INVESTRUN_YAHOO_URL", &config.Provider.Yahoo.BaseURL)

	if v := os.Getenv("INVESTRUN_SEED"); v != "" {
		seed, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("INVESTRUN_SEED: %w", perr)
		}
		config.MonteCarlo.Seed = seed
	}

	setString("REDIS_ADDR", &config.Cache.RedisAddr)
	setString("PG_DSN", &config.Database.DSN)

	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if val, perr := strconv.ParseBool(enabled); perr == nil {
			config.Database.Enabled = val
		}
	}

	if queryTimeout := os.Getenv("PG_QUERY_TIMEOUT"); queryTimeout != "" {
		if val, perr := time.ParseDuration(queryTimeout); perr == nil {
			config.Database.QueryTimeout = val
		}
	}

	return err
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Study.YearlyInvestment <= 0 {
		return fmt.Errorf("study.yearly_investment must be positive")
	}

	if c.Study.EndYear < data.FirstLoadYear {
		return fmt.Errorf("study.end_year must be at least %d", data.FirstLoadYear)
	}

	if c.Study.HorizonStartYear > c.Study.EndYear {
		return fmt.Errorf("study.horizon_start_year cannot exceed end_year")
	}

	if c.MonteCarlo.Iterations <= 0 {
		return fmt.Errorf("montecarlo.iterations must be positive")
	}

	for _, f := range c.MonteCarlo.Frequencies {
		cfg := montecarlo.Config{Iterations: 1, TimesPerYear: f, YearlyInvestment: 1}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("montecarlo.frequencies: %w", err)
		}
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot exceed max_open_conns")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	return nil
}

// Save writes the configuration as YAML
func Save(config *Config, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}
