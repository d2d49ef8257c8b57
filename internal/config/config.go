package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nefron/examcheck/internal/model"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "EXAMCHECK"

var (
	ErrNoExams        = errors.New("--exams is required")
	ErrNoDSN          = errors.New("--dsn, EXAMCHECK_DSN or DATABASE_URL is required")
	ErrBadSeparator   = errors.New("csv separator must be a single character")
	ErrBadRetention   = errors.New("override retention must be at least one month")
	ErrBadWorkerCount = errors.New("workers must not be negative")
)

// Config holds all runtime configuration for an examcheck command.
type Config struct {
	DSN       string `mapstructure:"dsn"`
	LogFormat string `mapstructure:"log_format"` // "text" or "json"
	LogLevel  string `mapstructure:"log_level"`

	Profile              string `mapstructure:"profile"`
	Period               string `mapstructure:"period"` // YYYY-MM or MM/YYYY; empty is the current month
	ExamsPath            string `mapstructure:"exams"`
	MovementsPath        string `mapstructure:"movements"`
	HospitalizationsPath string `mapstructure:"hospitalizations"`
	CSVSeparator         string `mapstructure:"csv_separator"`
	Workers              int    `mapstructure:"workers"`

	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	Status string `mapstructure:"status"`
	Query  string `mapstructure:"query"`

	Listen                  string `mapstructure:"listen"`
	CatalogPath             string `mapstructure:"catalog"`
	OverrideRetentionMonths int    `mapstructure:"override_retention_months"`
	RunCacheSize            int    `mapstructure:"run_cache_size"`
	MarkedBy                string `mapstructure:"marked_by"`
}

// defaults also lists every key Load binds to the environment.
var defaults = map[string]any{
	"dsn":                       "",
	"log_format":                "text",
	"log_level":                 "info",
	"profile":                   "Padrão",
	"period":                    "",
	"exams":                     "",
	"movements":                 "",
	"hospitalizations":          "",
	"csv_separator":             ";",
	"workers":                   0,
	"format":                    "text",
	"output":                    "",
	"status":                    "",
	"query":                     "",
	"listen":                    ":8080",
	"catalog":                   "",
	"override_retention_months": 12,
	"run_cache_size":            16,
	"marked_by":                 "default",
}

// Load resolves the configuration from, in increasing precedence: defaults,
// the YAML file at path (optional), EXAMCHECK_* environment variables and
// flags explicitly set on the command line. Flags are matched by key with
// underscores written as dashes (log_format → --log-format).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	// DATABASE_URL is honoured as in most Postgres tooling.
	if err := v.BindEnv("dsn", EnvPrefix+"_DSN", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind env dsn: %w", err)
	}

	if flags != nil {
		for key := range defaults {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Comma returns the CSV separator as a rune. "tab" and "\t" select a tab.
func (c *Config) Comma() (rune, error) {
	switch c.CSVSeparator {
	case "":
		return ';', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.CSVSeparator)
	if size != len(c.CSVSeparator) || r == '\n' || r == '\r' || r == '"' {
		return 0, fmt.Errorf("%w: %q", ErrBadSeparator, c.CSVSeparator)
	}
	return r, nil
}

// ParsedPeriod returns the reference period, defaulting to the current month.
func (c *Config) ParsedPeriod() (model.Period, error) {
	if strings.TrimSpace(c.Period) == "" {
		return model.PeriodOf(time.Now()), nil
	}
	return model.ParsePeriod(c.Period)
}

// ValidateInputs checks the fields an analysis reads: input files, period,
// separator and worker count.
func (c *Config) ValidateInputs() error {
	if c.ExamsPath == "" {
		return ErrNoExams
	}
	for _, p := range []string{c.ExamsPath, c.MovementsPath, c.HospitalizationsPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("file not accessible: %w", err)
		}
	}
	if _, err := c.ParsedPeriod(); err != nil {
		return err
	}
	if _, err := c.Comma(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return ErrBadWorkerCount
	}
	return nil
}

// ValidateDSN checks that a database is configured.
func (c *Config) ValidateDSN() error {
	if c.DSN == "" {
		return ErrNoDSN
	}
	return nil
}

// ValidateWithDSN checks both input and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.ValidateInputs(); err != nil {
		return err
	}
	return c.ValidateDSN()
}

// ValidateRetention checks the override retention window.
func (c *Config) ValidateRetention() error {
	if c.OverrideRetentionMonths < 1 {
		return fmt.Errorf("%w: %d", ErrBadRetention, c.OverrideRetentionMonths)
	}
	return nil
}
