package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"barcopy/internal/masscopy"
	"barcopy/internal/window"
)

// Date accepts RFC3339 or a bare 2006-01-02 (midnight).
type Date struct{ time.Time }

func (d *Date) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q (use RFC3339 or 2006-01-02)", s)
	}
	d.Time = t
	return nil
}

// Config holds application configuration from env
type Config struct {
	DataProvider    string        `env:"BARCOPY_PROVIDER"`
	From            Date          `env:"BARCOPY_FROM,required"`
	To              Date          `env:"BARCOPY_TO,required"`
	TZMode          window.TZMode `env:"BARCOPY_TZ_MODE" envDefault:"utc"`
	Threads         int           `env:"BARCOPY_THREADS" envDefault:"4"`
	EnableHour      bool          `env:"BARCOPY_ENABLE_HOUR" envDefault:"true"`
	EnableDay       bool          `env:"BARCOPY_ENABLE_DAY" envDefault:"true"`
	EnableWeek      bool          `env:"BARCOPY_ENABLE_WEEK" envDefault:"true"`
	EnableMonth     bool          `env:"BARCOPY_ENABLE_MONTH" envDefault:"true"`
	InstrumentsFile string        `env:"BARCOPY_INSTRUMENTS_FILE"`
	ExchangesFile   string        `env:"BARCOPY_EXCHANGES_FILE"`
	Storage         string        `env:"BARCOPY_STORAGE" envDefault:"file"` // memory | file | postgres
	DataDir         string        `env:"BARCOPY_DATA_DIR" envDefault:"data"`
	FileFormat      string        `env:"BARCOPY_FILE_FORMAT" envDefault:"parquet"`
	PostgresDSN     string        `env:"BARCOPY_POSTGRES_DSN"`
	ReportDir       string        `env:"BARCOPY_REPORT_DIR"`
	MetricsAddr     string        `env:"BARCOPY_METRICS_ADDR"`
	Heartbeat       time.Duration `env:"BARCOPY_HEARTBEAT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"` // debug | info | warn | error
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Settings converts the config into the read-only settings of one run.
func (c *Config) Settings() masscopy.Settings {
	return masscopy.Settings{
		From:         c.From.Time,
		To:           c.To.Time,
		TZMode:       c.TZMode,
		ThreadCount:  c.Threads,
		EnableHour:   c.EnableHour,
		EnableDay:    c.EnableDay,
		EnableWeek:   c.EnableWeek,
		EnableMonth:  c.EnableMonth,
		DataProvider: c.DataProvider,
	}
}

// ReportPath returns the directory for run reports: BARCOPY_REPORT_DIR or the data dir.
func (c *Config) ReportPath() string {
	if c.ReportDir != "" {
		return c.ReportDir
	}
	return c.DataDir
}

// ProgressPath returns path to .progress.json
func (c *Config) ProgressPath() string {
	return filepath.Join(c.ReportPath(), ".progress.json")
}
