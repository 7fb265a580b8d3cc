/*
Package config loads the crew-engine configuration.

SOURCES (later wins):
  1. env-default tags below
  2. YAML file (optional, see local.yaml)
  3. Environment variables named in the env tags

ENVIRONMENTS:
  local: text logs at debug level
  dev:   JSON logs at debug level
  prod:  text logs at info level
*/
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"

	"github.com/warp/crew-engine/earnings"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env            string `yaml:"env" env:"CREW_ENV" env-default:"local"`
	StoragePath    string `yaml:"storage_path" env:"CREW_STORAGE_PATH" env-default:"crew.db"`
	// JournalPath holds ended shifts the main store did not accept yet.
	// Empty means "<storage_path>.pending".
	JournalPath    string `yaml:"journal_path" env:"CREW_JOURNAL_PATH"`
	HTTPServer     `yaml:"http_server"`
	CORS           CORS     `yaml:"cors"`
	Admin          Admin    `yaml:"admin"`
	Overtime       Overtime `yaml:"overtime"`
	Calendar       Calendar `yaml:"calendar"`
	CurrencySymbol string   `yaml:"currency_symbol" env:"CREW_CURRENCY_SYMBOL" env-default:"€"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"CREW_HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env:"CREW_HTTP_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"30s"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CREW_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
}

// Admin guards the reset and scenario routes. An empty login leaves them open.
type Admin struct {
	Login    string `yaml:"login" env:"CREW_ADMIN_LOGIN"`
	Password string `yaml:"password" env:"CREW_ADMIN_PASSWORD"`
}

// Overtime is the fallback policy for organizations without their own.
// Values are decimal strings.
type Overtime struct {
	WeeklyThresholdHours string `yaml:"weekly_threshold_hours" env:"CREW_OVERTIME_THRESHOLD" env-default:"40"`
	Multiplier           string `yaml:"multiplier" env:"CREW_OVERTIME_MULTIPLIER" env-default:"1.5"`
}

type Calendar struct {
	UIDDomain string `yaml:"uid_domain" env:"CREW_CALENDAR_DOMAIN" env-default:"crew-engine.local"`
	ProductID string `yaml:"product_id" env-default:"-//crew-engine//phases//EN"`
}

// Load reads the YAML file at path, or only the environment when path is
// empty.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads the file named by CONFIG_PATH and exits on failure.
func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Fatalf("config file does not exist: %s", path)
		}
	}
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: unknown env %q", c.Env)
	}
	if c.StoragePath == "" {
		return errors.New("config: storage_path is required")
	}
	if c.Admin.Login != "" && c.Admin.Password == "" {
		return errors.New("config: admin password is required when a login is set")
	}
	if _, err := c.OvertimePolicy(); err != nil {
		return err
	}
	return nil
}

// PendingJournalPath returns the sync journal file.
func (c *Config) PendingJournalPath() string {
	switch {
	case c.JournalPath != "":
		return c.JournalPath
	case c.StoragePath == ":memory:":
		return ":memory:"
	default:
		return c.StoragePath + ".pending"
	}
}

// OvertimePolicy parses the fallback overtime policy.
func (c *Config) OvertimePolicy() (earnings.Policy, error) {
	threshold, err := decimal.NewFromString(c.Overtime.WeeklyThresholdHours)
	if err != nil {
		return earnings.Policy{}, fmt.Errorf("config: overtime threshold: %w", err)
	}
	multiplier, err := decimal.NewFromString(c.Overtime.Multiplier)
	if err != nil {
		return earnings.Policy{}, fmt.Errorf("config: overtime multiplier: %w", err)
	}
	p := earnings.Policy{WeeklyThreshold: threshold, OvertimeMultiplier: multiplier}
	if err := p.Validate(); err != nil {
		return earnings.Policy{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}
