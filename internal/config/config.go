package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                   = "PRICEHUB"
	defaultHTTPAddress          = "0.0.0.0:8080"
	defaultDatabasePath         = "pricehub.db"
	defaultLogLevel             = "info"
	defaultAuthIssuer           = "pricehub-auth"
	defaultScrapeIntervalMin    = 60
	defaultSettleDelayMillis    = 1500
	defaultNavigationTimeoutSec = 30
)

// AppConfig captures runtime configuration for the API server and the
// scrape worker.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	AuthSigningKey    string
	AuthIssuer        string
	ScrapeInterval    time.Duration
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("scrape.interval_minutes", defaultScrapeIntervalMin)
	configViper.SetDefault("scrape.settle_delay_ms", defaultSettleDelayMillis)
	configViper.SetDefault("scrape.navigation_timeout_s", defaultNavigationTimeoutSec)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		AuthSigningKey:    configViper.GetString("auth.signing_secret"),
		AuthIssuer:        configViper.GetString("auth.issuer"),
		ScrapeInterval:    time.Duration(configViper.GetInt("scrape.interval_minutes")) * time.Minute,
		SettleDelay:       time.Duration(configViper.GetInt("scrape.settle_delay_ms")) * time.Millisecond,
		NavigationTimeout: time.Duration(configViper.GetInt("scrape.navigation_timeout_s")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningKey) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.ScrapeInterval <= 0 {
		return fmt.Errorf("scrape.interval_minutes must be positive")
	}
	return nil
}
