package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// DefaultPort is used when PORT is unset or not a valid port number.
	DefaultPort = 80
	// DefaultPeerURL is the in-cluster address of the downstream service.
	DefaultPeerURL = "http://microservice-b:80"

	// FileEnv names the optional YAML file layered under the environment.
	FileEnv = "TANDEM_CONFIG"
)

// Config is captured once at startup and handed to the components that need it.
// Only the log level may change afterwards (see WatchLogLevel).
type Config struct {
	Port        int    `mapstructure:"-"`
	ServiceID   string `mapstructure:"service_id"`
	PeerURL     string `mapstructure:"peer_url"`
	RelayFormat string `mapstructure:"relay_format"`
	Greeting    string `mapstructure:"greeting"` // body served by the backend binary

	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Health  HealthConfig  `mapstructure:"health"`

	v *viper.Viper
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"` // "development" selects the console encoder
}

// TracingConfig controls the OTLP span exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"` // host:port of the OTLP/HTTP collector
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// HealthConfig controls the background checks behind /healthz.
type HealthConfig struct {
	PeerCheckInterval time.Duration `mapstructure:"peer_check_interval"`
}

// Defaults carries the values that differ between the service binaries.
type Defaults struct {
	ServiceID   string
	RelayFormat string
	Greeting    string
}

var envBindings = map[string]string{
	"port":                       "PORT",
	"service_id":                 "SERVICE_ID",
	"peer_url":                   "PEER_URL",
	"relay_format":               "RELAY_FORMAT",
	"greeting":                   "GREETING",
	"logging.level":              "LOG_LEVEL",
	"logging.environment":        "TANDEM_ENV",
	"tracing.enabled":            "TRACING_ENABLED",
	"tracing.endpoint":           "OTLP_ENDPOINT",
	"tracing.insecure":           "OTLP_INSECURE",
	"tracing.service_name":       "TRACING_SERVICE_NAME",
	"health.peer_check_interval": "HEALTH_PEER_CHECK_INTERVAL",
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by TANDEM_CONFIG.
func Load(d Defaults) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", DefaultPort)
	v.SetDefault("service_id", d.ServiceID)
	v.SetDefault("peer_url", DefaultPeerURL)
	v.SetDefault("relay_format", d.RelayFormat)
	v.SetDefault("greeting", d.Greeting)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "")
	v.SetDefault("health.peer_check_interval", 10*time.Second)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Port = parsePort(v.GetString("port"))
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.ServiceID
	}
	cfg.v = v

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parsePort falls back to DefaultPort for anything that is not a usable TCP port.
func parsePort(raw string) int {
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || p <= 0 || p > 65535 {
		return DefaultPort
	}
	return p
}

// Validate checks the values the relay cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceID) == "" {
		return fmt.Errorf("service_id must not be empty")
	}
	switch c.RelayFormat {
	case "arrow", "labeled":
	default:
		return fmt.Errorf("unknown relay_format %q (want arrow or labeled)", c.RelayFormat)
	}
	u, err := url.Parse(c.PeerURL)
	if err != nil {
		return fmt.Errorf("invalid peer_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid peer_url %q: need http(s)://host[:port]", c.PeerURL)
	}
	return nil
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// File returns the config file in use, or "" when only the environment is read.
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// WatchLogLevel re-reads the config file on change and passes the new log
// level to apply. It returns false when no config file is in use.
func (c *Config) WatchLogLevel(apply func(level string)) bool {
	if c.File() == "" {
		return false
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		apply(c.v.GetString("logging.level"))
	})
	c.v.WatchConfig()
	return true
}
