// Package config loads routerwatch settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"gopkg.in/yaml.v3"
)

// MinSecretLength applies to both SESSION_SECRET and ENCRYPTION_KEY.
const MinSecretLength = 32

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var ErrConfigFileNotFound = errors.New("config file not found")

type Config struct {
	// Server
	Port         string `yaml:"port"`
	AllowOrigins string `yaml:"allow_origins"`
	CookieSecure bool   `yaml:"cookie_secure"`
	LogLevel     string `yaml:"log_level"`

	// Auth
	SessionSecret   string   `yaml:"session_secret"`
	EncryptionKey   string   `yaml:"encryption_key"`
	LoginRateMax    int      `yaml:"login_rate_max"`
	LoginRateWindow Duration `yaml:"login_rate_window"`

	// Storage
	DataDir     string `yaml:"data_dir"`
	DatabaseDSN string `yaml:"database_dsn"`

	// RouterOS
	RouterOSPort    int      `yaml:"routeros_port"`
	RouterOSTLS     bool     `yaml:"routeros_tls"`
	ConnectCooldown Duration `yaml:"connect_cooldown"`
	DialTimeout     Duration `yaml:"dial_timeout"`
	CallTimeout     Duration `yaml:"call_timeout"`

	// Telemetry
	PingTarget       string             `yaml:"ping_target"`
	EchoTimeout     Duration           `yaml:"echo_timeout"`
	LogLimit         int                `yaml:"log_limit"`
	DefaultInterface string             `yaml:"default_interface"`
	MinInterval      Duration           `yaml:"min_interval"`
	MaxInterval      Duration           `yaml:"max_interval"`
	Intervals        models.Preferences `yaml:"intervals"`
}

// IntervalBounds is the accepted range for feed periods.
func (c *Config) IntervalBounds() models.IntervalBounds {
	return models.IntervalBounds{Min: c.MinInterval.Duration, Max: c.MaxInterval.Duration}
}

// Duration accepts Go duration strings ("30s") in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load builds the config from defaults, the YAML file named by CONFIG_FILE
// (if any) and then environment variables, which win.
func Load() (*Config, error) {
	return LoadFile(getEnv("CONFIG_FILE", ""))
}

func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSecretLength)
	}
	if len(c.EncryptionKey) < MinSecretLength {
		return fmt.Errorf("ENCRYPTION_KEY must be at least %d bytes", MinSecretLength)
	}
	if c.RouterOSPort < 1 || c.RouterOSPort > 65535 {
		return fmt.Errorf("routeros_port must be between 1 and 65535")
	}
	for name, d := range map[string]time.Duration{
		"connect_cooldown":  c.ConnectCooldown.Duration,
		"dial_timeout":      c.DialTimeout.Duration,
		"call_timeout":      c.CallTimeout.Duration,
		"echo_timeout":     c.EchoTimeout.Duration,
		"login_rate_window": c.LoginRateWindow.Duration,
		"min_interval":      c.MinInterval.Duration,
		"max_interval":      c.MaxInterval.Duration,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.LogLimit < 1 {
		return fmt.Errorf("log_limit must be >= 1")
	}
	if c.LoginRateMax < 1 {
		return fmt.Errorf("login_rate_max must be >= 1")
	}
	if c.MaxInterval.Duration < c.MinInterval.Duration {
		return fmt.Errorf("max_interval must not be below min_interval")
	}
	bounds := c.IntervalBounds()
	for name, ms := range map[string]int{
		"realtime_interval":     c.Intervals.RealtimeInterval,
		"dhcp_interval":         c.Intervals.DHCPInterval,
		"ping_interval":         c.Intervals.PingInterval,
		"log_interval":          c.Intervals.LogInterval,
		"interface_interval":    c.Intervals.InterfaceInterval,
		"node_monitor_interval": c.Intervals.NodeMonitorInterval,
	} {
		if err := bounds.Check("intervals."+name, ms); err != nil {
			return err
		}
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func defaults() *Config {
	return &Config{
		Port:             "8097",
		AllowOrigins:     "*",
		LogLevel:         "info",
		DataDir:          "data",
		RouterOSPort:     8728,
		ConnectCooldown:  Duration{30 * time.Second},
		DialTimeout:      Duration{5 * time.Second},
		CallTimeout:      Duration{10 * time.Second},
		LoginRateMax:     10,
		LoginRateWindow:  Duration{15 * time.Minute},
		EchoTimeout:     Duration{time.Second},
		LogLimit:         20,
		DefaultInterface: "ether1",
		MinInterval:      Duration{models.DefaultIntervalBounds.Min},
		MaxInterval:      Duration{models.DefaultIntervalBounds.Max},
		Intervals: models.Preferences{
			RealtimeInterval:    1000,
			DHCPInterval:        5000,
			PingInterval:        2000,
			LogInterval:         5000,
			InterfaceInterval:   5000,
			NodeMonitorInterval: 3000,
		},
	}
}

// expandEnvVars replaces ${VAR} placeholders with environment values; unset
// variables become empty and then fail validation.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		return []byte(os.Getenv(string(match[2 : len(match)-1])))
	})
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.AllowOrigins = getEnv("ALLOW_ORIGINS", cfg.AllowOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.SessionSecret = getEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.EncryptionKey = getEnv("ENCRYPTION_KEY", cfg.EncryptionKey)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.PingTarget = getEnv("PING_TARGET", cfg.PingTarget)
	cfg.DefaultInterface = getEnv("DEFAULT_INTERFACE", cfg.DefaultInterface)

	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.RouterOSTLS = getEnvBool("ROUTEROS_TLS", cfg.RouterOSTLS)
	cfg.RouterOSPort = getEnvInt("ROUTEROS_PORT", cfg.RouterOSPort)
	cfg.LogLimit = getEnvInt("LOG_LIMIT", cfg.LogLimit)
	cfg.LoginRateMax = getEnvInt("LOGIN_RATE_MAX", cfg.LoginRateMax)

	cfg.ConnectCooldown.Duration = getEnvDuration("CONNECT_COOLDOWN", cfg.ConnectCooldown.Duration)
	cfg.DialTimeout.Duration = getEnvDuration("DIAL_TIMEOUT", cfg.DialTimeout.Duration)
	cfg.CallTimeout.Duration = getEnvDuration("CALL_TIMEOUT", cfg.CallTimeout.Duration)
	cfg.EchoTimeout.Duration = getEnvDuration("ECHO_TIMEOUT", cfg.EchoTimeout.Duration)
	cfg.LoginRateWindow.Duration = getEnvDuration("LOGIN_RATE_WINDOW", cfg.LoginRateWindow.Duration)
	cfg.MinInterval.Duration = getEnvDuration("MIN_INTERVAL", cfg.MinInterval.Duration)
	cfg.MaxInterval.Duration = getEnvDuration("MAX_INTERVAL", cfg.MaxInterval.Duration)

	iv := &cfg.Intervals
	iv.RealtimeInterval = getEnvInt("REALTIME_INTERVAL_MS", iv.RealtimeInterval)
	iv.DHCPInterval = getEnvInt("DHCP_INTERVAL_MS", iv.DHCPInterval)
	iv.PingInterval = getEnvInt("PING_INTERVAL_MS", iv.PingInterval)
	iv.LogInterval = getEnvInt("LOG_INTERVAL_MS", iv.LogInterval)
	iv.InterfaceInterval = getEnvInt("INTERFACE_INTERVAL_MS", iv.InterfaceInterval)
	iv.NodeMonitorInterval = getEnvInt("NODE_MONITOR_INTERVAL_MS", iv.NodeMonitorInterval)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are milliseconds.
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
