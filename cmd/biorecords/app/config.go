package app

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/config"
	"github.com/biorecords/biorecords/internal/server"
)

// DefaultDatabase is the database path used when none is configured.
const DefaultDatabase = "biorecords.db"

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Output  string

	// Config file
	ConfigFile string

	// Storage
	Database string

	// Logging configuration. LogLevel is only set by --log-level;
	// DefaultLogLevel comes from the environment or the config file.
	LogLevel        string
	DefaultLogLevel string
	LogFormat       string
	LogOutput       string

	// Server settings read from the config file. Zero values keep the
	// server defaults.
	ServerHost      string
	ServerPort      int
	ServerPrefix    string
	CORSOrigins     []string
	RateLimit       int
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. Environment variables (LOG_LEVEL, then BIORECORDS_*)
// 3. .env files
// 4. Config file (file, or ~/.biorecords.yaml)
// 5. Defaults
func LoadConfig(file string) (*Config, error) {
	v, err := config.New(file)
	if err != nil {
		return nil, err
	}
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	cfg := &Config{
		Verbose:    v.GetBool("verbose"),
		Quiet:      v.GetBool("quiet"),
		NoColor:    v.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Output:     v.GetString("output"),
		ConfigFile: v.ConfigFileUsed(),
		Database:   v.GetString("database"),

		DefaultLogLevel: firstNonEmpty(os.Getenv("LOG_LEVEL"), v.GetString("log_level")),
		LogFormat:       firstNonEmpty(os.Getenv("LOG_FORMAT"), v.GetString("log_format")),
		LogOutput:       firstNonEmpty(os.Getenv("LOG_OUTPUT"), v.GetString("log_output")),

		ServerHost:      v.GetString("server.host"),
		ServerPort:      v.GetInt("server.port"),
		ServerPrefix:    v.GetString("server.prefix"),
		CORSOrigins:     stringSlice(v, "server.cors_origins"),
		RateLimit:       v.GetInt("server.rate_limit"),
		CacheTTL:        v.GetDuration("server.cache_ttl"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
	}
	return cfg, nil
}

// UpdateFromFlags applies parsed global flags. Flag values take
// precedence over the config file and the environment.
func (c *Config) UpdateFromFlags(flags *globals.Flags) {
	c.Verbose = c.Verbose || flags.Verbose
	c.Quiet = c.Quiet || flags.Quiet
	c.NoColor = c.NoColor || flags.NoColor
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.Database != "" {
		c.Database = flags.Database
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
}

// Server returns the server defaults overlaid with the configured values.
func (c *Config) Server() server.Config {
	cfg := server.DefaultConfig()
	if c.ServerHost != "" {
		cfg.Host = c.ServerHost
	}
	if c.ServerPort != 0 {
		cfg.Port = c.ServerPort
	}
	if c.ServerPrefix != "" {
		cfg.PathPrefix = c.ServerPrefix
	}
	if len(c.CORSOrigins) > 0 {
		cfg.CORSEnabled = true
		cfg.CORSOrigins = c.CORSOrigins
	}
	if c.RateLimit != 0 {
		cfg.RateLimit = c.RateLimit
	}
	if c.CacheTTL != 0 {
		cfg.CacheTTL = c.CacheTTL
	}
	return cfg
}

// stringSlice reads a list that may also be given as a comma-separated
// environment variable.
func stringSlice(v *viper.Viper, key string) []string {
	var out []string
	for _, s := range v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
