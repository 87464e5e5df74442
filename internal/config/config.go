// Package config defines the application configuration of the premium
// engine and loads it from a YAML file and the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/iwvelando/premium-engine/pkg/constants"
	"github.com/iwvelando/premium-engine/pkg/validation"
	"github.com/spf13/viper"
)

// Tariff source kinds.
const (
	TariffSourceEmbedded = "embedded"
	TariffSourceFile     = "file"
	TariffSourcePostgres = "postgres"
)

// Configuration holds all configuration for the premium engine.
type Configuration struct {
	Tariff   TariffConfig   `mapstructure:"tariff" yaml:"tariff,omitempty"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database,omitempty"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis,omitempty"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth,omitempty"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging,omitempty"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output,omitempty"`
}

// TariffConfig selects where the tariff document is read from.
type TariffConfig struct {
	Source string `mapstructure:"source" yaml:"source,omitempty"` // embedded, file, postgres
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// DatabaseConfig holds the Postgres connection used for the tariff source
// and the quote store. An empty DSN disables both.
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	Migrate bool   `mapstructure:"migrate" yaml:"migrate,omitempty"`
}

// RedisConfig holds the quote cache connection. An empty address disables
// the cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db,omitempty"`
}

// AuthConfig holds the credentials accepted by the HTTP API. With no API
// keys and no JWT secret the API is open.
type AuthConfig struct {
	APIKeyHashes []string `mapstructure:"apiKeyHashes" yaml:"apiKeyHashes,omitempty"` // bcrypt hashes
	JWTSecret    string   `mapstructure:"jwtSecret" yaml:"jwtSecret,omitempty"`
	JWTIssuer    string   `mapstructure:"jwtIssuer" yaml:"jwtIssuer,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format,omitempty"` // pretty, csv, json
}

// Enabled reports whether API authentication is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeyHashes) > 0 || a.JWTSecret != ""
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tariff.source", TariffSourceEmbedded)
	v.SetDefault("tariff.file", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.migrate", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.apiKeyHashes", []string{})
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.jwtIssuer", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with PREMIUM_ override
// file values, e.g. PREMIUM_DATABASE_DSN. An empty path loads defaults and
// the environment only.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.Tariff.Source = strings.ToLower(strings.TrimSpace(configuration.Tariff.Source))
	if configuration.Tariff.Source == "" {
		configuration.Tariff.Source = TariffSourceEmbedded
	}

	return &configuration, nil
}

// ValidateConfiguration checks the configuration for inconsistencies and
// returns one message per problem found.
func (c *Configuration) ValidateConfiguration() []string {
	var problems []string

	switch c.Tariff.Source {
	case TariffSourceEmbedded:
	case TariffSourceFile:
		if c.Tariff.File == "" {
			problems = append(problems, "tariff.file is required when tariff.source is file")
		}
	case TariffSourcePostgres:
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required when tariff.source is postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("tariff.source %q is not one of embedded, file, postgres", c.Tariff.Source))
	}

	if c.Database.Migrate && c.Database.DSN == "" {
		problems = append(problems, "database.migrate requires database.dsn")
	}
	if c.Redis.DB < 0 {
		problems = append(problems, "redis.db must not be negative")
	}

	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(strings.ToLower(c.Output.Format)); err != nil {
			problems = append(problems, fmt.Sprintf("output.format: %v", err))
		}
	}

	for i, h := range c.Auth.APIKeyHashes {
		if !strings.HasPrefix(h, "$2") {
			problems = append(problems, fmt.Sprintf("auth.apiKeyHashes[%d] is not a bcrypt hash", i))
		}
	}

	return problems
}
