// Package config assembles the application configuration from defaults,
// an optional JSON config file, a .env file, environment variables and
// command-line flags. Priority is CLI > environment > JSON > defaults.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	RunAddr                  string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	ShortURLBase             string        `env:"BASE_URL" json:"base_url" validate:"url"`
	LogLevel                 string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName               string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"omitempty,filepath"`
	DatabaseDSN              string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout      time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	MigrationsDir            string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`
	SessionCookieName        string        `env:"SESSION_COOKIE_NAME" json:"session_cookie_name"`
	SessionSigningKey        string        `env:"SESSION_SIGNING_KEY" json:"session_signing_key"`
	SessionTTL               time.Duration `env:"SESSION_TTL" json:"session_ttl"`
	TrustedSubnet            string        `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	ChannelCapacity          int           `env:"CHANNEL_CAPACITY" json:"channel_capacity"`
	DelayBetweenQueueFetches time.Duration `env:"DELAY_BETWEEN_QUEUE_FETCHES" json:"delay_between_queue_fetches"`
}

var defaultConfig = Config{
	RunAddr:                  ":8080",
	ShortURLBase:             "http://localhost:8080",
	LogLevel:                 "info",
	DBConnectionTimeout:      10 * time.Second,
	MigrationsDir:            "cmd/tinyapp/migrations",
	SessionCookieName:        "tinyapp_session",
	SessionTTL:               24 * time.Hour,
	ChannelCapacity:          100,
	DelayBetweenQueueFetches: 5 * time.Second,
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command-line parsing, which tests need
// when the test binary carries its own flags.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	if err := applyJSONConfig(values); err != nil {
		return nil, err
	}

	valuesFromEnv := Config{}
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}
	applyNonZero(values, valuesFromEnv)

	if !options.disableFlagsParsing {
		if err := parseFlags(values); err != nil {
			return nil, err
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

// applyNonZero overlays every non-zero field of overlay onto values.
func applyNonZero(values *Config, overlay Config) {
	if overlay.RunAddr != "" {
		values.RunAddr = overlay.RunAddr
	}
	if overlay.ShortURLBase != "" {
		values.ShortURLBase = overlay.ShortURLBase
	}
	if overlay.LogLevel != "" {
		values.LogLevel = overlay.LogLevel
	}
	if overlay.DBFileName != "" {
		values.DBFileName = overlay.DBFileName
	}
	if overlay.DatabaseDSN != "" {
		values.DatabaseDSN = overlay.DatabaseDSN
	}
	if overlay.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = overlay.DBConnectionTimeout
	}
	if overlay.MigrationsDir != "" {
		values.MigrationsDir = overlay.MigrationsDir
	}
	if overlay.SessionCookieName != "" {
		values.SessionCookieName = overlay.SessionCookieName
	}
	if overlay.SessionSigningKey != "" {
		values.SessionSigningKey = overlay.SessionSigningKey
	}
	if overlay.SessionTTL != 0 {
		values.SessionTTL = overlay.SessionTTL
	}
	if overlay.TrustedSubnet != "" {
		values.TrustedSubnet = overlay.TrustedSubnet
	}
	if overlay.ChannelCapacity != 0 {
		values.ChannelCapacity = overlay.ChannelCapacity
	}
	if overlay.DelayBetweenQueueFetches != 0 {
		values.DelayBetweenQueueFetches = overlay.DelayBetweenQueueFetches
	}
}

func applyJSONConfig(values *Config) error {
	configPath := os.Getenv("CONFIG")
	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	fromJSON := Config{}
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		return err
	}
	applyNonZero(values, fromJSON)

	return nil
}

// parseFlags binds flags to the already merged values so unset flags
// keep their env/JSON/default values and set flags win.
func parseFlags(values *Config) error {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	flags.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
	flags.StringVar(&values.ShortURLBase, "b", values.ShortURLBase, "base address of the resulting shortened URL")
	flags.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
	flags.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
	flags.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
	flags.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "trusted subnet for the internal stats endpoint, CIDR")

	return flags.Parse(os.Args[1:])
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func (values *Config) validate() error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	if err := validate.RegisterValidation("filepath", validateFilePath); err != nil {
		return err
	}

	return validate.Struct(values)
}
