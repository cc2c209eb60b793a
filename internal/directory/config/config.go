// Package config loads the service configuration from a YAML file, an
// optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gartstein/companydir/internal/directory/db"
	"github.com/gartstein/companydir/internal/directory/discovery"
	"github.com/gartstein/companydir/internal/directory/search"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
var DefaultPath = filepath.Join("internal", "directory", "config", "config.yaml")

type Config struct {
	GRPCPort int `yaml:"GRPC_PORT" validate:"required,min=1,max=65535"`
	HTTPPort int `yaml:"HTTP_PORT" validate:"required,min=1,max=65535"`

	DBDriver   string `yaml:"DB_DRIVER" validate:"oneof=postgres sqlite"`
	DBPath     string `yaml:"DB_PATH" validate:"required_if=DBDriver sqlite"`
	DSN        string `yaml:"DATABASE_URL"`
	DBHost     string `yaml:"DB_HOST"`
	DBPort     int    `yaml:"DB_PORT" validate:"omitempty,min=1,max=65535"`
	DBUser     string `yaml:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME"`
	DBSSLMode  string `yaml:"DB_SSLMODE"`

	// Events and the ingestion topic are disabled when no brokers are set.
	KafkaBrokers  []string `yaml:"KAFKA_BROKERS"`
	Topic         string   `yaml:"TOPIC" validate:"required_with=KafkaBrokers"`
	IngestTopic   string   `yaml:"INGEST_TOPIC"`
	ConsumerGroup string   `yaml:"CONSUMER_GROUP" validate:"required_with=IngestTopic"`

	JWTSecret string `yaml:"JWT_SECRET" validate:"required"`

	SearchEndpoint string  `yaml:"SEARCH_ENDPOINT" validate:"omitempty,url"`
	SearchAPIKey   string  `yaml:"SEARCH_API_KEY"`
	SearchEngineID string  `yaml:"SEARCH_ENGINE_ID"`
	SearchToken    string  `yaml:"SEARCH_TOKEN"`
	SearchRPS      float64 `yaml:"SEARCH_RPS" validate:"gte=0"`

	DiscoveryEnabled bool          `yaml:"DISCOVERY_ENABLED"`
	DiscoveryKeyword string        `yaml:"DISCOVERY_KEYWORD"`
	RetryUnit        time.Duration `yaml:"RETRY_UNIT" validate:"required"`
	RetryCap         time.Duration `yaml:"RETRY_CAP" validate:"required,gtefield=RetryUnit"`
	Cooldown         time.Duration `yaml:"COOLDOWN" validate:"required"`
	IdlePoll         time.Duration `yaml:"IDLE_POLL" validate:"required"`

	EdgarUserAgent string `yaml:"EDGAR_USER_AGENT"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		GRPCPort:         50051,
		HTTPPort:         8080,
		DBDriver:         db.DriverPostgres,
		DBSSLMode:        "disable",
		SearchEndpoint:   search.DefaultEndpoint,
		SearchRPS:        1,
		DiscoveryEnabled: true,
		DiscoveryKeyword: discovery.DefaultKeyword,
		RetryUnit:        discovery.DefaultRetryUnit,
		RetryCap:         discovery.DefaultRetryCap,
		Cooldown:         discovery.DefaultCooldown,
		IdlePoll:         discovery.DefaultIdlePoll,
	}
}

// Load reads path (CONFIG_PATH or DefaultPath when empty), loads a .env
// file from the working directory if present, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"DATABASE_URL":     &c.DSN,
		"DB_DRIVER":        &c.DBDriver,
		"DB_PATH":          &c.DBPath,
		"DB_PASSWORD":      &c.DBPassword,
		"JWT_SECRET":       &c.JWTSecret,
		"SEARCH_API_KEY":   &c.SearchAPIKey,
		"SEARCH_ENGINE_ID": &c.SearchEngineID,
		"SEARCH_TOKEN":     &c.SearchToken,
		"EDGAR_USER_AGENT": &c.EdgarUserAgent,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = strings.Split(v, ",")
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) Database() *db.Config {
	return &db.Config{
		Driver:   c.DBDriver,
		DSN:      c.DSN,
		Path:     c.DBPath,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

func (c *Config) Search() search.Config {
	return search.Config{
		Endpoint:          c.SearchEndpoint,
		APIKey:            c.SearchAPIKey,
		EngineID:          c.SearchEngineID,
		Token:             c.SearchToken,
		RequestsPerSecond: c.SearchRPS,
	}
}

func (c *Config) Retry() discovery.RetryPolicy {
	return discovery.RetryPolicy{Unit: c.RetryUnit, Cap: c.RetryCap}
}
