package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Scheduling    SchedulingConfig    `json:"scheduling"`
	Notifications NotificationsConfig `json:"notifications"`
	AWS           AWSConfig           `json:"aws"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host" env:"SERVER_HOST"`
	Port         int           `json:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// DatabaseConfig represents database configuration.
// Driver "memory" runs every repository in-process.
type DatabaseConfig struct {
	Driver         string        `json:"driver" env:"DATABASE_DRIVER"`
	Host           string        `json:"host" env:"DATABASE_HOST"`
	Port           int           `json:"port" env:"DATABASE_PORT"`
	User           string        `json:"user" env:"DATABASE_USER"`
	Password       string        `json:"password" env:"DATABASE_PASSWORD"`
	DBName         string        `json:"db_name" env:"DATABASE_DBNAME"`
	SSLMode        string        `json:"ssl_mode" env:"DATABASE_SSLMODE"`
	MaxConnections int           `json:"max_connections" env:"DATABASE_MAX_CONNECTIONS"`
	MaxIdleConns   int           `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MaxLifetime    time.Duration `json:"max_lifetime" env:"DATABASE_MAX_LIFETIME"`
	MigrationsPath string        `json:"migrations_path" env:"DATABASE_MIGRATIONS_PATH"`
}

// SchedulingConfig controls slot generation and the nightly roll-forward
type SchedulingConfig struct {
	SlotLength      time.Duration `json:"slot_length" env:"SCHEDULING_SLOT_LENGTH"`
	HorizonDays     int           `json:"horizon_days" env:"SCHEDULING_HORIZON_DAYS"`
	RollForwardCron string        `json:"roll_forward_cron" env:"SCHEDULING_ROLL_FORWARD_CRON"`
}

// NotificationsConfig controls push delivery and the retry queue
type NotificationsConfig struct {
	SNSTopicARN string `json:"sns_topic_arn" env:"NOTIFICATIONS_SNS_TOPIC_ARN"`
	RetryCron   string `json:"retry_cron" env:"NOTIFICATIONS_RETRY_CRON"`
	MaxPending  int    `json:"max_pending" env:"NOTIFICATIONS_MAX_PENDING"`
	MaxTries    uint   `json:"max_tries" env:"NOTIFICATIONS_MAX_TRIES"`
}

// AWSConfig configures S3 document storage and SNS push.
// Leaving DocumentBucket empty keeps documents in memory.
type AWSConfig struct {
	Region          string `json:"region" env:"AWS_REGION"`
	Endpoint        string `json:"endpoint" env:"AWS_ENDPOINT_URL"`
	DocumentBucket  string `json:"document_bucket" env:"AWS_DOCUMENT_BUCKET"`
	AccessKeyID     string `json:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
}

// SecurityConfig
// An empty JWTSecret trusts the X-User-ID header set by the gateway.
// VerifierToken is shared with the document verifier; while it is empty no
// verification result is accepted.
type SecurityConfig struct {
	JWTSecret     string `json:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer     string `json:"jwt_issuer" env:"JWT_ISSUER"`
	VerifierToken string `json:"verifier_token" env:"VERIFIER_TOKEN"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level" env:"LOG_LEVEL"`
	Development bool   `json:"development" env:"LOG_DEVELOPMENT"`
}

// Default returns the configuration used when no file or environment overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "tachesure",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			MigrationsPath: "migrations",
		},
		Scheduling: SchedulingConfig{
			SlotLength:      2 * time.Hour,
			HorizonDays:     30,
			RollForwardCron: "0 15 2 * * *",
		},
		Notifications: NotificationsConfig{
			RetryCron:  "0 */1 * * * *",
			MaxPending: 1000,
			MaxTries:   3,
		},
		AWS: AWSConfig{
			Region: "eu-west-1",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file, a .env file and environment variables, in that order
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Variables already set in the environment win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Scheduling.SlotLength <= 0 || c.Scheduling.SlotLength > 24*time.Hour {
		return fmt.Errorf("invalid slot length %s", c.Scheduling.SlotLength)
	}
	if c.Scheduling.HorizonDays <= 0 {
		return fmt.Errorf("invalid horizon days %d", c.Scheduling.HorizonDays)
	}
	return nil
}

// UseMemory reports whether repositories run in-process
func (c *DatabaseConfig) UseMemory() bool {
	return c.Driver == "memory"
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasStaticCredentials reports whether keys were configured explicitly
func (c *AWSConfig) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}
