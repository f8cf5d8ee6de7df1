package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the scanner configuration
type Config struct {
	// RabbitMQ settings
	Host       string `mapstructure:"host"`        // broker hostname
	Port       int    `mapstructure:"port"`        // broker port
	Username   string `mapstructure:"username"`    // broker username
	Password   string `mapstructure:"password"`    // broker password
	QueueName  string `mapstructure:"queue_name"`  // target queue (durable)
	Exchange   string `mapstructure:"exchange"`    // exchange name ("" = default exchange)
	MaxRetries int    `mapstructure:"max_retries"` // connection retry attempts

	// HealthCheckInterval is how often (in published messages) the publisher
	// verifies the connection is still alive.
	HealthCheckInterval int `mapstructure:"health_check_interval"`

	// Scan settings
	Extensions       []string `mapstructure:"extensions"`        // extension allow-list (empty = all files)
	CalculateHash    bool     `mapstructure:"calculate_hash"`    // compute SHA-256 per file
	MaxHashSize      int64    `mapstructure:"max_hash_size"`     // skip hashing above this size (bytes)
	ProgressInterval int      `mapstructure:"progress_interval"` // log progress every N processed files

	// Logging settings
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
	LogFile  string `mapstructure:"log_file"`  // optional log file path
}

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 5672)
	v.SetDefault("username", "guest")
	v.SetDefault("password", "guest")
	v.SetDefault("queue_name", "file_scan_queue")
	v.SetDefault("exchange", "")
	v.SetDefault("max_retries", 10)
	v.SetDefault("health_check_interval", 100)
	v.SetDefault("calculate_hash", false)
	v.SetDefault("max_hash_size", int64(100*1024*1024))
	v.SetDefault("progress_interval", 100)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	// Read environment variables
	v.SetEnvPrefix("FILEMQ")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AMQPURL builds the broker URL from host, port and credentials.
func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}
