package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	JWT       JWTConfig
	Oracle    OracleConfig
	Scheduler SchedulerConfig
	LogLevel  string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// JWTConfig holds operator-auth configuration
type JWTConfig struct {
	Secret string
}

// OracleConfig holds randomness-oracle configuration
type OracleConfig struct {
	BaseURL    string
	APIKey     string
	MockOracle bool
}

// SchedulerConfig holds background-scheduler configuration. The lock lease
// must stay shorter than the tick interval so a held lock always expires
// before the holder's next tick.
type SchedulerConfig struct {
	TickInterval time.Duration
	LockTTL      time.Duration
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("Server.Port", "4000")
	viper.SetDefault("Server.AllowedHosts", []string{"localhost:3000"})
	viper.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	viper.SetDefault("MongoDB.Database", "allowlist-engine")
	viper.SetDefault("Oracle.MockOracle", true)
	viper.SetDefault("Scheduler.TickInterval", 30*time.Second)
	viper.SetDefault("Scheduler.LockTTL", 25*time.Second)
	viper.SetDefault("LogLevel", "info")
}
