package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB  int    `mapstructure:"REDIS_SESSION_DB"`
	RedisDispatchDB int    `mapstructure:"REDIS_DISPATCH_DB"`

	// Conversation engine.
	NLUProvider   string `mapstructure:"NLU_PROVIDER"` // "rules" or "gemini"
	NLUTimeoutMS  int    `mapstructure:"NLU_TIMEOUT_MS"`
	SessionStore  string `mapstructure:"SESSION_STORE"` // "memory" or "redis"
	SessionTTLMin int    `mapstructure:"SESSION_TTL_MIN"`

	// Dispatch and driver liveness.
	DriverInactiveAfterMin int `mapstructure:"DRIVER_INACTIVE_AFTER_MIN"`
	SweepIntervalSec       int `mapstructure:"SWEEP_INTERVAL_SEC"`
	DispatchRetryDelaySec  int `mapstructure:"DISPATCH_RETRY_DELAY_SEC"`

	// External API keys.
	GoogleMapsAPIKey string `mapstructure:"GOOGLE_MAPS_API_KEY"`
	GeminiAPIKey     string `mapstructure:"GEMINI_API_KEY"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_DISPATCH_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("NLU_PROVIDER", "rules")
	viper.SetDefault("NLU_TIMEOUT_MS", 4000)
	viper.SetDefault("SESSION_STORE", "memory")
	viper.SetDefault("SESSION_TTL_MIN", 30)
	viper.SetDefault("DRIVER_INACTIVE_AFTER_MIN", 2)
	viper.SetDefault("SWEEP_INTERVAL_SEC", 30)
	viper.SetDefault("DISPATCH_RETRY_DELAY_SEC", 60)
	viper.SetDefault("GOOGLE_MAPS_API_KEY", "")
	viper.SetDefault("GEMINI_API_KEY", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
