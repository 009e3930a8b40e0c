package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "CLOUDPULSE"

// Load reads an optional .env file, the YAML config and CLOUDPULSE_*
// environment overrides, in that order of precedence (env wins).
func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/cloudpulse")
	}

	// Environment variable settings
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "cloudpulse")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/cloudpulse.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cloudpulse")
	v.SetDefault("database.user", "admin")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migration_timeout", "30s")

	// Storage defaults
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.hourly_file", "billing_hourly.csv")
	v.SetDefault("storage.daily_file", "billing_daily.csv")
	v.SetDefault("storage.detailed_file", "billing_detailed.csv")

	// Anomaly defaults
	v.SetDefault("anomaly.deviation_threshold", 0.40)
	v.SetDefault("anomaly.medium_cutoff_pct", 70.0)
	v.SetDefault("anomaly.high_cutoff_pct", 120.0)

	// Forecast defaults
	v.SetDefault("forecast.model", "additive")
	v.SetDefault("forecast.horizon", 30)
	v.SetDefault("forecast.summary_window", 30)
	v.SetDefault("forecast.rolling_window", 7)
	v.SetDefault("forecast.min_observations", 14)
	v.SetDefault("forecast.weekly_seasonality", true)
	v.SetDefault("forecast.daily_seasonality", true)
	v.SetDefault("forecast.fit_timeout", "30s")
	v.SetDefault("forecast.circuit_breaker.max_failures", 3)
	v.SetDefault("forecast.circuit_breaker.timeout", "5m")

	// Simulator defaults
	v.SetDefault("simulator.services", []string{"EC2", "RDS", "S3", "CloudFront"})
	v.SetDefault("simulator.baseline_min", 8.0)
	v.SetDefault("simulator.baseline_max", 25.0)
	v.SetDefault("simulator.spike_min", 3.0)
	v.SetDefault("simulator.spike_max", 5.0)
	v.SetDefault("simulator.noise_ratio", 0.08)
	v.SetDefault("simulator.spontaneous_spike_rate", 0.0)
	v.SetDefault("simulator.live_schedule", "")
	v.SetDefault("simulator.seed", 42)

	// Notify defaults
	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.from", "alerts@cloudpulse.local")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.retry_attempts", 3)
	v.SetDefault("notify.retry_delay", "2s")
	v.SetDefault("notify.circuit_breaker.max_failures", 5)
	v.SetDefault("notify.circuit_breaker.timeout", "10m")

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("api.jwt_secret", "change-me-in-production")
	v.SetDefault("api.jwt_duration", "24h")
	v.SetDefault("api.cookie_name", "auth_token")
	v.SetDefault("api.cookie_secure", true)
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.default_limit", 50)
	v.SetDefault("api.max_limit", 500)
	v.SetDefault("api.swagger", true)

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.max_message_size", 512)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.broadcast_buffer", 256)
	v.SetDefault("websocket.client_buffer", 256)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Events defaults
	v.SetDefault("events.buffer_size", 100)
}
