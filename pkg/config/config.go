package config

import (
	"fmt"
	"time"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Anomaly   AnomalyConfig   `mapstructure:"anomaly"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Events    EventsConfig    `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver           string        `mapstructure:"driver"`
	Path             string        `mapstructure:"path"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Name             string        `mapstructure:"name"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	MaxConnections   int           `mapstructure:"max_connections"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout"`
	MigrationTimeout time.Duration `mapstructure:"migration_timeout"`
}

func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

type StorageConfig struct {
	Dir          string `mapstructure:"dir"`
	HourlyFile   string `mapstructure:"hourly_file"`
	DailyFile    string `mapstructure:"daily_file"`
	DetailedFile string `mapstructure:"detailed_file"`
}

type AnomalyConfig struct {
	DeviationThreshold float64 `mapstructure:"deviation_threshold"`
	MediumCutoffPct    float64 `mapstructure:"medium_cutoff_pct"`
	HighCutoffPct      float64 `mapstructure:"high_cutoff_pct"`
}

type ForecastConfig struct {
	Model             string               `mapstructure:"model"`
	Horizon           int                  `mapstructure:"horizon"`
	SummaryWindow     int                  `mapstructure:"summary_window"`
	RollingWindow     int                  `mapstructure:"rolling_window"`
	MinObservations   int                  `mapstructure:"min_observations"`
	WeeklySeasonality bool                 `mapstructure:"weekly_seasonality"`
	DailySeasonality  bool                 `mapstructure:"daily_seasonality"`
	FitTimeout        time.Duration        `mapstructure:"fit_timeout"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SimulatorConfig struct {
	Services             []string `mapstructure:"services"`
	BaselineMin          float64  `mapstructure:"baseline_min"`
	BaselineMax          float64  `mapstructure:"baseline_max"`
	SpikeMin             float64  `mapstructure:"spike_min"`
	SpikeMax             float64  `mapstructure:"spike_max"`
	NoiseRatio           float64  `mapstructure:"noise_ratio"`
	SpontaneousSpikeRate float64  `mapstructure:"spontaneous_spike_rate"`
	// LiveSchedule is a cron spec for automatic live hours; empty disables it.
	LiveSchedule string `mapstructure:"live_schedule"`
	Seed         int64  `mapstructure:"seed"`
}

type NotifyConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUsername string        `mapstructure:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password"`
	From         string        `mapstructure:"from"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// RetryAttempts and RetryDelay apply per alert; the breaker spans alerts.
	RetryAttempts  int                  `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration        `mapstructure:"retry_delay"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type APIConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTDuration    time.Duration `mapstructure:"jwt_duration"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DefaultLimit   int           `mapstructure:"default_limit"`
	MaxLimit       int           `mapstructure:"max_limit"`
	Swagger        bool          `mapstructure:"swagger"`
	CORS           CORSConfig    `mapstructure:"cors"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
