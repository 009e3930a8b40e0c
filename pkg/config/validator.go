package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Database validation
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, errors.New("database.port must be between 1 and 65535"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required"))
		}
	default:
		errs = append(errs, errors.New("database.driver must be one of: postgres, sqlite"))
	}
	if c.Database.MaxConnections <= 0 {
		errs = append(errs, errors.New("database.max_connections must be positive"))
	}

	// Storage validation
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if c.Storage.HourlyFile == "" || c.Storage.DailyFile == "" {
		errs = append(errs, errors.New("storage.hourly_file and storage.daily_file are required"))
	}

	// Anomaly validation
	if c.Anomaly.DeviationThreshold <= 0 {
		errs = append(errs, errors.New("anomaly.deviation_threshold must be positive"))
	}
	if c.Anomaly.HighCutoffPct <= c.Anomaly.MediumCutoffPct {
		errs = append(errs, errors.New("anomaly.high_cutoff_pct must be greater than medium_cutoff_pct"))
	}

	// Forecast validation
	if c.Forecast.Horizon <= 0 {
		errs = append(errs, errors.New("forecast.horizon must be positive"))
	}
	if c.Forecast.RollingWindow <= 0 {
		errs = append(errs, errors.New("forecast.rolling_window must be positive"))
	}
	if c.Forecast.FitTimeout <= 0 {
		errs = append(errs, errors.New("forecast.fit_timeout must be positive"))
	}

	// Simulator validation
	if c.Simulator.BaselineMax <= c.Simulator.BaselineMin {
		errs = append(errs, errors.New("simulator.baseline_max must be greater than baseline_min"))
	}
	if c.Simulator.SpikeMax < c.Simulator.SpikeMin || c.Simulator.SpikeMin < 1 {
		errs = append(errs, errors.New("simulator.spike_min must be >= 1 and <= spike_max"))
	}
	if c.Simulator.SpontaneousSpikeRate < 0 || c.Simulator.SpontaneousSpikeRate > 1 {
		errs = append(errs, errors.New("simulator.spontaneous_spike_rate must be between 0 and 1"))
	}
	if c.Simulator.LiveSchedule != "" {
		if _, err := cron.ParseStandard(c.Simulator.LiveSchedule); err != nil {
			errs = append(errs, fmt.Errorf("simulator.live_schedule is invalid: %w", err))
		}
	}

	// Notify validation
	if c.Notify.SMTPHost != "" && c.Notify.From == "" {
		errs = append(errs, errors.New("notify.from is required when notify.smtp_host is set"))
	}
	if c.Notify.RetryAttempts < 0 || c.Notify.RetryDelay < 0 {
		errs = append(errs, errors.New("notify.retry_attempts and notify.retry_delay must not be negative"))
	}
	if c.Notify.CircuitBreaker.MaxFailures < 0 || c.Forecast.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, errors.New("circuit_breaker.max_failures must not be negative"))
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.App.Mode == "production" && c.API.JWTSecret == "change-me-in-production" {
		errs = append(errs, errors.New("api.jwt_secret must be changed in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
