package notify

import (
	"context"
	"errors"
	"time"

	"github.com/OldStager01/cloudpulse/internal/logger"
	"github.com/OldStager01/cloudpulse/internal/resilience"
	"github.com/OldStager01/cloudpulse/pkg/models"
)

// ResilientNotifier retries a delivery a few times and stops calling the
// mail server altogether while its circuit is open.
type ResilientNotifier struct {
	notifier       Notifier
	circuitBreaker *resilience.CircuitBreaker
	retryAttempts  int
	retryDelay     time.Duration
}

type ResilientConfig struct {
	Notifier      Notifier
	MaxFailures   int
	CoolDown      time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	OnStateChange func(name string, from, to resilience.State)
}

func NewResilientNotifier(cfg ResilientConfig) *ResilientNotifier {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "notifier",
		MaxFailures:   cfg.MaxFailures,
		CoolDown:      cfg.CoolDown,
		OnStateChange: cfg.OnStateChange,
	})

	return &ResilientNotifier{
		notifier:       cfg.Notifier,
		circuitBreaker: cb,
		retryAttempts:  cfg.RetryAttempts,
		retryDelay:     cfg.RetryDelay,
	}
}

func (n *ResilientNotifier) NotifyAnomalies(ctx context.Context, recipients []string, anomalies []models.Anomaly) error {
	// nothing to deliver is not a mail server failure
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	return n.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= n.retryAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := n.notifier.NotifyAnomalies(ctx, recipients, anomalies)
			if err == nil {
				return nil
			}
			if errors.Is(err, ErrNoRecipients) {
				return err
			}

			lastErr = err
			logger.WithContext(ctx).Warnf("Notification attempt %d/%d failed: %v", attempt, n.retryAttempts, err)

			if attempt < n.retryAttempts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(n.retryDelay):
				}
			}
		}
		return lastErr
	})
}

func (n *ResilientNotifier) CircuitState() resilience.State {
	return n.circuitBreaker.State()
}

func (n *ResilientNotifier) ResetCircuit() {
	n.circuitBreaker.Reset()
}
