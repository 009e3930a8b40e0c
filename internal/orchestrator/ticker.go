package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/OldStager01/cloudpulse/internal/logger"
)

// Ticker is the work a LiveTicker runs on every schedule firing.
type Ticker interface {
	Tick(ctx context.Context) error
}

// LiveTicker appends live hours on a cron schedule. An empty schedule
// yields a ticker that never fires.
type LiveTicker struct {
	schedule string
	target   Ticker
	cron     *cron.Cron
	timeout  time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	runs    int
	mu      sync.Mutex
}

func NewLiveTicker(schedule string, target Ticker) (*LiveTicker, error) {
	t := &LiveTicker{
		schedule: schedule,
		target:   target,
		timeout:  time.Minute,
	}
	if schedule == "" {
		return t, nil
	}

	t.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := t.cron.AddFunc(schedule, t.run); err != nil {
		return nil, fmt.Errorf("invalid live schedule %q: %w", schedule, err)
	}
	return t, nil
}

func (t *LiveTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.cron == nil {
		return
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.cron.Start()
	t.running = true

	logger.WithField("schedule", t.schedule).Info("Live ticker started")
}

func (t *LiveTicker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.cancel()
	t.mu.Unlock()

	// wait for an in-flight tick
	<-t.cron.Stop().Done()
	logger.Info("Live ticker stopped")
}

func (t *LiveTicker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Runs reports how many ticks have completed.
func (t *LiveTicker) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func (t *LiveTicker) run() {
	t.mu.Lock()
	parent := t.ctx
	t.mu.Unlock()
	if parent == nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	if err := t.target.Tick(ctx); err != nil {
		logger.WithError(err).Error("Live tick failed")
	}

	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
}
