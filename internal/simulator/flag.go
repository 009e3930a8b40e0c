package simulator

import (
	"sync"
	"time"
)

// AnomalyFlag switches spike injection for live hours on and off.
type AnomalyFlag struct {
	mu       sync.RWMutex
	active   bool
	since    time.Time
	onChange []func(active bool)
}

func NewAnomalyFlag() *AnomalyFlag {
	return &AnomalyFlag{}
}

// OnChange registers fn to run after every transition.
func (f *AnomalyFlag) OnChange(fn func(active bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = append(f.onChange, fn)
}

// Activate turns injection on and reports whether the state changed.
func (f *AnomalyFlag) Activate() bool {
	return f.set(true)
}

// Deactivate turns injection off and reports whether the state changed.
func (f *AnomalyFlag) Deactivate() bool {
	return f.set(false)
}

func (f *AnomalyFlag) set(active bool) bool {
	f.mu.Lock()
	if f.active == active {
		f.mu.Unlock()
		return false
	}
	f.active = active
	f.since = time.Now()
	hooks := append([]func(bool){}, f.onChange...)
	f.mu.Unlock()

	for _, fn := range hooks {
		fn(active)
	}
	return true
}

func (f *AnomalyFlag) Active() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// Since is when the flag last changed; zero if it never did.
func (f *AnomalyFlag) Since() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.since
}
