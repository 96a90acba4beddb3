// Package statemanager tracks the run state of the engine's periodic
// ticks for the status API: last start, last result, run and failure
// counts per tick.
package statemanager

import (
	"sync"
	"time"
)

// TickState is a snapshot of one tick's run history.
type TickState struct {
	Name        string     `json:"name"`
	Running     bool       `json:"running"`
	Runs        int64      `json:"runs"`
	Failures    int64      `json:"failures"`
	LastStarted *time.Time `json:"last_started,omitempty"`
	LastFinish  *time.Time `json:"last_finished,omitempty"`
	LastOK      *time.Time `json:"last_ok,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Duration    string     `json:"last_duration,omitempty"`
}

// Manager is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	ticks map[string]*TickState
	order []string
}

// New returns an empty manager.
func New() *Manager {
	return &Manager{ticks: make(map[string]*TickState)}
}

// Register declares a tick before its first run so the status API shows
// it even when it has never fired.
func (m *Manager) Register(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ticks[name]; !ok {
		m.ticks[name] = &TickState{Name: name}
		m.order = append(m.order, name)
	}
}

// BeginRun marks a tick as running.
func (m *Manager) BeginRun(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tick(name)
	now := time.Now()
	t.Running = true
	t.LastStarted = &now
	t.Runs++
}

// EndRun records a tick's outcome.
func (m *Manager) EndRun(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tick(name)
	now := time.Now()
	t.Running = false
	t.LastFinish = &now
	if t.LastStarted != nil {
		t.Duration = now.Sub(*t.LastStarted).String()
	}
	if err != nil {
		t.Failures++
		t.LastError = err.Error()
	} else {
		t.LastOK = &now
		t.LastError = ""
	}
}

// Snapshot returns copies of all tick states in registration order.
func (m *Manager) Snapshot() []TickState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TickState, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, *m.ticks[name])
	}
	return out
}

// Healthy reports whether no tick's most recent run failed.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.ticks {
		if t.LastError != "" {
			return false
		}
	}
	return true
}

// tick returns the named state, registering it on first use. Callers
// hold the write lock.
func (m *Manager) tick(name string) *TickState {
	t, ok := m.ticks[name]
	if !ok {
		t = &TickState{Name: name}
		m.ticks[name] = t
		m.order = append(m.order, name)
	}
	return t
}
