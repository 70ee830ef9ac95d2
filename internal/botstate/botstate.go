// Package botstate tracks the live loop's running/paused status and a
// heartbeat for external liveness checks (spec §4.K).
//
// Adapted from a double-checked-locking singleton into a regular
// struct owned by the live loop's entrypoint; the {running,
// manual_override, last_command, last_heartbeat} fields and the
// start-paused default are kept as-is.
package botstate

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time read of the bot's state.
type Snapshot struct {
	Running        bool
	ManualOverride bool
	LastCommand    string
	LastHeartbeat  time.Time
}

// State is a thread-safe running/paused controller. The zero value is
// ready to use and starts paused.
type State struct {
	mu             sync.Mutex
	running        bool
	manualOverride bool
	lastCommand    string
	lastHeartbeat  time.Time
}

// New creates a bot state controller, starting paused.
func New() *State {
	return &State{}
}

// Start marks the bot running and records the command.
func (s *State) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.manualOverride = true
	s.lastCommand = "start"
	s.lastHeartbeat = now
}

// Stop marks the bot paused and records the command.
func (s *State) Stop(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.manualOverride = true
	s.lastCommand = "stop"
	s.lastHeartbeat = now
}

// UpdateHeartbeat records a liveness timestamp without changing run state.
func (s *State) UpdateHeartbeat(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = now
}

// IsRunning reports whether the bot is currently running.
func (s *State) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the full state.
func (s *State) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Running:        s.running,
		ManualOverride: s.manualOverride,
		LastCommand:    s.lastCommand,
		LastHeartbeat:  s.lastHeartbeat,
	}
}
