// Copyright 2025 Omnilock Labs
//
// Control Surface
// Process-wide flags shared between the processor, the HTTP handlers and
// the traffic generator. Atomics only; readers never block writers.

package relayer

import (
	"sync/atomic"
	"time"
)

// Control holds the cooperative pause and simulation flags
type Control struct {
	paused             atomic.Bool
	simulationRunning  atomic.Bool
	simulationDeadline atomic.Int64 // epoch seconds, 0 = no deadline
}

// NewControl creates a control surface with everything off
func NewControl() *Control {
	return &Control{}
}

// Pause asks the processor to stop advancing messages
func (c *Control) Pause() {
	c.paused.Store(true)
}

// Resume lets the processor continue
func (c *Control) Resume() {
	c.paused.Store(false)
}

// IsPaused reports whether the processor should idle
func (c *Control) IsPaused() bool {
	return c.paused.Load()
}

// StartSimulation turns the traffic generator on with a deadline
func (c *Control) StartSimulation(duration time.Duration) {
	c.simulationDeadline.Store(time.Now().Add(duration).Unix())
	c.simulationRunning.Store(true)
}

// StopSimulation turns the traffic generator off
func (c *Control) StopSimulation() {
	c.simulationRunning.Store(false)
	c.simulationDeadline.Store(0)
}

// SimulationRunning reports whether the traffic generator should emit
func (c *Control) SimulationRunning() bool {
	return c.simulationRunning.Load()
}

// SimulationDeadline returns the epoch second the simulation auto-stops at
func (c *Control) SimulationDeadline() int64 {
	return c.simulationDeadline.Load()
}

// SetSimulationRunning sets the raw running flag (used by auto-stop)
func (c *Control) SetSimulationRunning(running bool) {
	c.simulationRunning.Store(running)
}
