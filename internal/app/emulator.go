// Package app wires the bus, graphics backend, and configuration together
// into a runnable command-line emulator.
package app

import (
	"time"

	"gones/internal/bus"
)

// nesFrameInterval is the NTSC NES's native frame period (60.0988 Hz,
// approximated as 60 Hz).
const nesFrameInterval = time.Second / 60

// Emulator drives the bus one frame at a time and paces real-time playback
// to roughly 60 FPS when a wall clock is in play (windowed mode). Headless
// runs (see Application.RunHeadless) call Step directly without pacing.
type Emulator struct {
	bus *bus.Bus

	running     bool
	frameCount  uint64
	lastStepAt  time.Time
}

// NewEmulator creates an emulator driving the given bus.
func NewEmulator(b *bus.Bus) *Emulator {
	return &Emulator{bus: b}
}

// Start marks the emulator as running and resets pacing state.
func (e *Emulator) Start() {
	e.running = true
	e.lastStepAt = time.Now()
}

// Stop marks the emulator as not running.
func (e *Emulator) Stop() {
	e.running = false
}

// Step advances the bus by exactly one frame, unconditionally.
func (e *Emulator) Step() {
	e.bus.RunFrame()
	e.frameCount++
}

// Update advances the emulator by one frame if it is running, pacing to
// roughly 60 FPS by sleeping off any remaining budget. Intended for the
// windowed/interactive main loop, called once per host frame tick.
func (e *Emulator) Update() {
	if !e.running {
		return
	}

	e.Step()

	elapsed := time.Since(e.lastStepAt)
	if elapsed < nesFrameInterval {
		time.Sleep(nesFrameInterval - elapsed)
	}
	e.lastStepAt = time.Now()
}

// FrameCount returns the number of frames stepped by this emulator.
func (e *Emulator) FrameCount() uint64 {
	return e.frameCount
}

// IsRunning reports whether the emulator is currently running.
func (e *Emulator) IsRunning() bool {
	return e.running
}
