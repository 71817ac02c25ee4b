// Package bus implements the system bus for communication between NES components.
package bus

import (
	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
	"gones/internal/renderer"
)

// Bus connects all NES components together.
type Bus struct {
	CPU      *cpu.CPU
	PPU      *ppu.PPU
	APU      *apu.APU
	Memory   *memory.Memory
	Input    *input.InputState
	Renderer *renderer.Renderer

	frameCount uint64
	cpuCycles  uint64

	dmaInProgress bool

	executionLog   []BusExecutionEvent
	loggingEnabled bool
}

// New creates a new system bus with all components.
func New() *Bus {
	bus := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}

	bus.Memory = memory.New(bus.PPU, bus.APU, nil) // cartridge set later
	bus.Memory.SetInputSystem(bus.Input)
	bus.CPU = cpu.New(bus.Memory)
	bus.Renderer = renderer.New(bus.CPU, bus.PPU)
	bus.Renderer.OnCPUCycles = bus.stepAPU

	bus.PPU.SetNMILineCallback(bus.CPU.SetNMI)
	bus.Memory.SetDMACallback(bus.TriggerOAMDMA)

	bus.Reset()

	return bus
}

// Reset resets all components to their initial state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.frameCount = 0
	b.cpuCycles = 0
	b.dmaInProgress = false

	b.PPU.SetFrameCount(0)

	b.executionLog = make([]BusExecutionEvent, 0)
	b.loggingEnabled = false
}

// stepAPU advances the APU by the given number of CPU cycles, keeping it
// in lockstep with whatever is driving the CPU (Step or the renderer).
func (b *Bus) stepAPU(cycles uint64) {
	for i := uint64(0); i < cycles; i++ {
		b.APU.Step()
	}
}

// Step executes a single CPU instruction, stepping the APU in lockstep.
// It does not advance the PPU; PPU rendering is driven frame-at-a-time by
// Renderer.RunFrame.
func (b *Bus) Step() {
	prePC := b.CPU.PC
	var preOpcode uint8
	if b.Memory != nil {
		preOpcode = b.Memory.Read(prePC)
	}

	cycles := b.CPU.Step()
	b.stepAPU(cycles)
	b.cpuCycles += cycles

	if b.loggingEnabled {
		b.executionLog = append(b.executionLog, BusExecutionEvent{
			StepNumber:    len(b.executionLog) + 1,
			CPUCycles:     b.cpuCycles,
			PCValue:       prePC,
			InstructionOp: preOpcode,
		})
	}
}

// RunFrame renders exactly one frame using the coarse per-scanline
// pipeline and keeps the bus's own frame counter in sync.
func (b *Bus) RunFrame() {
	b.Renderer.RunFrame()
	b.frameCount = b.PPU.GetFrameCount()
}

// TriggerOAMDMA initiates an OAM DMA transfer: 256 bytes copied from
// sourcePage*0x100 into OAM through the $2004 port, so the transfer
// starts at the current OAMADDR and wraps around it rather than always
// landing at OAM index 0.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}
	b.dmaInProgress = true
	defer func() { b.dmaInProgress = false }()

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteRegister(0x2004, data)
	}
}

// LoadCartridge loads a cartridge into the system, rebuilding the memory
// map and CPU/PPU wiring around it.
func (b *Bus) LoadCartridge(cart memory.CartridgeInterface) {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)
	b.Renderer = renderer.New(b.CPU, b.PPU)
	b.Renderer.OnCPUCycles = b.stepAPU

	mirrorMode := memory.MirrorHorizontal
	if c, ok := cart.(*cartridge.Cartridge); ok {
		switch c.GetMirrorMode() {
		case cartridge.MirrorVertical:
			mirrorMode = memory.MirrorVertical
		case cartridge.MirrorSingleScreen0:
			mirrorMode = memory.MirrorSingleScreen0
		case cartridge.MirrorSingleScreen1:
			mirrorMode = memory.MirrorSingleScreen1
		case cartridge.MirrorFourScreen:
			mirrorMode = memory.MirrorFourScreen
		}
	}

	ppuMemory := memory.NewPPUMemory(cart, mirrorMode)
	b.PPU.SetMemory(ppuMemory)

	b.PPU.SetNMILineCallback(b.CPU.SetNMI)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU.Reset()
}

// Run runs the emulator for a specified number of frames.
func (b *Bus) Run(frames int) {
	for i := 0; i < frames; i++ {
		b.RunFrame()
	}
}

// GetFrameBuffer returns the current PPU frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

// GetAudioSamples returns the current audio samples from the APU.
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate sets the target audio sample rate for the APU.
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

// GetCycleCount returns the current CPU cycle count.
func (b *Bus) GetCycleCount() uint64 {
	return b.cpuCycles
}

// GetFrameCount returns the current frame count.
func (b *Bus) GetFrameCount() uint64 {
	return b.frameCount
}

// IsDMAInProgress returns whether DMA is currently in progress.
func (b *Bus) IsDMAInProgress() bool {
	return b.dmaInProgress
}

// SetControllerButton sets the state of a single controller button.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all button states for a controller at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// EnableInputDebug enables debug logging for the input system.
func (b *Bus) EnableInputDebug(enable bool) {
	b.Input.EnableDebug(enable)
}

// GetInputState returns the input state for direct access.
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// GetExecutionLog returns the execution log recorded by Step, for testing.
func (b *Bus) GetExecutionLog() []BusExecutionEvent {
	return b.executionLog
}

// EnableExecutionLogging enables execution logging for testing.
func (b *Bus) EnableExecutionLogging() {
	b.loggingEnabled = true
}

// DisableExecutionLogging disables execution logging.
func (b *Bus) DisableExecutionLogging() {
	b.loggingEnabled = false
}

// ClearExecutionLog clears the execution log.
func (b *Bus) ClearExecutionLog() {
	b.executionLog = make([]BusExecutionEvent, 0)
}

// BusExecutionEvent represents a single CPU-instruction step, for testing.
type BusExecutionEvent struct {
	StepNumber    int
	CPUCycles     uint64
	PCValue       uint16
	InstructionOp uint8
}

// GetCPUState returns the current CPU state, for testing.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// CPUState represents a CPU state snapshot, for testing.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags represents CPU status flags, for testing.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetPPUState returns a PPU state snapshot, for testing.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.PPU.IsRenderingEnabled(),
	}
}

// PPUState represents a PPU state snapshot, for testing.
type PPUState struct {
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}
