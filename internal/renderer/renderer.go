// Package renderer drives the coarse per-scanline rendering pipeline that
// ties the CPU and PPU together into whole frames. Rather than stepping
// the PPU once per dot at 3x CPU speed, it advances in large, fixed
// batches: a vblank period, then one call per visible scanline.
package renderer

import (
	"gones/internal/cpu"
	"gones/internal/ppu"
)

// vblankCPUCycles approximates the CPU cycles spent across the 20
// vblank scanlines (241-260) at roughly 113.67 CPU cycles per scanline
// (341 PPU cycles / 3).
const vblankCPUCycles = 2273

// scanlineCPUCycles approximates the CPU cycles spent per visible
// scanline (341 PPU cycles / 3).
const scanlineCPUCycles = 113

// Renderer orchestrates one frame at a time: raise vblank and let the CPU
// run its NMI handler, lower vblank, then rasterize each of the 240
// visible scanlines while stepping the CPU alongside it.
type Renderer struct {
	CPU *cpu.CPU
	PPU *ppu.PPU

	// OnCPUCycles, if set, is invoked after every batch of CPU cycles the
	// renderer retires, so the caller can keep other CPU-clocked
	// components (the APU) in step without the renderer needing to know
	// about them directly.
	OnCPUCycles func(cycles uint64)
}

// New creates a Renderer wired to the given CPU and PPU.
func New(c *cpu.CPU, p *ppu.PPU) *Renderer {
	return &Renderer{CPU: c, PPU: p}
}

// RunFrame advances the system by exactly one frame: vblank, then 240
// rasterized scanlines.
func (r *Renderer) RunFrame() {
	r.PPU.BeginVBlank()
	r.stepCPU(vblankCPUCycles)

	r.PPU.EndVBlank()

	for scanline := 0; scanline < 240; scanline++ {
		r.PPU.RenderScanline(scanline)
		r.stepCPU(scanlineCPUCycles)
	}
}

// stepCPU runs CPU instructions until at least target cycles have been
// retired, reporting the batch to OnCPUCycles and the PPU's cycle
// counter.
func (r *Renderer) stepCPU(target uint64) {
	var consumed uint64
	for consumed < target {
		consumed += r.CPU.Step()
	}
	r.PPU.AddCycles(consumed * 3)
	if r.OnCPUCycles != nil {
		r.OnCPUCycles(consumed)
	}
}
