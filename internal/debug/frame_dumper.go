// Package debug provides frame buffer inspection utilities used by the CLI's
// debug flags: PNG frame dumps for visually inspecting what the PPU produced.
package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
)

const (
	frameWidth  = 256
	frameHeight = 240
)

// FrameDumper writes PPU frame buffers to disk as PNG images, for the CLI's
// --dump-frames debug flag.
type FrameDumper struct {
	outputDir    string
	enabled      bool
	dumpCount    int
	maxDumps     int
	dumpInterval int
}

// NewFrameDumper creates a new frame dumper writing into outputDir.
func NewFrameDumper(outputDir string) *FrameDumper {
	return &FrameDumper{
		outputDir:    outputDir,
		maxDumps:     10,
		dumpInterval: 1,
	}
}

// Enable activates frame dumping, creating the output directory if needed.
func (fd *FrameDumper) Enable() error {
	if err := os.MkdirAll(fd.outputDir, 0755); err != nil {
		return fmt.Errorf("debug: create frame dump directory: %w", err)
	}
	fd.enabled = true
	log.Printf("[DEBUG] frame dumping enabled, writing to %s", fd.outputDir)
	return nil
}

// Disable deactivates frame dumping.
func (fd *FrameDumper) Disable() {
	fd.enabled = false
}

// SetMaxDumps caps the number of frames this dumper will ever write.
func (fd *FrameDumper) SetMaxDumps(max int) {
	fd.maxDumps = max
}

// SetDumpInterval dumps every N-th frame passed to DumpPNG.
func (fd *FrameDumper) SetDumpInterval(interval int) {
	if interval < 1 {
		interval = 1
	}
	fd.dumpInterval = interval
}

// DumpPNG writes frameBuffer (a 256x240 RGB frame, one 0x00RRGGBB word per
// pixel) to a PNG file named after frameNum. It is a no-op when dumping is
// disabled, when frameNum falls outside the configured interval, or once
// maxDumps has been reached.
func (fd *FrameDumper) DumpPNG(frameBuffer []uint32, frameNum uint64) error {
	if !fd.enabled {
		return nil
	}
	if frameNum%uint64(fd.dumpInterval) != 0 {
		return nil
	}
	if fd.dumpCount >= fd.maxDumps {
		return nil
	}
	if len(frameBuffer) != frameWidth*frameHeight {
		return fmt.Errorf("debug: frame buffer has %d pixels, want %d", len(frameBuffer), frameWidth*frameHeight)
	}

	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			pixel := frameBuffer[y*frameWidth+x]
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(pixel >> 16),
				G: uint8(pixel >> 8),
				B: uint8(pixel),
				A: 0xFF,
			})
		}
	}

	filePath := filepath.Join(fd.outputDir, fmt.Sprintf("frame_%06d.png", frameNum))
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("debug: create frame dump file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("debug: encode frame dump: %w", err)
	}

	fd.dumpCount++
	log.Printf("[DEBUG] dumped frame %d to %s", frameNum, filePath)
	return nil
}
