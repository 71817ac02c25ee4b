package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// minimalINES builds a tiny valid iNES image: one 16KB PRG bank filled with
// NOPs and a reset vector pointing at the start of PRG, no CHR.
func minimalINES() []byte {
	header := []byte{'N', 'E', 'S', 0x1A, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	prg := bytes.Repeat([]byte{0xEA}, 16*1024) // NOP
	prg[0x3FFC] = 0x00                          // reset vector low -> $8000
	prg[0x3FFD] = 0x80                          // reset vector high
	return append(header, prg...)
}

func TestNewApplicationHeadless(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gones.json")
	a, err := New(cfgPath, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Cleanup()

	if a.GetBus() == nil {
		t.Fatal("expected a non-nil bus")
	}
}

func TestRunHeadlessAdvancesFrames(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gones.json")
	a, err := New(cfgPath, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Cleanup()

	romPath := filepath.Join(t.TempDir(), "test.nes")
	if err := os.WriteFile(romPath, minimalINES(), 0644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	if err := a.LoadROM(romPath); err != nil {
		t.Fatalf("LoadROM() error = %v", err)
	}

	if err := a.RunHeadless(3); err != nil {
		t.Fatalf("RunHeadless() error = %v", err)
	}
	if a.emulator.FrameCount() != 3 {
		t.Errorf("frame count = %d, want 3", a.emulator.FrameCount())
	}
}

func TestRunHeadlessWithoutROMErrors(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "gones.json")
	a, err := New(cfgPath, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Cleanup()

	if err := a.RunHeadless(1); err == nil {
		t.Error("expected an error when no ROM is loaded")
	}
}
