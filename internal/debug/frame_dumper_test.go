package debug

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFrameDumperWritesPNGWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)
	if err := fd.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	buf := make([]uint32, frameWidth*frameHeight)
	buf[0] = 0x64B0FF

	if err := fd.DumpPNG(buf, 0); err != nil {
		t.Fatalf("DumpPNG() error = %v", err)
	}

	path := filepath.Join(dir, "frame_000000.png")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected PNG file at %s: %v", path, err)
	}
}

func TestFrameDumperDisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)

	buf := make([]uint32, frameWidth*frameHeight)
	if err := fd.DumpPNG(buf, 0); err != nil {
		t.Fatalf("DumpPNG() error = %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files written while disabled, got %d", len(entries))
	}
}

func TestFrameDumperRespectsMaxDumps(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)
	fd.SetMaxDumps(1)
	if err := fd.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	buf := make([]uint32, frameWidth*frameHeight)
	fd.DumpPNG(buf, 0)
	fd.DumpPNG(buf, 1)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected exactly 1 dump file, got %d", len(entries))
	}
}

func TestFrameDumperRejectsWrongSizedBuffer(t *testing.T) {
	dir := t.TempDir()
	fd := NewFrameDumper(dir)
	if err := fd.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	if err := fd.DumpPNG(make([]uint32, 10), 0); err == nil {
		t.Error("expected an error for a mis-sized frame buffer")
	}
}
