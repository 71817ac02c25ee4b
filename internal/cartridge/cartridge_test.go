package cartridge

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoadFromReader_ValidROM_Succeeds(t *testing.T) {
	data, err := NewTestROMBuilder().
		WithPRGSize(1).
		WithCHRSize(1).
		WithResetVector(0x8000).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if len(cart.prgROM) != 16384 {
		t.Errorf("prgROM size = %d, want 16384", len(cart.prgROM))
	}
	if len(cart.chrROM) != 8192 {
		t.Errorf("chrROM size = %d, want 8192", len(cart.chrROM))
	}
}

func TestLoadFromReader_InvalidMagic_Fails(t *testing.T) {
	data, _ := NewTestROMBuilder().Build()
	data[0] = 'X'

	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for corrupted magic number, got nil")
	}
}

func TestLoadFromReader_ZeroPRGSize_Fails(t *testing.T) {
	data, _ := NewTestROMBuilder().WithPRGSize(1).Build()
	data[4] = 0 // overwrite header PRG size after building a valid ROM

	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for zero PRG ROM size, got nil")
	}
}

func TestLoadFromReader_TruncatedPRGData_Fails(t *testing.T) {
	data, _ := NewTestROMBuilder().WithPRGSize(2).WithCHRSize(1).Build()
	truncated := data[:len(data)-20000] // cut into the PRG payload

	if _, err := LoadFromReader(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error for truncated PRG data, got nil")
	}
}

func TestLoadFromReader_TruncatedCHRData_Fails(t *testing.T) {
	data, _ := NewTestROMBuilder().WithPRGSize(1).WithCHRSize(2).Build()
	truncated := data[:len(data)-100]

	if _, err := LoadFromReader(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error for truncated CHR data, got nil")
	}
}

func TestLoadFromReader_MapperID_ExtractedFromHeader(t *testing.T) {
	data, _ := NewTestROMBuilder().WithMapper(0x00).Build()
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cart.mapperID != 0 {
		t.Errorf("mapperID = %d, want 0", cart.mapperID)
	}
}

func TestLoadFromReader_UnsupportedMapper_Fails(t *testing.T) {
	data, _ := NewTestROMBuilder().WithMapper(1).Build()

	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for unsupported mapper, got nil")
	} else if !strings.Contains(err.Error(), "unsupported mapper") {
		t.Errorf("error = %v, want it to mention the unsupported mapper", err)
	}
}

func TestLoadFromReader_MirroringModes(t *testing.T) {
	tests := []struct {
		name      string
		mirroring MirrorMode
		want      MirrorMode
	}{
		{"horizontal", MirrorHorizontal, MirrorHorizontal},
		{"vertical", MirrorVertical, MirrorVertical},
		{"four-screen", MirrorFourScreen, MirrorFourScreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := NewTestROMBuilder().WithMirroring(tt.mirroring).Build()
			cart, err := LoadFromReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("LoadFromReader() error = %v", err)
			}
			if got := cart.GetMirrorMode(); got != tt.want {
				t.Errorf("GetMirrorMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFromReader_Battery_ShouldMarkHasBattery(t *testing.T) {
	data, _ := NewTestROMBuilder().WithBattery().Build()
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if !cart.hasBattery {
		t.Error("hasBattery = false, want true")
	}
}

func TestLoadFromReader_Trainer_ShouldBeSkippedNotLoadedAsPRG(t *testing.T) {
	trainer := bytes.Repeat([]byte{0xCC}, 512)
	data, _ := NewTestROMBuilder().
		WithTrainer(trainer).
		WithInstructions([]uint8{0xEA}). // NOP at PRG ROM start
		Build()

	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cart.prgROM[0] != 0xEA {
		t.Errorf("prgROM[0] = 0x%02X, want 0xEA (trainer bytes must not leak into PRG ROM)", cart.prgROM[0])
	}
}

func TestLoadFromReader_ZeroCHRSize_AllocatesCHRRAM(t *testing.T) {
	data, _ := NewTestROMBuilder().WithCHRRAM().Build()
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if !cart.hasCHRRAM {
		t.Error("hasCHRRAM = false, want true for a zero CHR ROM size header")
	}
	if len(cart.chrROM) != 8192 {
		t.Errorf("chrROM size = %d, want 8192", len(cart.chrROM))
	}
}

func TestLoadFromFile_NonexistentFile_Fails(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/to/rom.nes"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestCartridge_PRGAndCHRAccess_DelegatesToMapper(t *testing.T) {
	cart, err := NewTestROMBuilder().
		WithInstructions([]uint8{0x42}).
		WithCHRData([]uint8{0x99}).
		BuildCartridge()
	if err != nil {
		t.Fatalf("BuildCartridge() error = %v", err)
	}

	if got := cart.ReadPRG(0x8000); got != 0x42 {
		t.Errorf("ReadPRG(0x8000) = 0x%02X, want 0x42", got)
	}
	if got := cart.ReadCHR(0x0000); got != 0x99 {
		t.Errorf("ReadCHR(0x0000) = 0x%02X, want 0x99", got)
	}

	cart.WritePRG(0x6000, 0x7A)
	if got := cart.ReadPRG(0x6000); got != 0x7A {
		t.Errorf("SRAM round trip: ReadPRG(0x6000) = 0x%02X, want 0x7A", got)
	}
}
