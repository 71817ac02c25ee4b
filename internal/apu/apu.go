// Package apu implements the register-level surface of the NES Audio
// Processing Unit. Audio synthesis is out of scope for this emulator;
// what's kept is the part of the 2A03 that software actually depends on
// even without sound: length counters and the frame-sequencer IRQ, so
// that a ROM polling $4015 or relying on the frame IRQ still sees
// hardware-correct behavior.
package apu

// APU tracks the register-visible state of the five NES audio channels
// without generating any waveform.
type APU struct {
	length [5]uint8 // pulse1, pulse2, triangle, noise; slot 4 stays 0 (DMC uses dmcBytesRemaining)
	halt   [5]bool  // length counter halt / envelope loop per channel

	channelEnable [5]bool

	dmcBytesRemaining uint16
	dmcIRQEnable      bool
	dmcIRQFlag        bool

	frameCounter   uint16
	frameMode      bool // false = 4-step, true = 5-step
	frameIRQEnable bool
	frameIRQFlag   bool

	sampleRate int
	cycles     uint64
}

// lengthTable maps a 5-bit length-counter load value to its duration in
// frame-sequencer half-frames.
var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6,
	160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22,
	192, 24, 72, 26, 16, 28, 32, 30,
}

// New creates a new APU instance.
func New() *APU {
	return &APU{
		sampleRate:     44100,
		frameIRQEnable: true,
	}
}

// Reset resets the APU to its initial state.
func (a *APU) Reset() {
	a.length = [5]uint8{}
	a.halt = [5]bool{}
	a.channelEnable = [5]bool{}
	a.dmcBytesRemaining = 0
	a.dmcIRQEnable = false
	a.dmcIRQFlag = false
	a.frameCounter = 0
	a.frameMode = false
	a.frameIRQEnable = true
	a.frameIRQFlag = false
	a.cycles = 0
}

// Step advances the frame sequencer by one CPU cycle, clocking length
// counters and raising the frame IRQ at the documented sequencer points.
func (a *APU) Step() {
	a.cycles++
	a.frameCounter++

	if a.frameMode {
		switch a.frameCounter {
		case 7457, 22371:
		case 14913:
			a.clockLength()
		case 37281:
			a.clockLength()
			a.frameCounter = 0
		}
		return
	}

	switch a.frameCounter {
	case 7457, 22371:
	case 14913:
		a.clockLength()
	case 29829:
		a.clockLength()
	case 29830:
		if a.frameIRQEnable {
			a.frameIRQFlag = true
		}
		a.frameCounter = 0
	}
}

// clockLength decrements every non-halted, non-zero length counter.
func (a *APU) clockLength() {
	for i := range a.length {
		if !a.halt[i] && a.length[i] > 0 {
			a.length[i]--
		}
	}
}

// WriteRegister writes to an APU register, tracking only the state that
// feeds back into ReadStatus: length-counter loads, halt flags, channel
// enables, and frame-sequencer configuration.
func (a *APU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x4000, 0x4004: // pulse control: bit 5 is length counter halt
		idx := 0
		if address == 0x4004 {
			idx = 1
		}
		a.halt[idx] = value&0x20 != 0
	case 0x4003: // pulse 1 length load
		a.writeLengthLoad(0, value)
	case 0x4007: // pulse 2 length load
		a.writeLengthLoad(1, value)
	case 0x4008: // triangle control: bit 7 is length counter halt
		a.halt[2] = value&0x80 != 0
	case 0x400B: // triangle length load
		a.writeLengthLoad(2, value)
	case 0x400C: // noise control: bit 5 is length counter halt
		a.halt[3] = value&0x20 != 0
	case 0x400F: // noise length load
		a.writeLengthLoad(3, value)
	case 0x4010: // DMC control
		a.dmcIRQEnable = value&0x80 != 0
		if !a.dmcIRQEnable {
			a.dmcIRQFlag = false
		}
	case 0x4012, 0x4013: // DMC sample address/length, reloaded on next $4015 enable
	case 0x4015: // channel enable
		a.writeChannelEnable(value)
	case 0x4017: // frame counter mode
		a.frameMode = value&0x80 != 0
		a.frameIRQEnable = value&0x40 == 0
		if !a.frameIRQEnable {
			a.frameIRQFlag = false
		}
		a.frameCounter = 0
	}
}

func (a *APU) writeLengthLoad(channel int, value uint8) {
	if !a.channelEnable[channel] {
		return
	}
	a.length[channel] = lengthTable[value>>3]
}

func (a *APU) writeChannelEnable(value uint8) {
	for i := 0; i < 4; i++ {
		a.channelEnable[i] = value&(1<<uint(i)) != 0
		if !a.channelEnable[i] {
			a.length[i] = 0
		}
	}
	a.channelEnable[4] = value&0x10 != 0
	if a.channelEnable[4] {
		if a.dmcBytesRemaining == 0 {
			a.dmcBytesRemaining = 1
		}
	} else {
		a.dmcBytesRemaining = 0
	}
	a.dmcIRQFlag = false
}

// ReadStatus reads $4015: channel active flags plus frame/DMC IRQ flags.
// Reading clears the frame IRQ flag, matching real hardware.
func (a *APU) ReadStatus() uint8 {
	var status uint8
	for i := 0; i < 4; i++ {
		if a.length[i] > 0 {
			status |= 1 << uint(i)
		}
	}
	if a.dmcBytesRemaining > 0 {
		status |= 0x10
	}
	if a.frameIRQFlag {
		status |= 0x40
	}
	if a.dmcIRQFlag {
		status |= 0x80
	}

	a.frameIRQFlag = false
	return status
}

// GetSamples returns and clears the audio sample buffer. No synthesis
// runs, so this always returns empty; the method exists so callers that
// expect an audio-capable APU interface still compile against it.
func (a *APU) GetSamples() []float32 {
	return nil
}

// SetSampleRate sets the target audio sample rate.
func (a *APU) SetSampleRate(rate int) {
	a.sampleRate = rate
}

// GetSampleRate returns the target audio sample rate.
func (a *APU) GetSampleRate() int {
	return a.sampleRate
}
