// Package ppu implements the Picture Processing Unit for the NES.
//
// This implementation trades per-dot cycle accuracy for a coarse,
// per-scanline batch model: a whole scanline's worth of pixels is
// rasterized at once from the current v/t/x scroll state and OAM
// contents, rather than being assembled dot-by-dot through internal
// shift registers. Register semantics ($2000-$2007), the loopy v/t/x/w
// scroll state, sprite evaluation, and sprite-0-hit detection match
// real 2C02 behavior; the fetch/shift pipeline that produces each pixel
// on real hardware does not exist here.
package ppu

import (
	"gones/internal/memory"
)

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	// PPU Registers (CPU-visible)
	ppuCtrl   uint8 // $2000 - PPUCTRL
	ppuMask   uint8 // $2001 - PPUMASK
	ppuStatus uint8 // $2002 - PPUSTATUS
	oamAddr   uint8 // $2003 - OAMADDR

	// Internal PPU scroll/address state ("loopy" registers)
	v uint16 // Current VRAM address (15 bits)
	t uint16 // Temporary VRAM address (15 bits) - address latch
	x uint8  // Fine X scroll (3 bits)
	w bool   // Write latch (toggles between first/second write)

	// PPU Memory
	memory *memory.PPUMemory

	// Rendering state
	frameCount uint64
	oddFrame   bool
	readBuffer uint8 // PPU read buffer for $2007
	inVBlank   bool

	// Sprite data
	oam            [256]uint8 // Object Attribute Memory
	secondaryOAM   [32]uint8  // Secondary OAM for current scanline
	spriteIndexes  [8]uint8   // Original sprite indices for secondary OAM entries
	spriteCount    uint8      // Number of sprites on current scanline
	sprite0Hit     bool       // Sprite 0 hit flag (internal mirror of PPUSTATUS bit 6)
	spriteOverflow bool       // Sprite overflow flag (internal mirror of PPUSTATUS bit 5)

	// Frame buffer
	frameBuffer [256 * 240]uint32 // RGB frame buffer

	// Callbacks
	nmiLineCallback       func(bool)
	frameCompleteCallback func()

	// Rendering control, derived from PPUMASK
	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	cycleCount uint64
}

// New creates a new PPU instance.
func New() *PPU {
	return &PPU{}
}

// Reset resets the PPU to its initial state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0
	p.readBuffer = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false

	p.frameCount = 0
	p.oddFrame = false
	p.inVBlank = false

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false

	p.cycleCount = 0

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0x000000
	}
}

// SetMemory sets the PPU memory interface.
func (p *PPU) SetMemory(mem *memory.PPUMemory) {
	p.memory = mem
}

// SetNMILineCallback installs the callback invoked whenever the PPU's NMI
// output line changes level. The line is the logical AND of PPUCTRL bit 7
// and "vblank in progress"; it is up to the receiver (the CPU) to detect
// the rising edge that actually triggers an NMI.
func (p *PPU) SetNMILineCallback(callback func(bool)) {
	p.nmiLineCallback = callback
}

// SetFrameCompleteCallback sets the frame complete callback.
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// ReadRegister reads from a PPU register (CPU $2000-$2007).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002: // PPUSTATUS
		status := p.ppuStatus
		p.ppuStatus &= 0x7F // Clear VBL flag (bit 7); sprite 0 hit stays until vblank start
		p.w = false         // Clear write latch
		return status
	case 0x2004: // OAMDATA
		return p.oam[p.oamAddr]
	case 0x2007: // PPUDATA
		return p.readPPUData()
	default: // $2000/$2001/$2003/$2005/$2006 are write-only
		return p.ppuStatus & 0x1F
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007).
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000: // PPUCTRL
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10) // Nametable select
		p.updateRenderingFlags()
		p.updateNMILine()
	case 0x2001: // PPUMASK
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002: // PPUSTATUS - read only, writes ignored
	case 0x2003: // OAMADDR
		p.oamAddr = value
	case 0x2004: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005: // PPUSCROLL
		p.writePPUScroll(value)
	case 0x2006: // PPUADDR
		p.writePPUAddr(value)
	case 0x2007: // PPUDATA
		p.writePPUData(value)
	}
}

// WriteOAM writes to OAM at the specified address directly, bypassing
// OAMADDR; used by tests to set up sprite data.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// BeginVBlank raises the PPU's vblank state: sets PPUSTATUS bit 7, clears
// sprite-0-hit and sprite-overflow, and updates the NMI line.
func (p *PPU) BeginVBlank() {
	p.ppuStatus |= 0x80
	p.ppuStatus &^= 0x60 // clear sprite-0-hit (bit 6) and sprite-overflow (bit 5)
	p.sprite0Hit = false
	p.spriteOverflow = false
	p.inVBlank = true
	p.updateNMILine()
}

// EndVBlank lowers the PPU's vblank state at the start of the pre-render
// line and copies the vertical scroll bits from t into v if rendering is
// enabled, matching the real PPU's t->v copy at the pre-render line.
func (p *PPU) EndVBlank() {
	p.ppuStatus &= 0x7F
	p.inVBlank = false
	p.updateNMILine()

	if p.renderingEnabled {
		p.copyY()
	}

	p.frameCount++
	p.oddFrame = !p.oddFrame
	if p.frameCompleteCallback != nil {
		p.frameCompleteCallback()
	}
}

// RenderScanline rasterizes one visible scanline (0-239) into the frame
// buffer: sprites are evaluated against OAM, every pixel is composited
// from the background and sprite pixel pipelines, and the vertical scroll
// component of v is advanced exactly once, at the end of the line.
func (p *PPU) RenderScanline(scanline int) {
	if scanline < 0 || scanline >= 240 {
		return
	}

	if p.spritesEnabled {
		p.evaluateSprites(scanline)
	} else {
		p.spriteCount = 0
	}

	if p.memory != nil && (p.backgroundEnabled || p.spritesEnabled) {
		for pixelX := 0; pixelX < 256; pixelX++ {
			var backgroundPixel, spritePixel SpritePixel
			backgroundPixel = SpritePixel{transparent: true}
			spritePixel = SpritePixel{transparent: true}

			if p.backgroundEnabled {
				backgroundPixel = p.renderBackgroundPixel(pixelX, scanline)
			}
			if p.spritesEnabled {
				spritePixel = p.renderSpritePixel(pixelX, scanline, backgroundPixel)
			}

			finalColor := p.compositeFinalPixel(backgroundPixel, spritePixel)
			p.frameBuffer[scanline*256+pixelX] = finalColor
		}
	} else if p.memory != nil {
		backdrop := NESColorToRGB(p.memory.Read(0x3F00))
		for pixelX := 0; pixelX < 256; pixelX++ {
			p.frameBuffer[scanline*256+pixelX] = backdrop
		}
	}

	if p.renderingEnabled {
		p.incrementY()
		p.copyX()
	}
}

// SpritePixel represents a rendered pixel from background or sprite.
type SpritePixel struct {
	colorIndex   uint8  // 0-3, where 0 is transparent
	paletteIndex uint8  // which palette
	rgbColor     uint32 // final RGB color
	spriteIndex  int8   // which sprite (0-63, or -1 for background)
	priority     bool   // sprite priority flag (true = behind background)
	transparent  bool   // true if this pixel is transparent
}

// evaluateSprites finds the up to 8 sprites visible on the given scanline.
func (p *PPU) evaluateSprites(scanline int) {
	p.spriteCount = 0
	p.spriteOverflow = false

	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndexes {
		p.spriteIndexes[i] = 0xFF
	}

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	spritesFound := 0
	for spriteIndex := 0; spriteIndex < 64; spriteIndex++ {
		oamIndex := spriteIndex * 4
		sY := int(p.oam[oamIndex])
		tileIndex := p.oam[oamIndex+1]
		attributes := p.oam[oamIndex+2]
		sX := int(p.oam[oamIndex+3])

		if scanline >= sY+1 && scanline < sY+1+spriteHeight {
			if spritesFound < 8 {
				secondaryIndex := spritesFound * 4
				p.secondaryOAM[secondaryIndex] = uint8(sY)
				p.secondaryOAM[secondaryIndex+1] = tileIndex
				p.secondaryOAM[secondaryIndex+2] = attributes
				p.secondaryOAM[secondaryIndex+3] = uint8(sX)
				p.spriteIndexes[spritesFound] = uint8(spriteIndex)
				spritesFound++
			} else {
				p.spriteOverflow = true
				p.ppuStatus |= 0x20
				break
			}
		}
	}

	p.spriteCount = uint8(spritesFound)
}

// renderBackgroundPixel renders a single background pixel from the current
// VRAM address v, following the standard nametable/attribute/pattern fetch
// chain a real PPU performs through its shift registers.
func (p *PPU) renderBackgroundPixel(pixelX, pixelY int) SpritePixel {
	worldX := pixelX + int(p.x)
	coarseX := p.getCoarseX() + worldX/8
	pixelInTileX := worldX % 8
	nametable := p.getNametable()
	if coarseX >= 32 {
		coarseX -= 32
		nametable ^= 1
	}
	tileY := p.getCoarseY()
	fineY := p.getFineY()

	nametableAddr := 0x2000 | (uint16(nametable&3) << 10) | uint16(tileY*32+coarseX)
	tileID := p.memory.Read(nametableAddr)

	attributeAddr := 0x23C0 | (uint16(nametable&3) << 10) | uint16((tileY>>2)*8+(coarseX>>2))
	attributeByte := p.memory.Read(attributeAddr)
	blockID := ((coarseX & 3) >> 1) + ((tileY & 3) >> 1) * 2
	paletteIndex := (attributeByte >> (blockID << 1)) & 0x03

	var patternTableBase uint16
	if p.ppuCtrl&0x10 != 0 {
		patternTableBase = 0x1000
	}

	patternAddr := patternTableBase + uint16(tileID)*16 + uint16(fineY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - uint(pixelInTileX)
	bit0 := (patternLow >> bitShift) & 1
	bit1 := (patternHigh >> bitShift) & 1
	colorIndex := (bit1 << 1) | bit0

	var paletteAddr uint16
	if colorIndex == 0 {
		paletteAddr = 0x3F00
	} else {
		paletteAddr = 0x3F00 + uint16(paletteIndex)*4 + uint16(colorIndex)
	}
	nesColorIndex := p.memory.Read(paletteAddr)

	return SpritePixel{
		colorIndex:   colorIndex,
		paletteIndex: paletteIndex,
		rgbColor:     NESColorToRGB(nesColorIndex),
		spriteIndex:  -1,
		transparent:  colorIndex == 0,
	}
}

// renderSpritePixel renders a single sprite pixel, checking sprites in
// priority order (lowest OAM index wins) and performing sprite-0-hit
// detection against the already-computed background pixel.
func (p *PPU) renderSpritePixel(pixelX, pixelY int, background SpritePixel) SpritePixel {
	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	for i := 0; i < int(p.spriteCount); i++ {
		secondaryIndex := i * 4
		sY := int(p.secondaryOAM[secondaryIndex])
		tileIndex := p.secondaryOAM[secondaryIndex+1]
		attributes := p.secondaryOAM[secondaryIndex+2]
		sX := int(p.secondaryOAM[secondaryIndex+3])

		if pixelX < sX || pixelX >= sX+8 {
			continue
		}
		if pixelY < sY+1 || pixelY >= sY+1+spriteHeight {
			continue
		}

		spritePixelX := pixelX - sX
		spritePixelY := pixelY - (sY + 1)

		if attributes&0x40 != 0 {
			spritePixelX = 7 - spritePixelX
		}
		if attributes&0x80 != 0 {
			spritePixelY = spriteHeight - 1 - spritePixelY
		}

		colorIndex := p.getSpritePixelColor(tileIndex, spritePixelX, spritePixelY)
		if colorIndex == 0 {
			continue
		}

		if p.isOriginalSprite0(i) {
			p.checkSprite0Hit(pixelX, background, colorIndex)
		}

		paletteIndex := attributes & 0x03
		paletteAddr := 0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex)
		nesColorIndex := p.memory.Read(paletteAddr)

		return SpritePixel{
			colorIndex:   colorIndex,
			paletteIndex: paletteIndex,
			rgbColor:     NESColorToRGB(nesColorIndex),
			spriteIndex:  int8(i),
			priority:     (attributes & 0x20) != 0,
			transparent:  false,
		}
	}

	return SpritePixel{spriteIndex: -1, transparent: true}
}

// getSpritePixelColor returns the 2-bit color index for one pixel of a
// sprite tile, handling the 8x16 top/bottom tile split.
func (p *PPU) getSpritePixelColor(tileIndex uint8, pixelX, pixelY int) uint8 {
	var patternTableBase uint16

	if p.ppuCtrl&0x20 == 0 { // 8x8 sprites
		if p.ppuCtrl&0x08 != 0 {
			patternTableBase = 0x1000
		}
	} else { // 8x16 sprites
		if tileIndex&0x01 != 0 {
			patternTableBase = 0x1000
		}
		tileIndex &= 0xFE
		if pixelY >= 8 {
			tileIndex++
			pixelY -= 8
		}
	}

	patternAddr := patternTableBase + uint16(tileIndex)*16 + uint16(pixelY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - uint(pixelX)
	bit0 := (patternLow >> bitShift) & 1
	bit1 := (patternHigh >> bitShift) & 1
	return (bit1 << 1) | bit0
}

// isOriginalSprite0 reports whether the sprite at this secondary-OAM slot
// is OAM sprite 0, tracked independently of its attributes.
func (p *PPU) isOriginalSprite0(secondaryOAMIndex int) bool {
	if secondaryOAMIndex >= int(p.spriteCount) {
		return false
	}
	return p.spriteIndexes[secondaryOAMIndex] == 0
}

// checkSprite0Hit sets the sprite-0-hit flag the first time sprite 0 and
// the background are both opaque at the same pixel, excluding the column
// clipping and x==255 edge cases real hardware also excludes.
func (p *PPU) checkSprite0Hit(pixelX int, background SpritePixel, spriteColorIndex uint8) {
	if p.sprite0Hit {
		return
	}
	if !p.backgroundEnabled || !p.spritesEnabled {
		return
	}
	if pixelX >= 255 {
		return
	}
	if pixelX < 8 && (p.ppuMask&0x02 == 0 || p.ppuMask&0x04 == 0) {
		return
	}
	if background.transparent || background.colorIndex == 0 {
		return
	}
	if spriteColorIndex == 0 {
		return
	}

	p.sprite0Hit = true
	p.ppuStatus |= 0x40
}

// compositeFinalPixel combines background and sprite pixels according to
// sprite priority.
func (p *PPU) compositeFinalPixel(background, sprite SpritePixel) uint32 {
	if sprite.transparent {
		if background.transparent {
			return NESColorToRGB(p.memory.Read(0x3F00))
		}
		return background.rgbColor
	}
	if background.transparent {
		return sprite.rgbColor
	}
	if sprite.priority && p.backgroundEnabled {
		return background.rgbColor
	}
	return sprite.rgbColor
}

// updateRenderingFlags updates internal rendering state based on PPUMASK.
func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

// updateNMILine recomputes the PPU's NMI output level and notifies the
// callback on every change; the callback's receiver is responsible for
// edge detection.
func (p *PPU) updateNMILine() {
	if p.nmiLineCallback == nil {
		return
	}
	line := (p.ppuCtrl&0x80 != 0) && p.inVBlank
	p.nmiLineCallback(line)
}

// writePPUScroll handles writes to PPUSCROLL ($2005).
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

// writePPUAddr handles writes to PPUADDR ($2006).
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

// readPPUData handles reads from PPUDATA ($2007).
func (p *PPU) readPPUData() uint8 {
	var data uint8

	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}

	p.advanceV()
	return data
}

// writePPUData handles writes to PPUDATA ($2007).
func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceV()
}

func (p *PPU) advanceV() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the current frame buffer.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the current frame count.
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// SetFrameCount sets the frame count, for synchronization.
func (p *PPU) SetFrameCount(count uint64) {
	p.frameCount = count
}

// IsRenderingEnabled returns true if background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool {
	return p.renderingEnabled
}

// IsVBlank returns true if currently in vertical blank.
func (p *PPU) IsVBlank() bool {
	return (p.ppuStatus & 0x80) != 0
}

// GetCycleCount returns the total PPU cycle count, advanced by the renderer.
func (p *PPU) GetCycleCount() uint64 {
	return p.cycleCount
}

// AddCycles accounts for PPU cycles consumed by a renderer batch step.
func (p *PPU) AddCycles(n uint64) {
	p.cycleCount += n
}

// nesColorPalette is the NES 2C02 NTSC color palette.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a NES palette color index to an RGB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0x000000
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// ClearFrameBuffer clears the frame buffer to a specific color.
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}

// getCoarseX extracts the coarse X scroll from v (bits 0-4).
func (p *PPU) getCoarseX() int {
	return int(p.v & 0x001F)
}

// getCoarseY extracts the coarse Y scroll from v (bits 5-9).
func (p *PPU) getCoarseY() int {
	return int((p.v >> 5) & 0x001F)
}

// getFineY extracts the fine Y scroll from v (bits 12-14).
func (p *PPU) getFineY() int {
	return int((p.v >> 12) & 0x0007)
}

// getNametable extracts the nametable select from v (bits 10-11).
func (p *PPU) getNametable() int {
	return int((p.v >> 10) & 0x0003)
}

// incrementY increments fine Y, and if it overflows, increments coarse Y,
// wrapping into the next vertical nametable at row 29.
func (p *PPU) incrementY() {
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &= ^uint16(0x7000)
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v & ^uint16(0x03E0)) | (y << 5)
}

// copyX copies the X-related bits from t into v (nametable bit 10, coarse X).
func (p *PPU) copyX() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

// copyY copies the Y-related bits from t into v (nametable bit 11, coarse/fine Y).
func (p *PPU) copyY() {
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}
