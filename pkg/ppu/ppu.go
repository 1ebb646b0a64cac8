package ppu

import (
	"github.com/yoshiomiyamaegones/pkg/cartridge/mapper"
	"github.com/yoshiomiyamaegones/pkg/logger"
)

// PPU represents the Picture Processing Unit
type PPU struct {
	// Registers
	PPUCTRL   uint8 // $2000
	PPUMASK   uint8 // $2001
	PPUSTATUS uint8 // $2002
	OAMADDR   uint8 // $2003
	OAMDATA   uint8 // $2004
	PPUSCROLL uint8 // $2005
	PPUADDR   uint8 // $2006
	PPUDATA   uint8 // $2007

	// Internal registers
	v     uint16 // VRAM address
	t     uint16 // Temporary VRAM address
	x     uint8  // Fine X scroll
	xTemp uint8  // Temporary fine X scroll for raster effects
	w     uint8  // Write toggle

	// Scrolling
	ScrollY uint8 // Y scroll position

	// VRAM
	VRAM [0x4000]uint8

	// OAM (Object Attribute Memory)
	OAM [256]uint8

	// Frame buffer (256x240)
	FrameBuffer [256 * 240]uint32

	// Timing
	Cycle         int
	Scanline      int
	Frame         uint64
	FrameComplete bool
	oddFrame      bool

	// NMI edge/delay flip-flops: nmiOutputPrev tracks the level of
	// (NMI-enable AND vblank) to detect the low->high transition that arms
	// nmiDelay; nmiDelay counts down to the dot the CPU actually observes
	// the NMI line go high.
	NMIRequested  bool
	nmiOutputPrev bool
	nmiDelay      int

	// vblankAge counts dots since PPUSTATUS.VBlank was last set, used to
	// approximate the dot1/dot2-3 STATUS-read race at scanline 241. -1
	// means "not currently tracking" (flag already read or long cleared).
	vblankAge int

	// openBus is the PPU's decaying bus latch: every register read/write
	// drives it, and reads of write-only registers (and the low 5 bits of
	// PPUSTATUS) return it. Real hardware decays this toward zero over
	// ~600k cycles; we keep the last-driven value without modeling the
	// decay timer, since no behavior this core is tested against depends
	// on the decay itself rather than "unconnected bits read back the bus".
	openBus uint8

	// Rendering
	PaletteManager *PaletteManager
	currentSprites []SpriteInfo

	// PPU read buffer for $2007 reads
	readBuffer uint8

	// Cartridge interface
	Cartridge interface {
		ReadCHR(addr uint16) uint8
		WriteCHR(addr uint16, value uint8)
		ScanlineTick() // called as each visible scanline (0-239) begins, for mapper IRQ counters
		IsIRQPending() bool
		ClearIRQ()
		Mirroring() mapper.Mirroring
	}
}

// PPUCTRL flags
const (
	PPUCTRLNameTable   = 0x03 // Base nametable address
	PPUCTRLIncrement   = 0x04 // VRAM address increment
	PPUCTRLSpriteTable = 0x08 // Sprite pattern table address
	PPUCTRLBGTable     = 0x10 // Background pattern table address
	PPUCTRLSpriteSize  = 0x20 // Sprite size
	PPUCTRLMasterSlave = 0x40 // PPU master/slave select
	PPUCTRLNMIEnable   = 0x80 // Generate NMI at VBlank
)

// PPUMASK flags
const (
	PPUMASKGreyscale      = 0x01 // Greyscale
	PPUMASKBGLeft         = 0x02 // Show background in leftmost 8 pixels
	PPUMASKSpriteLeft     = 0x04 // Show sprites in leftmost 8 pixels
	PPUMASKBGShow         = 0x08 // Show background
	PPUMASKSpriteShow     = 0x10 // Show sprites
	PPUMASKRedEmphasize   = 0x20 // Emphasize red
	PPUMASKGreenEmphasize = 0x40 // Emphasize green
	PPUMASKBlueEmphasize  = 0x80 // Emphasize blue
)

// PPUSTATUS flags
const (
	PPUSTATUSOverflow   = 0x20 // Sprite overflow (9th in-range sprite on a scanline)
	PPUSTATUSSprite0Hit = 0x40 // Sprite 0 hit
	PPUSTATUSVBlank     = 0x80 // VBlank flag
)

// New creates a new PPU instance
func New() *PPU {
	return &PPU{
		Cycle:          0,
		Scanline:       0,
		PaletteManager: NewPaletteManager(),
	}
}

// Reset resets the PPU to initial state
func (p *PPU) Reset() {
	p.PPUCTRL = 0
	p.PPUMASK = 0
	p.PPUSTATUS = 0
	p.OAMADDR = 0
	p.v = 0
	p.t = 0
	p.x = 0
	p.w = 0
	p.Cycle = 0
	p.Scanline = 0
	p.FrameComplete = false
	p.oddFrame = false
	p.nmiOutputPrev = false
	p.nmiDelay = 0
	p.vblankAge = -1
	p.openBus = 0
}

// SetCartridge sets the cartridge reference
func (p *PPU) SetCartridge(cart interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, value uint8)
	ScanlineTick()
	IsIRQPending() bool
	ClearIRQ()
	Mirroring() mapper.Mirroring
}) {
	p.Cartridge = cart
}

// Step executes one PPU cycle (one dot).
func (p *PPU) Step() {
	// Update emphasis for palette manager
	p.PaletteManager.SetEmphasis(p.PPUMASK & 0xE0)

	renderingEnabled := (p.PPUMASK & (PPUMASKBGShow | PPUMASKSpriteShow)) != 0

	// Render visible scanlines.
	if p.Scanline >= 0 && p.Scanline < 240 {
		p.renderPixel()
	}

	if p.vblankAge >= 0 {
		p.vblankAge++
	}

	p.Cycle++

	// Odd-frame skip: the pre-render line's last dot (340) is omitted on
	// odd frames when rendering is enabled, producing alternating
	// 341/340-dot scanlines (89341 vs 89342 dots per frame).
	if p.Scanline == -1 && p.Cycle == 340 && renderingEnabled && p.oddFrame {
		p.Cycle = 341
	}

	if p.Cycle >= 341 {
		p.Cycle = 0

		p.Scanline++

		// Clock the mapper's scanline IRQ counter (MMC3), independent of
		// whether rendering is currently enabled.
		if p.Cartridge != nil && p.Scanline >= 0 && p.Scanline < 240 {
			p.Cartridge.ScanlineTick()
		}

		if p.Scanline >= 261 {
			p.Scanline = -1 // Pre-render scanline
			p.FrameComplete = true
			p.Frame++
			p.oddFrame = !p.oddFrame
		}
	}

	if p.Scanline == 241 && p.Cycle == 1 {
		p.PPUSTATUS |= PPUSTATUSVBlank
		p.vblankAge = 0
		p.updateNMILine()
	}

	if p.Scanline == -1 && p.Cycle == 1 {
		// Pre-render dot 1: clear vblank/sprite-0-hit/overflow and cancel
		// any pending NMI, per the hardware's pre-render reset behavior.
		p.PPUSTATUS &^= (PPUSTATUSVBlank | PPUSTATUSSprite0Hit | PPUSTATUSOverflow)
		p.vblankAge = -1
		p.updateNMILine()
	}

	// Handle pre-render scanline (scanline -1/261)
	if p.Scanline == -1 {
		// Copy vertical scroll components from t to v
		if p.Cycle == 304 && renderingEnabled {
			p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
		}
		// Copy horizontal scroll components from t to v
		if p.Cycle == 257 && renderingEnabled {
			p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
		}
	}

	// Handle visible scanlines
	if p.Scanline >= 0 && p.Scanline < 240 {
		// Copy horizontal scroll components from t to v at start of next scanline
		if p.Cycle == 0 && renderingEnabled {
			p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
			p.x = p.xTemp // Apply fine X scroll from temporary register
		}
	}

	// NMI delay: the CPU observes the NMI line some dots after the
	// NMI-enable AND vblank condition first goes high.
	if p.nmiDelay > 0 {
		p.nmiDelay--
		if p.nmiDelay == 0 && p.nmiOutputPrev {
			p.NMIRequested = true
		}
	}
}

// updateNMILine re-evaluates NMI-output = NMI-enable AND vblank-set. A
// low->high transition arms nmiDelay; going low cancels any pending delay
// (the signal hasn't latched to the CPU yet in that case, since this core
// consumes NMIRequested immediately once nmiDelay reaches zero).
func (p *PPU) updateNMILine() {
	output := (p.PPUCTRL&PPUCTRLNMIEnable) != 0 && (p.PPUSTATUS&PPUSTATUSVBlank) != 0
	if output && !p.nmiOutputPrev {
		p.nmiDelay = 2
	}
	if !output {
		p.nmiDelay = 0
	}
	p.nmiOutputPrev = output
}

// ReadRegister reads from PPU register
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0x2002: // PPUSTATUS
		value := (p.PPUSTATUS & 0xE0) | (p.openBus & 0x1F)

		// Dot-1/dot-2-3 VBlank race (§4.3): a read landing on the very
		// dot the flag was set suppresses it from the returned value and
		// cancels the NMI; reads one or two dots later still see the
		// flag but still cancel an NMI that hasn't latched yet.
		if p.vblankAge == 0 {
			value &^= PPUSTATUSVBlank
		}
		if p.vblankAge >= 0 && p.vblankAge <= 2 {
			p.nmiDelay = 0
		}

		logger.LogPPU("Read PPUSTATUS: $%02X", value)
		p.PPUSTATUS &^= PPUSTATUSVBlank // Clear VBlank flag
		p.vblankAge = -1
		p.updateNMILine()
		p.w = 0 // Reset write toggle
		p.openBus = value
		return value
	case 0x2004: // OAMDATA
		p.openBus = p.OAM[p.OAMADDR]
		return p.openBus
	case 0x2007: // PPUDATA
		var value uint8

		if p.v >= 0x3F00 {
			// Palette reads are immediate (no buffering)
			value = p.readVRAM(p.v)
			// Update buffer with underlying nametable data
			p.readBuffer = p.readVRAM(p.v - 0x1000)
		} else {
			// Non-palette reads use buffered system
			value = p.readBuffer
			p.readBuffer = p.readVRAM(p.v)
		}

		// Debug: Log $2007 reads for CHR area
		if p.v < 0x2000 && p.v <= 0x000F {
			logger.LogPPU("$2007 Read CHR: vramAddr=$%04X, value=$%02X, buffer=$%02X", p.v, value, p.readBuffer)
		}

		if p.PPUCTRL&PPUCTRLIncrement != 0 {
			p.v += 32
		} else {
			p.v += 1
		}
		p.openBus = value
		return value
	}
	return p.openBus
}

// WriteRegister writes to PPU register. Every write drives the open-bus
// latch, independent of which register it targets.
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	p.openBus = value
	switch addr {
	case 0x2000: // PPUCTRL
		oldValue := p.PPUCTRL
		p.PPUCTRL = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateNMILine()
		logger.LogPPU("Write PPUCTRL: $%02X -> $%02X (NMI=%v, BG_table=$%04X, Sprite_table=$%04X)",
			oldValue, value, (value&PPUCTRLNMIEnable) != 0,
			uint16(0x1000)*uint16((value&PPUCTRLBGTable)>>4),
			uint16(0x1000)*uint16((value&PPUCTRLSpriteTable)>>3))
	case 0x2001: // PPUMASK
		oldValue := p.PPUMASK
		logger.LogPPU("Write PPUMASK: $%02X -> $%02X (BGShow=%v, SpriteShow=%v, Greyscale=%v)",
			oldValue, value, (value&PPUMASKBGShow) != 0, (value&PPUMASKSpriteShow) != 0, (value&PPUMASKGreyscale) != 0)
		p.PPUMASK = value
	case 0x2003: // OAMADDR
		p.OAMADDR = value
	case 0x2004: // OAMDATA
		p.OAM[p.OAMADDR] = value
		p.OAMADDR++
	case 0x2005: // PPUSCROLL
		logger.LogPPU("Write PPUSCROLL: value=$%02X, w=%d, scanline=%d", value, p.w, p.Scanline)
		if p.w == 0 {
			p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
			p.xTemp = value & 0x07 // Store in temporary register
			p.w = 1
			logger.LogPPU("PPUSCROLL X: value=$%02X, xTemp=%d, t=$%04X, scanline=%d", value, p.xTemp, p.t, p.Scanline)
		} else {
			p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
			p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
			p.w = 0
			logger.LogPPU("PPUSCROLL Y: value=$%02X, t=$%04X, scanline=%d", value, p.t, p.Scanline)
		}
	case 0x2006: // PPUADDR
		logger.LogPPU("PPU Write $2006: value=$%02X, w=%d", value, p.w)
		if p.w == 0 {
			p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
			p.w = 1
			logger.LogPPU("Write PPUADDR (high): $%02X, t=$%04X", value, p.t)
			// Debug: Check if will point to CHR area
			if (p.t & 0xFF00) < 0x2000 {
				logger.LogPPU("PPUADDR high set for CHR area: $%04X", p.t)
			}
		} else {
			p.t = (p.t & 0xFF00) | uint16(value)
			p.v = p.t
			p.w = 0
			logger.LogPPU("Write PPUADDR (low): $%02X, v=$%04X", value, p.v)
			// Debug: Check if pointing to CHR area
			if p.v < 0x2000 {
				logger.LogPPU("PPUADDR set to CHR area: $%04X", p.v)
			}
		}
	case 0x2007: // PPUDATA
		logger.LogPPU("PPU Write $2007: vramAddr=$%04X, value=$%02X", p.v, value)
		// Debug: Enhanced logging for CHR area writes
		if p.v < 0x2000 && p.v <= 0x000F {
			logger.LogPPU("$2007 Write CHR: vramAddr=$%04X, value=$%02X", p.v, value)
		}
		p.writeVRAM(p.v, value)
		if p.PPUCTRL&PPUCTRLIncrement != 0 {
			p.v += 32
		} else {
			p.v += 1
		}
	}
}

// readVRAM reads from VRAM
func (p *PPU) readVRAM(addr uint16) uint8 {
	addr = addr % 0x4000

	if addr < 0x2000 {
		// Pattern table
		if p.Cartridge != nil {
			value := p.Cartridge.ReadCHR(addr)
			// Debug: Log CHR reads via PPU - focus on pattern table reads with scanline info
			if addr <= 0x1FFF && (addr < 0x100 || (addr >= 0x800 && addr < 0x900)) {
				// Log first 256 bytes of each bank for key areas
				logger.LogPPU("PPU CHR Read: scanline=%d, cycle=%d, addr=$%04X, value=$%02X, table=%s",
					p.Scanline, p.Cycle, addr, value,
					func() string {
						if addr < 0x1000 {
							return "BG"
						} else {
							return "SPR"
						}
					}())
			}
			return value
		}
		logger.LogPPU("ReadCHR: no cartridge, returning 0")
		return 0
	} else if addr < 0x3F00 {
		// Nametable with mirroring
		return p.readNameTable(addr)
	} else if addr < 0x4000 {
		// Palette
		return p.PaletteManager.ReadPalette(uint8(addr & 0x1F))
	}

	return 0
}

// writeVRAM writes to VRAM
func (p *PPU) writeVRAM(addr uint16, value uint8) {
	addr = addr % 0x4000

	if addr < 0x2000 {
		// Pattern table (CHR)
		if p.Cartridge != nil {
			// Debug: Log CHR writes via PPU for first bytes
			if addr <= 0x000F {
				logger.LogPPU("PPU CHR Write: addr=$%04X, value=$%02X", addr, value)
			}
			p.Cartridge.WriteCHR(addr, value)
		}
	} else if addr < 0x3F00 {
		// Nametable with mirroring
		p.writeNameTable(addr, value)
	} else if addr < 0x4000 {
		// Palette
		paletteAddr := uint8(addr & 0x1F)
		p.PaletteManager.WritePalette(paletteAddr, value)
	}
}

// readNameTable reads from nametable with mirroring
func (p *PPU) readNameTable(addr uint16) uint8 {
	// Mirror the address based on cartridge mirroring mode
	mirroredAddr := p.mirrorNameTableAddress(addr)
	return p.VRAM[mirroredAddr]
}

// writeNameTable writes to nametable with mirroring
func (p *PPU) writeNameTable(addr uint16, value uint8) {
	// Mirror the address based on cartridge mirroring mode
	mirroredAddr := p.mirrorNameTableAddress(addr)
	p.VRAM[mirroredAddr] = value
}

// mirrorNameTableAddress resolves a $2000-$2FFF nametable address to its
// backing 1KB page in VRAM, via the cartridge's current mirroring mode.
func (p *PPU) mirrorNameTableAddress(addr uint16) uint16 {
	offset := addr - 0x2000
	logical := uint8(offset / 0x400)

	m := mapper.MirrorHorizontal
	if p.Cartridge != nil {
		m = p.Cartridge.Mirroring()
	}
	physical := m.Physical(logical)
	return uint16(physical)*0x400 + (offset % 0x400) + 0x2000
}

// IsMapperIRQPending returns whether mapper IRQ is pending
func (p *PPU) IsMapperIRQPending() bool {
	if p.Cartridge != nil {
		return p.Cartridge.IsIRQPending()
	}
	return false
}

// ClearMapperIRQ clears mapper IRQ
func (p *PPU) ClearMapperIRQ() {
	if p.Cartridge != nil {
		p.Cartridge.ClearIRQ()
	}
}

// GetDisplayFrameBuffer returns the frame buffer the host should blit: the
// current frame's pixels, written once per dot during the just-completed
// pass over scanlines 0-239.
func (p *PPU) GetDisplayFrameBuffer() []uint32 {
	return p.FrameBuffer[:]
}

