// Package cartridge loads iNES/NES 2.0 ROM images and exposes the resulting
// PRG/CHR memory through a mapper (pkg/cartridge/mapper).
package cartridge

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/yoshiomiyamaegones/pkg/cartridge/mapper"
)

// Kind classifies a RomError so callers can branch on failure category
// without string-matching the message.
type Kind int

const (
	InvalidROM Kind = iota
	UnsupportedMapper
	AllocationFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidROM:
		return "invalid ROM"
	case UnsupportedMapper:
		return "unsupported mapper"
	case AllocationFailure:
		return "allocation failure"
	default:
		return "unknown"
	}
}

// RomError is returned by Load/LoadFromReader instead of panicking, per the
// error taxonomy: a malformed cartridge is a data problem, never a crash.
type RomError struct {
	Kind Kind
	Msg  string
}

func (e *RomError) Error() string {
	return fmt.Sprintf("cartridge: %s: %s", e.Kind, e.Msg)
}

func newRomError(kind Kind, format string, args ...interface{}) *RomError {
	return &RomError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// iNESHeader is the fixed 16-byte iNES/NES 2.0 file header.
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	Flags8     uint8
	Flags9     uint8
	Flags10    uint8
	Padding    [5]uint8
}

func (h iNESHeader) isNES20() bool {
	return h.Flags7&0x0C == 0x08
}

// mapperID reassembles the 8-bit mapper number from header bits 4-7 of
// Flags6 and Flags7. NES 2.0 (detected by isNES20) extends this with a
// fourth nibble in Flags8, which would select mapper numbers beyond 255;
// none of this core's supported mappers (§4.5) need it, so it is parsed but
// not currently consulted.
func (h iNESHeader) mapperID() uint8 {
	return (h.Flags6 >> 4) | (h.Flags7 & 0xF0)
}

// MapperID exposes the assembled mapper number for callers outside this
// package (CLI tooling, debug dumps) that don't need any other header detail.
func (h iNESHeader) MapperID() uint8 {
	return h.mapperID()
}

// IsNES20 reports whether the header uses the NES 2.0 extension format.
func (h iNESHeader) IsNES20() bool {
	return h.isNES20()
}

// Cartridge is the loaded, ready-to-run cartridge: raw memory regions plus
// the mapper instance that banks them into CPU/PPU address space.
type Cartridge struct {
	PRGROM []uint8
	CHRROM []uint8
	PRGRAM []uint8
	CHRRAM []uint8

	Header iNESHeader
	Mapper mapper.Mapper

	HasBattery bool
}

// MirroringMode mirrors mapper.Mirroring for callers that only import
// pkg/cartridge (kept so existing call sites don't need to import the
// mapper subpackage just to compare mirroring modes).
type MirroringMode = mapper.Mirroring

const (
	MirroringHorizontal    = mapper.MirrorHorizontal
	MirroringVertical      = mapper.MirrorVertical
	MirroringSingleScreenA = mapper.MirrorSingleScreenA
	MirroringSingleScreenB = mapper.MirrorSingleScreenB
	MirroringFourScreen    = mapper.MirrorFourScreen
)

// Load reads an iNES/NES 2.0 file from r and constructs a ready-to-run
// Cartridge. It never panics: malformed input always comes back as a
// *RomError.
func Load(r io.Reader) (*Cartridge, error) {
	return LoadFromReader(r)
}

// LoadFromReader is the original entry point name, kept for call-site
// compatibility with the rest of the tree.
func LoadFromReader(reader io.Reader) (*Cartridge, error) {
	cart := &Cartridge{}

	var headerBytes [16]uint8
	if _, err := io.ReadFull(reader, headerBytes[:]); err != nil {
		return nil, newRomError(InvalidROM, "short header: %v", err)
	}

	hdr := iNESHeader{}
	copy(hdr.Magic[:], headerBytes[0:4])
	hdr.PRGROMSize = headerBytes[4]
	hdr.CHRROMSize = headerBytes[5]
	hdr.Flags6 = headerBytes[6]
	hdr.Flags7 = headerBytes[7]
	hdr.Flags8 = headerBytes[8]
	hdr.Flags9 = headerBytes[9]
	hdr.Flags10 = headerBytes[10]
	copy(hdr.Padding[:], headerBytes[11:16])
	cart.Header = hdr

	if string(hdr.Magic[:]) != "NES\x1A" {
		return nil, newRomError(InvalidROM, "bad magic %q", hdr.Magic[:])
	}

	if hdr.Flags6&0x04 != 0 {
		trainer := make([]uint8, 512)
		if _, err := io.ReadFull(reader, trainer); err != nil {
			return nil, newRomError(InvalidROM, "truncated trainer: %v", err)
		}
	}

	prgSize := prgROMSize(hdr)
	cart.PRGROM = make([]uint8, prgSize)
	if _, err := io.ReadFull(reader, cart.PRGROM); err != nil {
		return nil, newRomError(InvalidROM, "truncated PRG-ROM (wanted %d bytes): %v", prgSize, err)
	}

	chrSize := chrROMSize(hdr)
	if chrSize > 0 {
		cart.CHRROM = make([]uint8, chrSize)
		if _, err := io.ReadFull(reader, cart.CHRROM); err != nil {
			return nil, newRomError(InvalidROM, "truncated CHR-ROM (wanted %d bytes): %v", chrSize, err)
		}
	} else {
		ramSize := 8192
		if hdr.mapperID()&0xFF == 4 {
			ramSize = 32768
		}
		cart.CHRRAM = make([]uint8, ramSize)
	}

	cart.HasBattery = hdr.Flags6&0x02 != 0
	prgRAMSize := 8192
	if cart.HasBattery {
		prgRAMSize = 32768
	}
	cart.PRGRAM = make([]uint8, prgRAMSize)

	staticMirroring := mapper.MirrorHorizontal
	switch {
	case hdr.Flags6&0x08 != 0:
		staticMirroring = mapper.MirrorFourScreen
	case hdr.Flags6&0x01 != 0:
		staticMirroring = mapper.MirrorVertical
	}

	mapperID := hdr.mapperID() & 0xFF
	mapperData := &mapper.CartridgeData{
		PRGROM: cart.PRGROM,
		CHRROM: cart.CHRROM,
		PRGRAM: cart.PRGRAM,
		CHRRAM: cart.CHRRAM,
	}

	m, err := mapper.New(mapperID, mapperData, staticMirroring)
	if err != nil {
		return nil, newRomError(UnsupportedMapper, "%v", err)
	}
	cart.Mapper = m

	return cart, nil
}

// prgROMSize and chrROMSize resolve the ROM sizes declared in bytes 4/5 of
// the header. NES 2.0 headers (Flags7 bits 2-3 == 2) use the low nibble of
// byte 9 as the MSB of the PRG count and the high nibble as the MSB of the
// CHR count, except when a nibble is 0xF, which instead selects an
// exponent-multiplier encoding
// (byte value = 2^exponent * (multiplier*2+1)) for carts whose true size
// isn't representable in raw 16KB/8KB units.
func prgROMSize(h iNESHeader) int {
	if h.isNES20() {
		msb := h.Flags9 & 0x0F
		if msb == 0x0F {
			exponent := h.PRGROMSize >> 2
			multiplier := h.PRGROMSize & 0x03
			return (1 << exponent) * (int(multiplier)*2 + 1)
		}
		size := binary.LittleEndian.Uint16([]byte{h.PRGROMSize, msb})
		return int(size) * 16384
	}
	return int(h.PRGROMSize) * 16384
}

func chrROMSize(h iNESHeader) int {
	if h.isNES20() {
		msb := (h.Flags9 >> 4) & 0x0F
		if msb == 0x0F {
			exponent := h.CHRROMSize >> 2
			multiplier := h.CHRROMSize & 0x03
			return (1 << exponent) * (int(multiplier)*2 + 1)
		}
		size := binary.LittleEndian.Uint16([]byte{h.CHRROMSize, msb})
		return int(size) * 8192
	}
	return int(h.CHRROMSize) * 8192
}

func (c *Cartridge) ReadPRG(addr uint16) uint8 {
	if c.Mapper != nil {
		return c.Mapper.ReadPRG(addr)
	}
	return 0
}

func (c *Cartridge) WritePRG(addr uint16, value uint8) {
	if c.Mapper != nil {
		c.Mapper.WritePRG(addr, value)
	}
}

func (c *Cartridge) ReadCHR(addr uint16) uint8 {
	if c.Mapper != nil {
		return c.Mapper.ReadCHR(addr)
	}
	return 0
}

func (c *Cartridge) WriteCHR(addr uint16, value uint8) {
	if c.Mapper != nil {
		c.Mapper.WriteCHR(addr, value)
	}
}

// ScanlineTick forwards to the mapper's scanline IRQ counter, if any.
func (c *Cartridge) ScanlineTick() {
	if c.Mapper != nil {
		c.Mapper.ScanlineTick()
	}
}

func (c *Cartridge) IsIRQPending() bool {
	if c.Mapper != nil {
		return c.Mapper.IRQPending()
	}
	return false
}

func (c *Cartridge) ClearIRQ() {
	if c.Mapper != nil {
		c.Mapper.ClearIRQ()
	}
}

// Mirroring returns the cartridge's current nametable mirroring, consulting
// the mapper (which may change it at runtime) rather than the static header
// value.
func (c *Cartridge) Mirroring() mapper.Mirroring {
	if c.Mapper != nil {
		return c.Mapper.Mirroring()
	}
	return mapper.MirrorHorizontal
}
