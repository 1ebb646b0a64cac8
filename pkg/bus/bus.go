// Package bus wires the CPU's address space together: RAM, PPU and APU
// registers, cartridge PRG space, and the two controller ports. It also owns
// DMA arbitration (OAM DMA and DMC sample fetches), which steal cycles from
// the CPU rather than producing visible bus traffic of their own.
package bus

import (
	"github.com/yoshiomiyamaegones/pkg/input"
	"github.com/yoshiomiyamaegones/pkg/logger"
)

// PPU is the subset of the PPU the bus drives through its register window.
type PPU interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}

// APU is the subset of the APU the bus drives through its register window,
// plus the DMA stall accounting the DMC channel produces.
type APU interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
	TakeDMAStallCycles() int
}

// Cartridge is the subset of the cartridge the bus exposes at $6000-$FFFF.
type Cartridge interface {
	ReadPRG(addr uint16) uint8
	WritePRG(addr uint16, value uint8)
}

// Bus is the CPU's view of the NES address space.
type Bus struct {
	RAM [2048]uint8

	PPU       PPU
	APU       APU
	Cartridge Cartridge
	Pad1      *input.Controller
	Pad2      *input.Controller

	// oamDMAStall holds cycles owed to a just-triggered OAM DMA transfer;
	// TakeStallCycles drains it. The transfer itself runs instantly (the
	// byte values it produces don't depend on timing), only the stall is
	// deferred to the driving loop, which ticks PPU/APU that many extra
	// times to keep them in lockstep with the halted CPU.
	oamDMAStall int

	// cpuCycles tracks parity for the OAM DMA odd/even cycle rule.
	cpuCycles uint64
}

// New creates a Bus with no peripherals attached; wire them with the Set*
// methods before use.
func New() *Bus {
	return &Bus{
		Pad1: input.New(),
		Pad2: input.New(),
	}
}

// SetCartridge attaches the cartridge.
func (b *Bus) SetCartridge(cart Cartridge) {
	b.Cartridge = cart
}

// SetPPU attaches the PPU.
func (b *Bus) SetPPU(ppu PPU) {
	b.PPU = ppu
}

// SetAPU attaches the APU.
func (b *Bus) SetAPU(apu APU) {
	b.APU = apu
}

// AdvanceCycles keeps the OAM DMA parity counter in sync with the CPU's own
// cycle count; the driving loop calls this once per CPU cycle actually
// elapsed (not counting DMA stall cycles).
func (b *Bus) AdvanceCycles(n int) {
	b.cpuCycles += uint64(n)
}

// TakeStallCycles returns and clears the CPU cycles owed to DMA since the
// last call: OAM DMA (tracked here) plus DMC sample fetches (tracked in the
// APU and drained through it).
func (b *Bus) TakeStallCycles() int {
	n := b.oamDMAStall
	b.oamDMAStall = 0
	if b.APU != nil {
		n += b.APU.TakeDMAStallCycles()
	}
	return n
}

// Read reads a byte from the CPU's address space.
func (b *Bus) Read(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.RAM[addr&0x7FF]

	case addr < 0x4000:
		if b.PPU != nil {
			return b.PPU.ReadRegister(0x2000 + (addr & 0x7))
		}
		return 0

	case addr == 0x4016:
		if b.Pad1 != nil {
			return b.Pad1.Read()
		}
		return 0

	case addr == 0x4017:
		// $4017 reads return controller 2's shift register; $4017 writes
		// (below) go to the APU frame counter instead. These are two
		// different registers that happen to share an address.
		if b.Pad2 != nil {
			return b.Pad2.Read()
		}
		return 0

	case addr < 0x4020:
		if b.APU != nil {
			return b.APU.ReadRegister(addr)
		}
		return 0

	case addr >= 0x6000:
		if b.Cartridge != nil {
			return b.Cartridge.ReadPRG(addr)
		}
		return 0

	default:
		return 0
	}
}

// Write writes a byte to the CPU's address space.
func (b *Bus) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		b.RAM[addr&0x7FF] = value

	case addr < 0x4000:
		if b.PPU != nil {
			b.PPU.WriteRegister(0x2000+(addr&0x7), value)
		}

	case addr == 0x4014:
		b.triggerOAMDMA(value)

	case addr == 0x4016:
		// $4016 writes strobe both controller shift registers at once.
		if b.Pad1 != nil {
			b.Pad1.Write(value)
		}
		if b.Pad2 != nil {
			b.Pad2.Write(value)
		}

	case addr < 0x4020:
		if b.APU != nil {
			b.APU.WriteRegister(addr, value)
		}

	case addr >= 0x6000:
		if b.Cartridge != nil {
			b.Cartridge.WritePRG(addr, value)
		}

	default:
		// Unmapped $4020-$5FFF
	}
}

// triggerOAMDMA performs the 256-byte OAM transfer and records the CPU
// stall it costs: 513 cycles, or 514 if it starts on an odd CPU cycle.
func (b *Bus) triggerOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		value := b.Read(base + uint16(i))
		if b.PPU != nil {
			b.PPU.WriteRegister(0x2004, value)
		}
	}

	stall := 513
	if b.cpuCycles%2 == 1 {
		stall = 514
	}
	b.oamDMAStall += stall
	logger.LogCPU("OAM DMA from page $%02X, stalling CPU %d cycles", page, stall)
}
