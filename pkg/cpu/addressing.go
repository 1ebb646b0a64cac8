package cpu

// AddressingMode identifies how an opcode's operand is located. Ordered to
// match the hardware reference: implicit/accumulator forms first, then the
// immediate and direct-page forms, then the indexed and indirect forms.
type AddressingMode int

const (
	AddrImplied AddressingMode = iota
	AddrAccumulator
	AddrImmediate
	AddrZeroPage
	AddrZeroPageX
	AddrZeroPageY
	AddrAbsolute
	AddrAbsoluteX
	AddrAbsoluteY
	AddrIndirect        // JMP only; has the page-wrap bug
	AddrIndexedIndirect // (zp,X)
	AddrIndirectIndexed // (zp),Y
	AddrRelative        // branches
)

// resolver resolves one addressing mode into the byte address an instruction
// should act on. PC is left pointing just past the operand bytes it
// consumed. The bool return reports whether indexing crossed a page
// boundary, which several opcodes fold into an extra cycle.
type resolver func(c *CPU) (addr uint16, pageCrossed bool)

// resolvers is indexed by AddressingMode rather than dispatched through a
// switch, so adding a mode later is one table entry instead of touching
// every call site that branches on mode.
var resolvers = map[AddressingMode]resolver{
	AddrImplied:         func(c *CPU) (uint16, bool) { return 0, false },
	AddrAccumulator:     func(c *CPU) (uint16, bool) { return 0, false },
	AddrImmediate:       resolveImmediate,
	AddrZeroPage:        resolveZeroPage,
	AddrZeroPageX:       resolveZeroPageIndexed(regX),
	AddrZeroPageY:       resolveZeroPageIndexed(regY),
	AddrRelative:        resolveRelative,
	AddrAbsolute:        resolveAbsolute,
	AddrAbsoluteX:       resolveAbsoluteIndexed(regX),
	AddrAbsoluteY:       resolveAbsoluteIndexed(regY),
	AddrIndirect:        resolveIndirect,
	AddrIndexedIndirect: resolveIndexedIndirect,
	AddrIndirectIndexed: resolveIndirectIndexed,
}

// regSelector picks X or Y off the CPU at resolve time, letting the zero
// page and absolute indexed resolvers share one implementation each instead
// of two near-identical copies.
type regSelector func(c *CPU) uint8

func regX(c *CPU) uint8 { return c.X }
func regY(c *CPU) uint8 { return c.Y }

func resolveImmediate(c *CPU) (uint16, bool) {
	addr := c.PC
	c.PC++
	return addr, false
}

func resolveZeroPage(c *CPU) (uint16, bool) {
	addr := uint16(c.read(c.PC))
	c.PC++
	return addr, false
}

func resolveZeroPageIndexed(sel regSelector) resolver {
	return func(c *CPU) (uint16, bool) {
		addr := uint16(c.read(c.PC) + sel(c))
		c.PC++
		return addr & 0xFF, false
	}
}

// resolveRelative computes a branch target from a signed 8-bit offset. The
// page-crossed flag here isn't a cycle penalty by itself. The branch
// opcodes do not use this resolver: branch reads its own offset and adds
// the page-cross cycle only when the branch is taken.
func resolveRelative(c *CPU) (uint16, bool) {
	offset := int8(c.read(c.PC))
	c.PC++
	addr := uint16(int32(c.PC) + int32(offset))
	return addr, (c.PC & 0xFF00) != (addr & 0xFF00)
}

func resolveAbsolute(c *CPU) (uint16, bool) {
	addr := c.read16(c.PC)
	c.PC += 2
	return addr, false
}

// resolveAbsoluteIndexed adds X or Y to a 16-bit base. When the index
// carries into the high byte, real hardware first performs a read at the
// un-carried address; that read is observable on memory-mapped I/O, so it's
// reproduced here (only on a page cross) even though its value is discarded.
func resolveAbsoluteIndexed(sel regSelector) resolver {
	return func(c *CPU) (uint16, bool) {
		base := c.read16(c.PC)
		c.PC += 2
		index := uint16(sel(c))
		addr := base + index
		pageCrossed := (base & 0xFF00) != (addr & 0xFF00)
		if pageCrossed {
			dummy := (base & 0xFF00) | ((base + index) & 0xFF)
			c.read(dummy)
		}
		return addr, pageCrossed
	}
}

// resolveIndirect implements JMP (indirect)'s page-wrap bug: if the pointer
// sits at the end of a page, the high byte is fetched from the start of the
// same page instead of the next one.
func resolveIndirect(c *CPU) (uint16, bool) {
	ptr := c.read16(c.PC)
	c.PC += 2
	if ptr&0xFF == 0xFF {
		lo := c.read(ptr)
		hi := c.read(ptr & 0xFF00)
		return uint16(hi)<<8 | uint16(lo), false
	}
	return c.read16(ptr), false
}

func resolveIndexedIndirect(c *CPU) (uint16, bool) {
	base := c.read(c.PC)
	c.PC++
	ptr := (uint16(base) + uint16(c.X)) & 0xFF
	lo := c.read(ptr)
	hi := c.read((ptr + 1) & 0xFF)
	return uint16(hi)<<8 | uint16(lo), false
}

func resolveIndirectIndexed(c *CPU) (uint16, bool) {
	base := c.read(c.PC)
	c.PC++
	lo := c.read(uint16(base))
	hi := c.read((uint16(base) + 1) & 0xFF)
	baseAddr := uint16(hi)<<8 | uint16(lo)
	addr := baseAddr + uint16(c.Y)
	pageCrossed := (baseAddr & 0xFF00) != (addr & 0xFF00)
	if pageCrossed {
		dummy := (baseAddr & 0xFF00) | ((baseAddr + uint16(c.Y)) & 0xFF)
		c.read(dummy)
	}
	return addr, pageCrossed
}

// getOperandAddress resolves the operand address for an addressing mode,
// advancing PC past the operand bytes.
func (c *CPU) getOperandAddress(mode AddressingMode) (uint16, bool) {
	if r, ok := resolvers[mode]; ok {
		return r(c)
	}
	return 0, false
}

// getOperand reads the operand value. Accumulator mode bypasses memory
// entirely since its "operand" is a register.
func (c *CPU) getOperand(mode AddressingMode) (uint8, bool) {
	if mode == AddrAccumulator {
		return c.A, false
	}
	addr, pageCrossed := c.getOperandAddress(mode)
	if mode == AddrImmediate {
		return c.read(addr), false
	}
	return c.read(addr), pageCrossed
}
