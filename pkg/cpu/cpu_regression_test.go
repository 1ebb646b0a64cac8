package cpu

import (
	"testing"

	"github.com/go-test/deep"
)

// registerSnapshot captures the CPU's architectural state for a
// before/after diff, without the bus plumbing or debug bookkeeping fields.
type registerSnapshot struct {
	A, X, Y, SP uint8
	PC          uint16
	P           uint8
}

func snapshot(c *CPU) registerSnapshot {
	return registerSnapshot{A: c.A, X: c.X, Y: c.Y, SP: c.SP, PC: c.PC, P: c.P}
}

// TestRegisterTransitions runs a short, known instruction sequence and
// diffs the register snapshot after each step against a hand-computed
// expectation, using go-test/deep so a mismatch reports exactly which
// field(s) diverged instead of one opaque t.Errorf per register.
func TestRegisterTransitions(t *testing.T) {
	c := createTestCPU()
	c.PC = 0x0000

	program := []uint8{
		0xA9, 0x10, // LDA #$10
		0xAA,       // TAX
		0xE8,       // INX
		0x8E, 0x00, 0x02, // STX $0200
	}
	for i, b := range program {
		c.Memory.Write(uint16(i), b)
	}

	want := []registerSnapshot{
		{A: 0x10, X: 0x00, SP: 0xFD, PC: 0x0002, P: FlagUnused | FlagInterrupt},
		{A: 0x10, X: 0x10, SP: 0xFD, PC: 0x0003, P: FlagUnused | FlagInterrupt},
		{A: 0x10, X: 0x11, SP: 0xFD, PC: 0x0004, P: FlagUnused | FlagInterrupt},
		{A: 0x10, X: 0x11, SP: 0xFD, PC: 0x0007, P: FlagUnused | FlagInterrupt},
	}

	for i, w := range want {
		c.Step()
		got := snapshot(c)
		if diff := deep.Equal(got, w); diff != nil {
			t.Errorf("step %d register mismatch: %v", i, diff)
		}
	}

	if v := c.Memory.Read(0x0200); v != 0x11 {
		t.Errorf("STX $0200 = %02X, want 0x11", v)
	}
}
