// Package nes assembles the CPU, PPU, APU, cartridge, and bus into a single
// schedulable System, and exposes the narrow host contract described in the
// external interfaces: a pixel hook, an audio hook, button state, frame
// clocking, and reset.
package nes

import (
	"github.com/yoshiomiyamaegones/pkg/apu"
	"github.com/yoshiomiyamaegones/pkg/bus"
	"github.com/yoshiomiyamaegones/pkg/cartridge"
	"github.com/yoshiomiyamaegones/pkg/cpu"
	"github.com/yoshiomiyamaegones/pkg/ppu"
)

// maxStepsPerFrame guards against a hung CPU (e.g. stuck on a self-jump)
// spinning ClockFrame forever.
const maxStepsPerFrame = 200000

// System is the assembled console: CPU, PPU, APU, and the bus that wires
// them together with two controller ports and DMA arbitration.
type System struct {
	CPU *cpu.CPU
	PPU *ppu.PPU
	APU *apu.APU
	Bus *bus.Bus

	Cartridge *cartridge.Cartridge

	pixelFunc func(x, y int, rgb uint32)
	audioFunc func(samples []float32)
}

// NewSystem creates a System with no cartridge loaded; load one with
// LoadCartridge before calling ClockFrame.
func NewSystem() *System {
	s := &System{
		Bus: bus.New(),
		PPU: ppu.New(),
		APU: apu.New(),
	}
	s.CPU = cpu.New(s.Bus)

	s.Bus.SetPPU(s.PPU)
	s.Bus.SetAPU(s.APU)
	s.APU.SetMemory(s.Bus)

	return s
}

// LoadCartridge installs a parsed cartridge and wires it into the PPU
// (pattern tables, nametable mirroring) and the bus (PRG space).
func (s *System) LoadCartridge(cart *cartridge.Cartridge) {
	s.Cartridge = cart
	s.Bus.SetCartridge(cart)
	s.PPU.SetCartridge(cart)
}

// SetPixelFunc installs the host's pixel sink. It is called once per pixel,
// in raster order, immediately after a frame completes.
func (s *System) SetPixelFunc(fn func(x, y int, rgb uint32)) {
	s.pixelFunc = fn
}

// SetAudioFunc installs the host's audio sink. It is called once per
// ClockFrame with the samples produced by the APU since the previous call.
func (s *System) SetAudioFunc(fn func(samples []float32)) {
	s.audioFunc = fn
}

// SetButtons replaces the full button mask for one controller port (0 or 1).
func (s *System) SetButtons(pad int, state uint8) {
	switch pad {
	case 0:
		s.Bus.Pad1.SetButtons(state)
	case 1:
		s.Bus.Pad2.SetButtons(state)
	}
}

// HardReset reinitializes CPU, PPU, and APU state as if the console had
// just been powered on.
func (s *System) HardReset() {
	s.CPU.Reset()
	s.PPU.Reset()
	s.APU.Reset()
}

// SoftReset pulses the reset line: CPU state reloads from the reset vector,
// PPU/APU state is left alone (matching the physical front-panel reset
// button, which doesn't depower the console).
func (s *System) SoftReset() {
	s.CPU.Reset()
}

// ClockFrame advances the system until the PPU signals end-of-frame or the
// CPU halts, arbitrating DMA at CPU-instruction boundaries, then flushes the
// PPU's frame buffer and the pending audio samples to the host hooks.
func (s *System) ClockFrame() {
	steps := 0
	for !s.PPU.FrameComplete && !s.CPU.Halted && steps < maxStepsPerFrame {
		s.clockInstruction()
		steps++
	}
	s.PPU.FrameComplete = false

	s.flushPixels()
	s.flushAudio()
}

// clockInstruction advances one CPU instruction's worth of cycles (the
// teacher's CPU is instruction-atomic, not per-cycle), stepping the PPU 3x
// and the APU 1x per CPU cycle, and folds in DMA stall cycles in one block
// immediately after the instruction that triggered them. This is a
// documented simplification of true sub-instruction DMA interleaving: see
// DESIGN.md.
func (s *System) clockInstruction() {
	cpuCycles := s.CPU.Step()
	s.Bus.AdvanceCycles(cpuCycles)
	s.stepPeripherals(cpuCycles)

	if stall := s.Bus.TakeStallCycles(); stall > 0 {
		s.Bus.AdvanceCycles(stall)
		s.stepPeripherals(stall)
	}

	if s.APU.IRQPending() {
		s.CPU.TriggerIRQ()
	}
}

// stepPeripherals advances the PPU 3x and the APU 1x per CPU cycle elapsed,
// and samples the NMI/mapper-IRQ lines after every PPU step.
func (s *System) stepPeripherals(cpuCycles int) {
	for i := 0; i < cpuCycles; i++ {
		for j := 0; j < 3; j++ {
			s.PPU.Step()

			if s.PPU.NMIRequested {
				s.CPU.TriggerNMI()
				s.PPU.NMIRequested = false
			}

			if s.PPU.IsMapperIRQPending() {
				s.CPU.TriggerIRQ()
				s.PPU.ClearMapperIRQ()
			}
		}

		s.APU.Step()
	}
}

// flushPixels converts the completed frame's 32-bit ARGB buffer into
// per-pixel host callbacks, in raster order.
func (s *System) flushPixels() {
	if s.pixelFunc == nil {
		return
	}
	buf := s.PPU.GetDisplayFrameBuffer()
	for i, rgb := range buf {
		s.pixelFunc(i%256, i/256, rgb)
	}
}

// flushAudio hands the APU's accumulated samples to the host and drains
// the buffer so the next frame starts clean.
func (s *System) flushAudio() {
	if s.audioFunc == nil {
		return
	}
	if len(s.APU.Output) == 0 {
		return
	}
	s.audioFunc(s.APU.Output)
	s.APU.Output = s.APU.Output[:0]
}
