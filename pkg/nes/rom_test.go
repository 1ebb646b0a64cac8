package nes_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yoshiomiyamaegones/pkg/cartridge"
	"github.com/yoshiomiyamaegones/pkg/nes"
)

// romTestResult records a single real-ROM diagnostic run's outcome, for
// tests that log what happened rather than asserting a specific frame.
type romTestResult struct {
	TestName     string
	Passed       bool
	ErrorMessage string
	Cycles       uint64
	Duration     time.Duration
}

// loadROMFromFile loads a cartridge from the roms/ fixtures directory.
// Real commercial test ROMs (nestest.nes, instr_test-v5, etc.) aren't
// redistributed with this module, so any test built on this helper skips
// itself when the file is absent instead of failing.
func loadROMFromFile(filename string) (*cartridge.Cartridge, error) {
	path := filepath.Join("roms", filename)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return cartridge.LoadFromReader(file)
}

// runROMTest loads romFile, clocks it for up to maxCycles CPU cycles, and
// reports what happened. It never fails the test itself on a load error;
// callers skip when the fixture ROM isn't present.
func runROMTest(t *testing.T, romFile string, maxCycles uint64) *romTestResult {
	t.Helper()
	start := time.Now()
	result := &romTestResult{TestName: romFile}

	cart, err := loadROMFromFile(romFile)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	system := nes.NewSystem()
	system.LoadCartridge(cart)
	system.HardReset()

	var cycles uint64
	for cycles < maxCycles {
		cycles += uint64(system.CPU.Step())
	}

	result.Passed = true
	result.Cycles = cycles
	result.Duration = time.Since(start)
	return result
}

func TestROMDirectory(t *testing.T) {
	entries, err := os.ReadDir("roms")
	if err != nil {
		t.Skip("no roms/ fixture directory present")
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".nes" {
			continue
		}
		result := runROMTest(t, e.Name(), 1_000_000)
		if !result.Passed {
			t.Logf("%s: %s", e.Name(), result.ErrorMessage)
		}
	}
}

func TestNestestROM(t *testing.T) {
	if _, err := loadROMFromFile("nestest.nes"); err != nil {
		t.Skip("nestest.nes not present")
	}
	result := runROMTest(t, "nestest.nes", 26_554)
	if !result.Passed {
		t.Fatalf("nestest.nes: %s", result.ErrorMessage)
	}
}

func TestInstrTestROM(t *testing.T) {
	if _, err := loadROMFromFile("instr_test-v5/all_instrs.nes"); err != nil {
		t.Skip("instr_test-v5/all_instrs.nes not present")
	}
	result := runROMTest(t, "instr_test-v5/all_instrs.nes", 50_000_000)
	if !result.Passed {
		t.Fatalf("all_instrs.nes: %s", result.ErrorMessage)
	}
}

func TestInstrTest02ImpliedROM(t *testing.T) {
	if _, err := loadROMFromFile("instr_test-v5/rom_singles/02-implied.nes"); err != nil {
		t.Skip("02-implied.nes not present")
	}
	result := runROMTest(t, "instr_test-v5/rom_singles/02-implied.nes", 10_000_000)
	if !result.Passed {
		t.Fatalf("02-implied.nes: %s", result.ErrorMessage)
	}
}

func TestInstrTest03ImmediateROM(t *testing.T) {
	if _, err := loadROMFromFile("instr_test-v5/rom_singles/03-immediate.nes"); err != nil {
		t.Skip("03-immediate.nes not present")
	}
	result := runROMTest(t, "instr_test-v5/rom_singles/03-immediate.nes", 10_000_000)
	if !result.Passed {
		t.Fatalf("03-immediate.nes: %s", result.ErrorMessage)
	}
}

func TestInstrTest04ZeroPageROM(t *testing.T) {
	if _, err := loadROMFromFile("instr_test-v5/rom_singles/04-zero_page.nes"); err != nil {
		t.Skip("04-zero_page.nes not present")
	}
	result := runROMTest(t, "instr_test-v5/rom_singles/04-zero_page.nes", 10_000_000)
	if !result.Passed {
		t.Fatalf("04-zero_page.nes: %s", result.ErrorMessage)
	}
}

func TestCPUDummyReadsROM(t *testing.T) {
	if _, err := loadROMFromFile("cpu_dummy_reads.nes"); err != nil {
		t.Skip("cpu_dummy_reads.nes not present")
	}
	result := runROMTest(t, "cpu_dummy_reads.nes", 5_000_000)
	if !result.Passed {
		t.Fatalf("cpu_dummy_reads.nes: %s", result.ErrorMessage)
	}
}

func TestPPUSpriteHitROM(t *testing.T) {
	if _, err := loadROMFromFile("ppu_sprite_hit/rom_singles/01.basics.nes"); err != nil {
		t.Skip("ppu_sprite_hit/rom_singles/01.basics.nes not present")
	}
	result := runROMTest(t, "ppu_sprite_hit/rom_singles/01.basics.nes", 5_000_000)
	if !result.Passed {
		t.Fatalf("01.basics.nes: %s", result.ErrorMessage)
	}
}

func BenchmarkROMExecution(b *testing.B) {
	cart, err := loadROMFromFile("nestest.nes")
	if err != nil {
		b.Skip("nestest.nes not present")
	}

	for i := 0; i < b.N; i++ {
		system := nes.NewSystem()
		system.LoadCartridge(cart)
		system.HardReset()
		var cycles uint64
		for cycles < 100_000 {
			cycles += uint64(system.CPU.Step())
		}
	}
}
