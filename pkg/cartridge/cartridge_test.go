package cartridge

import (
	"bytes"
	"testing"
)

func createMinimalROM() []byte {
	rom := make([]byte, 0)

	header := []byte{
		0x4E, 0x45, 0x53, 0x1A, // "NES\x1A"
		0x01,                                           // 1 x 16KB PRG ROM
		0x01,                                           // 1 x 8KB CHR ROM
		0x00,                                           // Flags 6: horizontal mirroring, mapper 0
		0x00,                                           // Flags 7: mapper 0
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // padding
	}
	rom = append(rom, header...)

	prgROM := make([]byte, 16384)
	prgROM[0] = 0x42
	prgROM[0x3FFC] = 0x00 // reset vector low
	prgROM[0x3FFD] = 0x80 // reset vector high
	rom = append(rom, prgROM...)

	chrROM := make([]byte, 8192)
	chrROM[0] = 0x55
	rom = append(rom, chrROM...)

	return rom
}

func TestCartridgeLoader(t *testing.T) {
	rom := createMinimalROM()

	cart, err := LoadFromReader(bytes.NewReader(rom))
	if err != nil {
		t.Fatalf("failed to load test ROM: %v", err)
	}

	if cart.Header.PRGROMSize != 1 {
		t.Errorf("PRG ROM size = %d, want 1", cart.Header.PRGROMSize)
	}
	if cart.Header.CHRROMSize != 1 {
		t.Errorf("CHR ROM size = %d, want 1", cart.Header.CHRROMSize)
	}
	if len(cart.PRGROM) != 16384 {
		t.Errorf("PRG ROM length = %d, want 16384", len(cart.PRGROM))
	}
	if len(cart.CHRROM) != 8192 {
		t.Errorf("CHR ROM length = %d, want 8192", len(cart.CHRROM))
	}
	if cart.Mapper == nil {
		t.Fatal("mapper should not be nil")
	}

	if value := cart.ReadPRG(0x8000); value != 0x42 {
		t.Errorf("first PRG byte = 0x%02X, want 0x42", value)
	}
	if value := cart.ReadCHR(0x0000); value != 0x55 {
		t.Errorf("first CHR byte = 0x%02X, want 0x55", value)
	}
}

func TestInvalidROM(t *testing.T) {
	invalidMagic := []byte{0x4E, 0x45, 0x53, 0x00}
	if _, err := LoadFromReader(bytes.NewReader(invalidMagic)); err == nil {
		t.Error("expected error for invalid magic number")
	}

	truncated := []byte{0x4E, 0x45, 0x53, 0x1A, 0x01}
	if _, err := LoadFromReader(bytes.NewReader(truncated)); err == nil {
		t.Error("expected error for truncated ROM")
	}
}

func TestRomErrorKind(t *testing.T) {
	_, err := LoadFromReader(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x00}))
	romErr, ok := err.(*RomError)
	if !ok {
		t.Fatalf("expected *RomError, got %T", err)
	}
	if romErr.Kind != InvalidROM {
		t.Errorf("Kind = %v, want InvalidROM", romErr.Kind)
	}
}

func TestMapperSelection(t *testing.T) {
	testCases := []struct {
		flags6, flags7 uint8
		mapperNum      uint8
		shouldFail     bool
	}{
		{0x00, 0x00, 0, false},
		{0x10, 0x00, 1, false},
		{0x20, 0x00, 2, false},
		{0x30, 0x00, 3, false},
		{0x40, 0x00, 4, false},
		{0x50, 0x00, 5, true}, // unsupported
	}

	for _, tc := range testCases {
		rom := createMinimalROM()
		rom[6] = tc.flags6
		rom[7] = tc.flags7

		cart, err := LoadFromReader(bytes.NewReader(rom))
		if tc.shouldFail {
			if err == nil {
				t.Errorf("expected error for unsupported mapper %d", tc.mapperNum)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for mapper %d: %v", tc.mapperNum, err)
		}
		if cart == nil {
			t.Errorf("cart should not be nil for mapper %d", tc.mapperNum)
		}
	}
}

func TestMirroringModes(t *testing.T) {
	testCases := []struct {
		flags6    uint8
		mirroring MirroringMode
	}{
		{0x00, MirroringHorizontal},
		{0x01, MirroringVertical},
		{0x08, MirroringFourScreen},
	}

	for _, tc := range testCases {
		rom := createMinimalROM()
		rom[6] = tc.flags6

		cart, err := LoadFromReader(bytes.NewReader(rom))
		if err != nil {
			t.Fatalf("failed to load ROM: %v", err)
		}
		if got := cart.Mirroring(); got != tc.mirroring {
			t.Errorf("mirroring = %v, want %v", got, tc.mirroring)
		}
	}
}
