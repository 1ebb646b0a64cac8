package ppu

import "github.com/yoshiomiyamaegones/pkg/logger"

// masterPalette is the NES's fixed 64-entry color ROM, packed as 0x00RRGGBB
// so getARGBColor only has to OR in the alpha byte rather than unpack three
// separate slices per lookup.
var masterPalette = [64]uint32{
	// 0x00-0x0F
	0x808080, 0x003DA6, 0x0012B0, 0x440096, 0xA1005E, 0xC70028, 0xBA0600, 0x8C1700,
	0x5C2F00, 0x104500, 0x054A00, 0x00472E, 0x004166, 0x000000, 0x050505, 0x050505,

	// 0x10-0x1F
	0xC7C7C7, 0x0077FF, 0x2155FF, 0x8237FA, 0xEB2FB5, 0xFF2950, 0xFF2200, 0xD63200,
	0xC46200, 0x358000, 0x058F00, 0x008A55, 0x0099CC, 0x212121, 0x090909, 0x090909,

	// 0x20-0x2F
	0xFFFFFF, 0x0FD7FF, 0x69A2FF, 0xD480FF, 0xFF45F3, 0xFF618B, 0xFF8833, 0xFF9C12,
	0xFABC20, 0x9FE30E, 0x2BF035, 0x0CF0A4, 0x05FBFF, 0x5E5E5E, 0x0D0D0D, 0x0D0D0D,

	// 0x30-0x3F
	0xFFFFFF, 0xA6FCFF, 0xB3ECFF, 0xDAABEB, 0xFFA8F9, 0xFFABB3, 0xFFD2B0, 0xFFEFA6,
	0xFFF79C, 0xD7FFB3, 0xC6FFDE, 0xC4FFF6, 0xC4F0FF, 0xCCCCCC, 0x3C3C3C, 0x3C3C3C,
}

// backdropMirrors maps a palette RAM address to the universal backdrop slot
// it mirrors. $10/$14/$18/$1C alias $00/$04/$08/$0C on real hardware because
// the PPU's palette decoder ignores the top bit of the sub-palette index
// when color index 0 is selected.
var backdropMirrors = map[uint8]uint8{
	0x10: 0x00,
	0x14: 0x04,
	0x18: 0x08,
	0x1C: 0x0C,
}

func mirrorPaletteAddr(addr uint8) uint8 {
	addr &= 0x1F
	if mirrored, ok := backdropMirrors[addr]; ok {
		return mirrored
	}
	return addr
}

// PaletteManager owns the 32-byte palette RAM and the PPUMASK emphasis bits
// that tint every color it resolves.
type PaletteManager struct {
	// PaletteRAM holds 4 background + 4 sprite sub-palettes of 4 colors
	// each. Entries 0x10/0x14/0x18/0x1C mirror 0x00/0x04/0x08/0x0C.
	PaletteRAM [32]uint8

	Emphasis uint8 // bits 5-7 of PPUMASK: red/green/blue emphasis
}

// defaultPaletteRAM seeds a legible debug palette instead of all zeros, so
// a cartridge that forgets to write its own palette before the first frame
// still renders visibly distinct bands.
var defaultPaletteRAM = [32]uint8{
	0x0F, 0x30, 0x10, 0x00,
	0x30, 0x30, 0x30, 0x30,
	0x30, 0x30, 0x30, 0x30,
	0x30, 0x30, 0x30, 0x30,
	0x30, 0x30, 0x30, 0x30,
	0x30, 0x30, 0x30, 0x30,
	0x30, 0x30, 0x30, 0x30,
	0x30, 0x30, 0x30, 0x30,
}

func NewPaletteManager() *PaletteManager {
	pm := &PaletteManager{PaletteRAM: defaultPaletteRAM}
	logger.LogPPU("PaletteManager initialized with debugging colors")
	return pm
}

// ReadPalette reads a palette value, resolving backdrop mirroring.
func (pm *PaletteManager) ReadPalette(addr uint8) uint8 {
	return pm.PaletteRAM[mirrorPaletteAddr(addr)]
}

// WritePalette writes a palette value, resolving backdrop mirroring. Only
// the low 6 bits of a palette entry are wired on real hardware.
func (pm *PaletteManager) WritePalette(addr uint8, value uint8) {
	resolved := mirrorPaletteAddr(addr)
	logger.LogPPU("WritePalette: addr=$%02X -> $%02X, value=$%02X", addr&0x1F, resolved, value)
	pm.PaletteRAM[resolved] = value & 0x3F
}

// GetBackgroundColor resolves one of the 4 background sub-palettes. Color
// index 0 in every sub-palette aliases the universal backdrop entry.
func (pm *PaletteManager) GetBackgroundColor(palette uint8, colorIndex uint8) uint32 {
	if palette > 3 || colorIndex > 3 {
		return 0xFF000000
	}
	addr := palette*4 + colorIndex
	if colorIndex == 0 {
		addr = 0
	}
	return pm.getARGBColor(pm.ReadPalette(addr))
}

// GetSpriteColor resolves one of the 4 sprite sub-palettes, which live at
// palette RAM offset 0x10. Color index 0 is always transparent for sprites.
func (pm *PaletteManager) GetSpriteColor(palette uint8, colorIndex uint8) uint32 {
	if palette > 3 || colorIndex > 3 || colorIndex == 0 {
		return 0x00000000
	}
	addr := 0x10 + palette*4 + colorIndex
	return pm.getARGBColor(pm.ReadPalette(addr))
}

// getARGBColor converts a 6-bit palette index to 32-bit ARGB, applying
// color emphasis if PPUMASK has any of the emphasis bits set.
func (pm *PaletteManager) getARGBColor(paletteIndex uint8) uint32 {
	if paletteIndex >= 64 {
		paletteIndex = 0
	}

	rgb := masterPalette[paletteIndex]
	r := uint8(rgb >> 16)
	g := uint8(rgb >> 8)
	b := uint8(rgb)

	if pm.Emphasis != 0 {
		r, g, b = pm.applyEmphasis(r, g, b)
	}

	return 0xFF000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// emphasisChannels pairs each PPUMASK emphasis bit with the channel it
// would otherwise attenuate when NOT set.
var emphasisChannels = []struct {
	bit uint8
}{
	{0x20}, // red
	{0x40}, // green
	{0x80}, // blue
}

// applyEmphasis dims the two channels not selected by the emphasis bits,
// approximating the analog NES PPU's composite-video emphasis effect.
func (pm *PaletteManager) applyEmphasis(r, g, b uint8) (uint8, uint8, uint8) {
	channels := [3]*uint8{&r, &g, &b}
	for i, ch := range emphasisChannels {
		if pm.Emphasis&ch.bit == 0 {
			*channels[i] = uint8(float32(*channels[i]) * 0.75)
		}
	}
	return r, g, b
}

// SetEmphasis latches the color emphasis bits from a PPUMASK write.
func (pm *PaletteManager) SetEmphasis(emphasis uint8) {
	pm.Emphasis = emphasis & 0xE0
}

// GetPaletteDebugInfo snapshots both palette banks and the raw palette RAM
// for diagnostic dumps.
func (pm *PaletteManager) GetPaletteDebugInfo() map[string]interface{} {
	bgPalettes := make([][]uint32, 4)
	spritePalettes := make([][]uint32, 4)
	for palette := 0; palette < 4; palette++ {
		bgPalettes[palette] = make([]uint32, 4)
		spritePalettes[palette] = make([]uint32, 4)
		for color := 0; color < 4; color++ {
			bgPalettes[palette][color] = pm.GetBackgroundColor(uint8(palette), uint8(color))
			spritePalettes[palette][color] = pm.GetSpriteColor(uint8(palette), uint8(color))
		}
	}

	return map[string]interface{}{
		"background_palettes": bgPalettes,
		"sprite_palettes":     spritePalettes,
		"emphasis":            pm.Emphasis,
		"palette_ram":         pm.PaletteRAM,
	}
}
