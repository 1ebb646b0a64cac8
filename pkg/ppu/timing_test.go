package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDotScanlineInvariants is table-driven over points in the 341x262
// dot/scanline grid where the PPU's state machine has a hardware-specified
// side effect, confirming Step lands on each one at the right dot instead
// of asserting only the final frame-boundary wraparound.
func TestDotScanlineInvariants(t *testing.T) {
	cases := []struct {
		name           string
		steps          int
		wantScanline   int
		wantCycle      int
		wantVBlank     bool
		wantFrameAdded uint64
	}{
		{name: "one scanline elapses every 341 dots", steps: 341, wantScanline: 1, wantCycle: 0},
		{name: "vblank flag sets at scanline 241 dot 1", steps: 241*341 + 1, wantScanline: 241, wantCycle: 1, wantVBlank: true},
		{name: "full frame wraps back to pre-render", steps: 261 * 341, wantScanline: -1, wantCycle: 0, wantVBlank: true, wantFrameAdded: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := createTestPPU()
			startFrame := p.Frame

			for i := 0; i < tc.steps; i++ {
				p.Step()
			}

			require.Equal(t, tc.wantScanline, p.Scanline, "scanline after %d dots", tc.steps)
			assert.Equal(t, tc.wantCycle, p.Cycle, "cycle after %d dots", tc.steps)
			assert.Equal(t, tc.wantVBlank, p.PPUSTATUS&PPUSTATUSVBlank != 0, "vblank flag after %d dots", tc.steps)
			assert.Equal(t, startFrame+tc.wantFrameAdded, p.Frame, "frame counter after %d dots", tc.steps)
		})
	}
}

// TestPreRenderClearsStatusFlags confirms the pre-render scanline's dot 1
// clears VBlank, sprite-0-hit, and sprite-overflow together, matching real
// hardware's single-shot status-register reset rather than per-flag timing.
func TestPreRenderClearsStatusFlags(t *testing.T) {
	p := createTestPPU()
	p.PPUSTATUS = PPUSTATUSVBlank | PPUSTATUSSprite0Hit | PPUSTATUSOverflow
	p.Scanline = -1
	p.Cycle = 0

	p.Step()

	assert.Zero(t, p.PPUSTATUS&(PPUSTATUSVBlank|PPUSTATUSSprite0Hit|PPUSTATUSOverflow),
		"pre-render dot 1 should clear VBlank/sprite-0-hit/overflow together")
}
