package apu

// Duty cycle sequences for pulse channels (8 steps each)
var dutyCycles = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0}, // 12.5%
	{0, 1, 1, 0, 0, 0, 0, 0}, // 25%
	{0, 1, 1, 1, 1, 0, 0, 0}, // 50%
	{1, 0, 0, 1, 1, 1, 1, 1}, // 25% (negated)
}

// Triangle wave sequence (32 steps)
var triangleSequence = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// Noise periods for different frequencies
var noisePeriods = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

// DMC rate table (in CPU cycles)
var dmcRates = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// stepPulse advances a pulse channel's timer and, on underflow, its duty
// sequence index.
func (a *APU) stepPulse(pulse *PulseChannel) {
	if !pulse.Enabled {
		return
	}
	if pulse.Timer > 0 {
		pulse.Timer--
		return
	}
	pulse.Timer = pulse.TimerValue
	pulse.Sequence = (pulse.Sequence + 1) % 8
}

// stepTriangle advances the triangle channel. Its sequence only moves when
// both the length counter and linear counter are nonzero.
func (a *APU) stepTriangle() {
	if !a.Triangle.Enabled {
		return
	}
	if a.Triangle.Timer > 0 {
		a.Triangle.Timer--
		return
	}
	a.Triangle.Timer = a.Triangle.TimerValue
	if a.Triangle.Length.Value > 0 && a.Triangle.LinearCounter > 0 {
		a.Triangle.Sequence = (a.Triangle.Sequence + 1) % 32
	}
}

// lfsrTapBit returns the feedback bit for the noise channel's 15-bit LFSR.
// Mode 1 taps bit 6 instead of bit 1, producing a shorter, metallic cycle.
func lfsrTapBit(shiftReg uint16, mode bool) uint16 {
	if mode {
		return (shiftReg & 1) ^ ((shiftReg >> 6) & 1)
	}
	return (shiftReg & 1) ^ ((shiftReg >> 1) & 1)
}

// stepNoise advances the noise channel's timer and, on underflow, shifts
// its LFSR by one tap.
func (a *APU) stepNoise() {
	if !a.Noise.Enabled {
		return
	}
	if a.Noise.Timer > 0 {
		a.Noise.Timer--
		return
	}
	a.Noise.Timer = a.Noise.TimerValue
	bit := lfsrTapBit(a.Noise.ShiftReg, a.Noise.Mode)
	a.Noise.ShiftReg = (a.Noise.ShiftReg >> 1) | (bit << 14)
}

// stepDMC drives the delta modulation channel's sample-fetch cadence off
// the rate table rather than a per-cycle decrement, since DMC periods
// don't divide the CPU clock evenly.
func (a *APU) stepDMC() {
	if !a.DMC.Enabled || a.DMC.Rate == 0 {
		return
	}
	period := dmcRates[a.DMC.Rate&0x0F]
	if a.Cycles%uint64(period) == 0 {
		a.stepDMCSample()
	}
}

// stepDMCSample refills the sample buffer from cartridge memory when empty
// and shifts one output bit into the DMC's 7-bit delta counter.
func (a *APU) stepDMCSample() {
	if a.DMC.BufferEmpty && a.DMC.CurrentLength > 0 && a.Memory != nil {
		a.DMC.SampleBuffer = a.Memory.Read(a.DMC.CurrentAddress)
		a.dmaStallCycles += 4 // sample fetch steals the bus from the CPU
		a.DMC.BufferEmpty = false
		a.DMC.CurrentAddress++
		if a.DMC.CurrentAddress == 0 {
			a.DMC.CurrentAddress = 0x8000 // wrap into ROM space
		}
		a.DMC.CurrentLength--

		if a.DMC.CurrentLength == 0 {
			if a.DMC.Loop {
				a.DMC.CurrentLength = a.DMC.SampleLength
				a.DMC.CurrentAddress = a.DMC.SampleAddress
			} else if a.DMC.IRQEnabled {
				a.DMC.irqFlag = true
			}
		}
	}

	if a.DMC.BitsRemaining == 0 {
		a.DMC.BitsRemaining = 8
		if !a.DMC.BufferEmpty {
			a.DMC.Buffer = a.DMC.SampleBuffer
			a.DMC.BufferEmpty = true
			a.DMC.Silence = false
		} else {
			a.DMC.Silence = true
		}
	}

	if a.DMC.BitsRemaining > 0 && !a.DMC.Silence {
		a.DMC.BitsRemaining--
		bit := (a.DMC.Buffer >> a.DMC.BitsRemaining) & 1
		if bit == 1 && a.DMC.LoadCounter <= 125 {
			a.DMC.LoadCounter += 2
		} else if bit == 0 && a.DMC.LoadCounter >= 2 {
			a.DMC.LoadCounter -= 2
		}
	}
}

// stepEnvelope advances a channel's volume envelope divider/decay counter.
func (a *APU) stepEnvelope(env *EnvelopeGenerator) {
	if env.Start {
		env.Start = false
		env.Counter = 15
		env.Divider = env.Volume
		return
	}
	if env.Divider > 0 {
		env.Divider--
		return
	}
	env.Divider = env.Volume
	if env.Counter > 0 {
		env.Counter--
	} else if env.Loop {
		env.Counter = 15
	}
}

// envelopeOutput resolves a channel's current volume: either the constant
// volume register, or the envelope's decay counter.
func envelopeOutput(env *EnvelopeGenerator, constantVolume uint8) uint8 {
	if env.Constant {
		return constantVolume
	}
	return env.Counter
}

// stepLengthCounter decrements a length counter unless halted or exhausted.
func (a *APU) stepLengthCounter(lc *LengthCounter) {
	if lc.Enabled && !lc.Halt && lc.Value > 0 {
		lc.Value--
	}
}

// stepSweep advances a pulse channel's sweep divider and, on expiry or an
// immediate reload with a zero period, applies the pitch bend.
func (a *APU) stepSweep(pulse *PulseChannel, sweep *SweepUnit, channel1 bool) {
	if sweep.Reload {
		sweep.Counter = sweep.Period
		sweep.Reload = false
		if sweep.Enabled && sweep.Period == 0 {
			a.performSweep(pulse, sweep, channel1)
		}
		return
	}
	if sweep.Counter > 0 {
		sweep.Counter--
		return
	}
	sweep.Counter = sweep.Period
	if sweep.Enabled {
		a.performSweep(pulse, sweep, channel1)
	}
}

// sweepTargetPeriod computes the period a sweep unit would move a pulse
// channel's timer to. Pulse 1 negates with one's complement (an extra -1)
// and pulse 2 with two's complement; both exist only because the original
// hardware wired the two pulse channels' subtractors slightly differently.
// ok is false when a negative-sweep subtraction would underflow.
func sweepTargetPeriod(pulse *PulseChannel, sweep *SweepUnit, channel1 bool) (target uint16, ok bool) {
	change := pulse.TimerValue >> sweep.Shift
	if !sweep.Negate {
		return pulse.TimerValue + change, true
	}
	if channel1 {
		if change+1 > pulse.TimerValue {
			return 0, false
		}
		return pulse.TimerValue - change - 1, true
	}
	if change > pulse.TimerValue {
		return 0, false
	}
	return pulse.TimerValue - change, true
}

// performSweep applies a sweep unit's computed target period to the pulse
// channel's timer, provided the result is in the valid 11-bit range.
func (a *APU) performSweep(pulse *PulseChannel, sweep *SweepUnit, channel1 bool) {
	target, ok := sweepTargetPeriod(pulse, sweep, channel1)
	if ok && target >= 8 && target <= 0x7FF {
		pulse.TimerValue = target
	}
}

// isSweepMuting reports whether a sweep unit's target period (or an
// underflow toward one) would silence the channel even before the divider
// next fires - real hardware mutes continuously, not just on sweep events.
func (a *APU) isSweepMuting(pulse *PulseChannel, sweep *SweepUnit) bool {
	if !sweep.Enabled {
		return false
	}
	target, ok := sweepTargetPeriod(pulse, sweep, pulse == &a.Pulse1)
	if !ok {
		return true
	}
	return target < 8 || target > 0x7FF
}

// getPulseOutput returns a pulse channel's 4-bit output sample.
func (a *APU) getPulseOutput(pulse *PulseChannel) uint8 {
	if !pulse.Enabled || pulse.Length.Value == 0 {
		return 0
	}
	if pulse.TimerValue < 8 || pulse.TimerValue > 0x7FF {
		return 0
	}
	if a.isSweepMuting(pulse, &pulse.Sweep) {
		return 0
	}
	if dutyCycles[pulse.DutyCycle][pulse.Sequence] == 0 {
		return 0
	}
	return envelopeOutput(&pulse.Envelope, pulse.Volume)
}

// getTriangleOutput returns the triangle channel's current sequence sample.
func (a *APU) getTriangleOutput() uint8 {
	if !a.Triangle.Enabled || a.Triangle.Length.Value == 0 || a.Triangle.LinearCounter == 0 {
		return 0
	}
	return triangleSequence[a.Triangle.Sequence]
}

// getNoiseOutput returns the noise channel's 4-bit output sample. Bit 0 of
// the shift register set means "silent" on real hardware.
func (a *APU) getNoiseOutput() uint8 {
	if !a.Noise.Enabled || a.Noise.Length.Value == 0 {
		return 0
	}
	if a.Noise.ShiftReg&1 != 0 {
		return 0
	}
	return envelopeOutput(&a.Noise.Envelope, a.Noise.Volume)
}

// getDMCOutput returns the DMC's 7-bit delta counter as its output sample.
func (a *APU) getDMCOutput() uint8 {
	if !a.DMC.Enabled {
		return 0
	}
	return a.DMC.LoadCounter
}

// mixChannels combines the five channel outputs using the nonlinear mixing
// formulas from the hardware reference, then scales the result into
// [-1.0, 1.0] for the audio ring buffer.
func (a *APU) mixChannels() float32 {
	pulse1 := a.getPulseOutput(&a.Pulse1)
	pulse2 := a.getPulseOutput(&a.Pulse2)
	triangle := a.getTriangleOutput()
	noise := a.getNoiseOutput()
	dmc := a.getDMCOutput()

	var pulseOut float32
	if pulseSum := pulse1 + pulse2; pulseSum > 0 {
		pulseOut = 95.88 / ((8128.0 / float32(pulseSum)) + 100.0)
	}

	var tndOut float32
	if tndSum := float32(triangle)/8227.0 + float32(noise)/12241.0 + float32(dmc)/22638.0; tndSum > 0 {
		tndOut = 159.79 / (1.0/tndSum + 100.0)
	}

	output := (pulseOut + tndOut) * 2.0
	switch {
	case output > 1.0:
		return 1.0
	case output < -1.0:
		return -1.0
	default:
		return output
	}
}

// stepLinearCounter advances the triangle channel's linear counter, which
// gates sequence advancement independently of the shared length counter.
func (a *APU) stepLinearCounter() {
	if a.Triangle.LinearControl {
		a.Triangle.LinearCounter = a.Triangle.LinearReload
	} else if a.Triangle.LinearCounter > 0 {
		a.Triangle.LinearCounter--
	}
	if !a.Triangle.Length.Halt {
		a.Triangle.LinearControl = false
	}
}

// frameSequencerStep fires the quarter-frame (envelope/linear counter) and
// half-frame (length counter/sweep) clocks the frame sequencer schedules.
func (a *APU) frameSequencerStep(quarter, half bool) {
	if quarter {
		a.stepEnvelopes()
		a.stepLinearCounter()
	}
	if half {
		a.stepLengthCounters()
		a.stepSweeps()
	}
}
