//go:build rp2040

package main

import (
	"errors"
	"machine"

	"robocore/core"
	"tinygo.org/x/drivers/servo"
)

var errNoPeriodRegister = errors.New("match timer has no reset register")

// matchOutput routes one match register to a PWM slice channel.
type matchOutput struct {
	pwm     servo.PWM
	channel uint8
	routed  bool
}

// SliceMatchTimer implements core.MatchTimer on RP2040 PWM slices.
// The register that resets the counter sets the slice period. Every routed
// register drives one channel whose high side of the compare value is set
// by the timer's polarity.
type SliceMatchTimer struct {
	polarity core.Polarity
	slices   []servo.PWM
	outputs  [core.NumMatchRegs]matchOutput
	match    [core.NumMatchRegs]uint32

	periodReg core.MatchReg
	hasPeriod bool
	emr       uint32
	pwmMode   uint32
	running   bool
}

// NewSliceMatchTimer creates a timer over the given slices. All slices share
// one period.
func NewSliceMatchTimer(pol core.Polarity, slices ...servo.PWM) *SliceMatchTimer {
	return &SliceMatchTimer{polarity: pol, slices: slices}
}

// Route connects reg to pin. pin must belong to pwm.
func (t *SliceMatchTimer) Route(reg core.MatchReg, pwm servo.PWM, pin machine.Pin) error {
	channel, err := pwm.Channel(pin)
	if err != nil {
		return err
	}
	t.outputs[reg] = matchOutput{pwm: pwm, channel: channel, routed: true}
	return nil
}

func (t *SliceMatchTimer) SetMatch(reg core.MatchReg, ticks uint32) {
	t.match[reg] = ticks
	if !t.running {
		return
	}
	if t.hasPeriod && reg == t.periodReg {
		t.configure()
		return
	}
	t.apply(reg)
}

func (t *SliceMatchTimer) Match(reg core.MatchReg) uint32 {
	return t.match[reg]
}

// SetMatchControl picks the period register from the reset-on-match bits.
func (t *SliceMatchTimer) SetMatchControl(bits uint32) {
	t.hasPeriod = false
	for reg := core.MR0; reg < core.NumMatchRegs; reg++ {
		if bits&core.MatchControlBits(reg, core.MatchReset) != 0 {
			t.periodReg = reg
			t.hasPeriod = true
			return
		}
	}
}

// SetExternalMatch is recorded only; PWM mode owns the outputs.
func (t *SliceMatchTimer) SetExternalMatch(bits uint32) {
	t.emr = bits
}

func (t *SliceMatchTimer) SetPWMControl(bits uint32) {
	t.pwmMode = bits
}

func (t *SliceMatchTimer) SetCounterEnable(enabled bool) {
	t.running = enabled
	if enabled {
		t.configure()
		return
	}
	for reg := range t.outputs {
		out := &t.outputs[reg]
		if out.routed {
			out.pwm.Set(out.channel, 0)
		}
	}
}

// configure loads the period into every slice and refreshes all outputs.
func (t *SliceMatchTimer) configure() {
	if !t.hasPeriod {
		core.DebugPrintln("[timer] " + errNoPeriodRegister.Error())
		return
	}
	period := ticksToNanoseconds(t.match[t.periodReg])
	for _, pwm := range t.slices {
		if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
			core.DebugPrintln("[timer] configure failed: " + err.Error())
		}
	}
	for reg := core.MR0; reg < core.NumMatchRegs; reg++ {
		t.apply(reg)
	}
}

// apply scales reg's high time to the slice counter range.
func (t *SliceMatchTimer) apply(reg core.MatchReg) {
	out := &t.outputs[reg]
	if !out.routed || t.pwmMode&core.PWMChannelBit(reg) == 0 {
		return
	}
	period := t.match[t.periodReg]
	if period == 0 {
		return
	}
	high := core.PWMHighTicks(period, t.match[reg], t.polarity)
	out.pwm.Set(out.channel, uint32(uint64(out.pwm.Top())*uint64(high)/uint64(period)))
}

// ticksToNanoseconds converts match-timer ticks to a PWM period.
func ticksToNanoseconds(ticks uint32) uint64 {
	return uint64(ticks) * 1000000000 / core.CPUClockHz
}
