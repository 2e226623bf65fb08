package sim

import (
	"sync"

	"robocore/core"
)

// RegisterTimer is a match timer reduced to its register file. The PWM
// output of a channel is derived from the registers and Polarity.
type RegisterTimer struct {
	Polarity core.Polarity

	mu      sync.Mutex
	match   [core.NumMatchRegs]uint32
	mcr     uint32
	emr     uint32
	pwmc    uint32
	enabled bool
	writes  int
}

func (t *RegisterTimer) SetMatch(reg core.MatchReg, ticks uint32) {
	t.mu.Lock()
	t.match[reg] = ticks
	t.writes++
	t.mu.Unlock()
}

func (t *RegisterTimer) Match(reg core.MatchReg) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.match[reg]
}

func (t *RegisterTimer) SetMatchControl(bits uint32) {
	t.mu.Lock()
	t.mcr = bits
	t.mu.Unlock()
}

func (t *RegisterTimer) SetExternalMatch(bits uint32) {
	t.mu.Lock()
	t.emr = bits
	t.mu.Unlock()
}

func (t *RegisterTimer) SetPWMControl(bits uint32) {
	t.mu.Lock()
	t.pwmc = bits
	t.mu.Unlock()
}

func (t *RegisterTimer) SetCounterEnable(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// Enabled reports whether the counter is running
func (t *RegisterTimer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Writes returns the number of match register writes
func (t *RegisterTimer) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

// periodReg returns the match register that resets the counter
func (t *RegisterTimer) periodReg() (core.MatchReg, bool) {
	for reg := core.MatchReg(0); reg < core.NumMatchRegs; reg++ {
		if t.mcr&core.MatchControlBits(reg, core.MatchReset) != 0 {
			return reg, true
		}
	}
	return 0, false
}

// HighTicks returns how long the output of reg is high in each period. It
// is 0 for a stopped counter or a register not in PWM mode.
func (t *RegisterTimer) HighTicks(reg core.MatchReg) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	period, ok := t.periodReg()
	if !ok || !t.enabled || t.pwmc&core.PWMChannelBit(reg) == 0 {
		return 0
	}
	return core.PWMHighTicks(t.match[period], t.match[reg], t.Polarity)
}

// PeriodTicks returns the counter period, 0 if no register resets it
func (t *RegisterTimer) PeriodTicks() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	period, ok := t.periodReg()
	if !ok {
		return 0
	}
	return t.match[period]
}
