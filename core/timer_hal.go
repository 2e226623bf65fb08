package core

// MatchReg selects one of the four match (compare) registers of a match timer.
type MatchReg uint8

const (
	MR0 MatchReg = iota
	MR1
	MR2
	MR3
	NumMatchRegs
)

// Match control register bits. Each match register owns a 3-bit field:
// interrupt, reset and stop on match.
const (
	MatchInterrupt = 1 << 0
	MatchReset     = 1 << 1
	MatchStop      = 1 << 2
)

// MatchControlBits returns the match control bits for reg.
func MatchControlBits(reg MatchReg, bits uint32) uint32 {
	return bits << (3 * uint32(reg))
}

// External match register layout: EMn level bits in 0..3 and a 2-bit
// control field per channel starting at bit 4.
const (
	ExternalMatchNothing = 0
	ExternalMatchClear   = 1
	ExternalMatchSet     = 2
	ExternalMatchToggle  = 3
)

// ExternalMatchBits returns the external match bits for reg: the initial
// output level and the action taken on match.
func ExternalMatchBits(reg MatchReg, level bool, action uint32) uint32 {
	v := action << (4 + 2*uint32(reg))
	if level {
		v |= 1 << uint32(reg)
	}
	return v
}

// PWMChannelBit returns the PWM control bit that switches reg's output to PWM mode.
// Which side of the match is high depends on the timer's Polarity.
func PWMChannelBit(reg MatchReg) uint32 {
	return 1 << uint32(reg)
}

// Polarity is the side of the compare match on which a PWM output is high.
type Polarity uint8

const (
	// HighAfterMatch is low from the period reset until the match, then high.
	HighAfterMatch Polarity = iota
	// HighUntilMatch is high from the period reset until the match, then low.
	HighUntilMatch
)

// OutputPolarity returns the polarity the actuator driver expects from
// timer id. Motor compares are the on time, so 0 % is off and 100 % is
// fully on; servo compares end the low part of the frame.
func OutputPolarity(id TimerID) Polarity {
	if id == MotorTimer {
		return HighUntilMatch
	}
	return HighAfterMatch
}

// PWMHighTicks returns how many ticks of each period a PWM-mode output
// spends high. A compare at or past the period never matches.
func PWMHighTicks(period, compare uint32, pol Polarity) uint32 {
	if compare >= period {
		if pol == HighUntilMatch {
			return period
		}
		return 0
	}
	if pol == HighUntilMatch {
		return compare
	}
	return period - compare
}

// MatchTimer is the abstract 32-bit counter/match peripheral used to generate PWM.
// Platform-specific implementations map it onto their timer hardware.
type MatchTimer interface {
	// SetMatch writes a match register
	SetMatch(reg MatchReg, ticks uint32)

	// Match reads back a match register
	Match(reg MatchReg) uint32

	// SetMatchControl writes the match control register
	SetMatchControl(bits uint32)

	// SetExternalMatch writes the external match register
	SetExternalMatch(bits uint32)

	// SetPWMControl writes the PWM control register
	SetPWMControl(bits uint32)

	// SetCounterEnable starts or stops the counter
	SetCounterEnable(enabled bool)
}

// TimerID names the match timers the core drives.
type TimerID uint8

const (
	MotorTimer TimerID = iota
	ServoTimer
	numMatchTimers
)

var matchTimers [numMatchTimers]MatchTimer

// SetMatchTimer is called by target-specific code to register a timer.
func SetMatchTimer(id TimerID, t MatchTimer) {
	if id < numMatchTimers {
		matchTimers[id] = t
	}
}

// MustMatchTimer returns the configured timer or panics if missing.
func MustMatchTimer(id TimerID) MatchTimer {
	if id >= numMatchTimers || matchTimers[id] == nil {
		panic("match timer not configured")
	}
	return matchTimers[id]
}
