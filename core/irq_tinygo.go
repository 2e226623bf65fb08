//go:build tinygo

package core

import "runtime/interrupt"

// irqState is the interrupt mask saved by maskIRQ.
type irqState = interrupt.State

// maskIRQ keeps the encoder edge and timer interrupts out of a critical
// section and returns the previous mask.
func maskIRQ() irqState {
	return interrupt.Disable()
}

func unmaskIRQ(state irqState) {
	interrupt.Restore(state)
}
