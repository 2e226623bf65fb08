//go:build rp2040

package pio

import (
	"machine"

	"robocore/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// The sampler program reads the encoder pin pair every few cycles and pushes
// the new pair only when it differs from the last one pushed. X holds the
// last pushed sample, Y the current one.
//
// Addresses are relative; AddProgram relocates the jumps.
func buildEncoderProgram() []uint16 {
	return []uint16{
		// .wrap_target
		rp2pio.EncodeMov(rp2pio.SrcDestISR, rp2pio.SrcDestNull), // 0: mov isr, null
		rp2pio.EncodeIn(rp2pio.SrcDestPins, 2),                  // 1: in pins, 2
		rp2pio.EncodeMov(rp2pio.SrcDestY, rp2pio.SrcDestISR),    // 2: mov y, isr
		rp2pio.EncodeJmp(5, rp2pio.JmpXNotEqualY),               // 3: jmp x!=y, 5
		rp2pio.EncodeJmp(0, rp2pio.JmpAlways),                   // 4: jmp 0
		rp2pio.EncodePush(false, false),                         // 5: push noblock
		rp2pio.EncodeMov(rp2pio.SrcDestX, rp2pio.SrcDestY),      // 6: mov x, y
		// .wrap
	}
}

const (
	encoderWrapTarget = 0
	encoderWrap       = 6

	// encoderClkDiv slows sampling to about 1 MHz at 125 MHz system clock,
	// well above the edge rate of a hobby motor encoder and slow enough to
	// reject contact bounce shorter than a microsecond.
	encoderClkDiv = 25
)

// EncoderSampler feeds one encoder from a PIO state machine instead of GPIO
// interrupts. The A line must be the pin below the B line.
type EncoderSampler struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	id     core.EncoderID
	pinA   machine.Pin
	offset uint8
	pioNum uint8
	smNum  uint8
}

// NewEncoderSampler creates a sampler on pioNum (0 or 1) state machine smNum.
func NewEncoderSampler(pioNum, smNum uint8, id core.EncoderID) *EncoderSampler {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &EncoderSampler{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		id:     id,
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// Init loads the program and starts sampling pins A and A+1.
func (s *EncoderSampler) Init(pins core.EncoderPins) error {
	if pins.B != pins.A+1 {
		return errPinsNotAdjacent
	}
	s.pinA = machine.Pin(pins.A)
	s.sm.TryClaim()

	program := buildEncoderProgram()
	offset, err := s.pio.AddProgram(program, -1)
	if err != nil {
		return err
	}
	s.offset = offset

	s.pinA.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	(s.pinA + 1).Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	s.sm.SetPindirsConsecutive(s.pinA, 2, false)

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetInPins(s.pinA)
	cfg.SetInShift(false, false, 32)
	cfg.SetWrap(offset+encoderWrapTarget, offset+encoderWrap)
	cfg.SetClkDivIntFrac(encoderClkDiv, 0)
	cfg.SetFIFOJoin(rp2pio.FifoJoinRx)

	s.sm.Init(offset, cfg)
	s.sm.SetX(0)
	s.sm.SetEnabled(true)
	return nil
}

// Drain feeds every queued sample to the decoder in FIFO order.
// Call it from the main loop.
func (s *EncoderSampler) Drain() int {
	n := 0
	for !s.sm.IsRxFIFOEmpty() {
		core.EncoderEdge(s.id, SamplePhase(s.sm.RxGet()))
		n++
	}
	return n
}

// Stop halts the state machine and frees its program space.
func (s *EncoderSampler) Stop() {
	s.sm.SetEnabled(false)
	s.pio.ClearProgramSection(s.offset, uint8(len(buildEncoderProgram())))
	s.sm.Unclaim()
	releasePIO(s.pioNum, s.smNum)
}
