package core

import "sync/atomic"

// EncoderID selects one of the two quadrature encoders.
type EncoderID uint8

const (
	Encoder0 EncoderID = iota
	Encoder1
	EncoderCount
)

// TransitionTable maps [previous phase][next phase] to a count delta.
// A phase is the 2-bit sample A<<1 | B. The forward cycle 0,1,3,2 counts +1
// per step; a repeated sample or a skipped phase counts 0.
var TransitionTable = [4][4]int8{
	{0, +1, -1, 0},
	{-1, 0, 0, +1},
	{+1, 0, 0, -1},
	{0, -1, +1, 0},
}

// Encoder holds the decode state of one quadrature encoder.
// phase is written only by the edge handler; position is published atomically
// so the foreground never observes a torn value.
type Encoder struct {
	phase    uint8
	position int32
}

// Decoder owns the state of both encoders.
type Decoder struct {
	encoders [EncoderCount]Encoder
}

// Init resets every encoder to phase 0, position 0.
func (d *Decoder) Init() {
	for i := range d.encoders {
		e := &d.encoders[i]
		e.phase = 0
		atomic.StoreInt32(&e.position, 0)
	}
}

// OnEdge advances encoder id with a freshly sampled phase.
// Runs in interrupt context: no allocation, no I/O.
func (d *Decoder) OnEdge(id EncoderID, raw uint8) {
	if id >= EncoderCount {
		return
	}
	e := &d.encoders[id]
	next := raw & 3
	if delta := TransitionTable[e.phase][next]; delta != 0 {
		atomic.AddInt32(&e.position, int32(delta))
	}
	e.phase = next
}

// Position returns the running count of encoder id.
func (d *Decoder) Position(id EncoderID) int32 {
	if id >= EncoderCount {
		return 0
	}
	return atomic.LoadInt32(&d.encoders[id].position)
}

// Phase returns the last sampled phase of encoder id.
func (d *Decoder) Phase(id EncoderID) uint8 {
	if id >= EncoderCount {
		return 0
	}
	return d.encoders[id].phase
}

var globalDecoder Decoder

// InitEncoders resets the global decoder.
func InitEncoders() {
	globalDecoder.Init()
}

// EncoderEdge feeds one edge event to the global decoder.
func EncoderEdge(id EncoderID, raw uint8) {
	globalDecoder.OnEdge(id, raw)
}

// EncoderPosition reads the global decoder.
func EncoderPosition(id EncoderID) int32 {
	return globalDecoder.Position(id)
}
