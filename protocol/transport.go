package protocol

import "sync/atomic"

// CommandHandler decodes and runs one message. data holds the remaining
// payload and must be advanced past the message's arguments.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link: it frames incoming blocks,
// dispatches their messages in order, acknowledges every block and encodes
// outgoing responses into an OutputBuffer.
type Transport struct {
	framer *Framer

	// nextSequence is the sequence expected from the host; acknowledgements
	// and responses carry the same value.
	nextSequence uint32

	output        OutputBuffer
	handler       CommandHandler
	errorCallback func(cmdID uint16, err error)
	resetCallback func()
	flushCallback func()
}

// NewTransport creates a synchronized transport expecting sequence 0x10
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		framer:       NewFramer(true),
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
	t.framer.OnResync = t.encodeAckNak
	return t
}

// Receive consumes every complete block in input
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	for {
		block, rest := t.framer.Next(data)
		data = rest
		if block == nil {
			break
		}
		t.handleBlock(block)
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) handleBlock(block []byte) {
	seq := BlockSeq(block)
	expected := t.expectedSeq()

	// The host restarts at 0x10 after it reconnects.
	if seq == MessageDest && expected != MessageDest {
		atomic.StoreUint32(&t.nextSequence, MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	// Out-of-sequence blocks are dropped; the acknowledgement below then
	// tells the host which sequence to retransmit from.
	if seq == expected {
		atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(seq)))
		t.dispatch(BlockPayload(block))
	}
	t.encodeAckNak()
}

// dispatch runs every message of a payload. A handler error abandons the
// rest of the block; a malformed id or a handler panic drops sync.
func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.framer.SetSynchronized(false)
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.framer.SetSynchronized(false)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			if t.errorCallback != nil {
				t.errorCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

// encodeAckNak writes an empty block carrying the next expected sequence
// and flushes it ahead of any queued responses.
func (t *Transport) encodeAckNak() {
	ns := t.expectedSeq()
	crc := CRC16([]byte{MessageLengthMin, ns})
	t.output.Output([]byte{MessageLengthMin, ns, uint8(crc >> 8), uint8(crc), MessageValueSync})
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one block whose payload is produced by frameData
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, t.expectedSeq()})

	frameData(t.output)

	size := len(t.output.DataSince(start)) + MessageTrailerSize
	t.output.Update(start+MessagePositionLen, uint8(size))

	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand encodes message cmdID with the arguments written by args
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns to the power-on state, e.g. after a USB reconnect
func (t *Transport) Reset() {
	t.framer.SetSynchronized(true)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the hook run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the hook that pushes acknowledgements out immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets the hook told about handler errors
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errorCallback = callback
}

// Synchronized reports whether the receive side is aligned on block boundaries
func (t *Transport) Synchronized() bool {
	return t.framer.Synchronized()
}

func (t *Transport) expectedSeq() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSequence))
}
