package protocol

import (
	"bytes"
	"errors"
	"sync/atomic"
)

// ErrMessageTooLong is returned when a payload does not fit in one block.
var ErrMessageTooLong = errors.New("message too long")

// Framer splits a received byte stream into validated message blocks. After a
// malformed block it discards input up to the next sync byte.
type Framer struct {
	synced uint32 // atomic bool

	// RequireDest rejects blocks whose sequence byte lacks the 0x10 marker.
	RequireDest bool

	// OnResync runs each time the framer regains sync.
	OnResync func()
}

// NewFramer returns a synchronized framer
func NewFramer(requireDest bool) *Framer {
	return &Framer{synced: 1, RequireDest: requireDest}
}

// Synchronized reports whether the framer is aligned on block boundaries
func (f *Framer) Synchronized() bool {
	return atomic.LoadUint32(&f.synced) != 0
}

// SetSynchronized forces the sync state
func (f *Framer) SetSynchronized(v bool) {
	if v {
		atomic.StoreUint32(&f.synced, 1)
	} else {
		atomic.StoreUint32(&f.synced, 0)
	}
}

// Next scans data for the next complete block. It returns the block (nil if
// more input is needed) and the unconsumed remainder.
func (f *Framer) Next(data []byte) (block, rest []byte) {
	for len(data) > 0 {
		if !f.Synchronized() {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				return nil, nil
			}
			data = data[i+1:]
			f.SetSynchronized(true)
			if f.OnResync != nil {
				f.OnResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			return nil, data
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			f.SetSynchronized(false)
			continue
		}
		if f.RequireDest && data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
			f.SetSynchronized(false)
			continue
		}
		if len(data) < n {
			return nil, data
		}
		if data[n-MessageTrailerSync] != MessageValueSync || blockCRC(data[:n]) != CRC16(data[:n-MessageTrailerSize]) {
			f.SetSynchronized(false)
			continue
		}
		return data[:n], data[n:]
	}
	return nil, data
}

func blockCRC(block []byte) uint16 {
	i := len(block) - MessageTrailerCRC
	return uint16(block[i])<<8 | uint16(block[i+1])
}

// BlockSeq returns the sequence byte of a validated block
func BlockSeq(block []byte) uint8 {
	return block[MessagePositionSeq]
}

// BlockPayload returns the payload of a validated block
func BlockPayload(block []byte) []byte {
	return block[MessageHeaderSize : len(block)-MessageTrailerSize]
}

// AppendBlock frames payload with seq and appends the block to dst.
func AppendBlock(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := MessageHeaderSize + len(payload) + MessageTrailerSize
	if n > MessageLengthMax {
		return dst, ErrMessageTooLong
	}
	start := len(dst)
	dst = append(dst, uint8(n), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}
