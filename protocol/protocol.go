// Package protocol implements the framed serial link between the robot
// controller firmware and host tools.
//
// A message block is
//
//	len | seq | payload ... | crc16 hi | crc16 lo | 0x7E
//
// where len counts the whole block, seq carries 0x10 in the high nibble and
// a 4-bit sequence number, and the payload is a run of VLQ-encoded message
// ids each followed by that message's arguments. A block with an empty
// payload is an acknowledgement carrying the next expected sequence.
package protocol

// Version is the link protocol revision
const Version = "0.2.0"

const (
	MessageMax = 512 // output scratch capacity; several blocks may queue per loop

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)

// nextSeq returns the sequence following seq, keeping the destination bits.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
