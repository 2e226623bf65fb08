package core

import (
	"errors"
	"sync/atomic"

	"robocore/protocol"
)

// ErrUnknownEncoder is returned for an encoder id outside 0..1
var ErrUnknownEncoder = errors.New("unknown encoder")

// encoderStream is a periodic position report. The timer only marks the
// report due; EncoderReportTask sends it from the main loop.
type encoderStream struct {
	timer   Timer
	rest    uint32
	active  bool
	pending uint32 // atomic bool
}

var encoderStreams [EncoderCount]encoderStream

// InitEncoderCommands registers encoder queries and streaming.
func InitEncoderCommands() {
	RegisterCommand("query_encoder", "eid=%c", handleQueryEncoder)
	RegisterCommand("stream_encoder", "eid=%c clock=%u rest_ticks=%u", handleStreamEncoder)
	RegisterResponse("encoder_position", "eid=%c clock=%u position=%i")

	for i := range encoderStreams {
		s := &encoderStreams[i]
		s.timer.Handler = func(t *Timer) uint8 {
			atomic.StoreUint32(&s.pending, 1)
			// Missed periods are skipped, not replayed
			next := t.WakeTime + s.rest
			if !timerBefore(currentTime, next) {
				next = currentTime + s.rest
			}
			t.WakeTime = next
			return SF_RESCHEDULE
		}
	}
}

func decodeEncoderID(data *[]byte) (EncoderID, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v >= uint32(EncoderCount) {
		return 0, ErrUnknownEncoder
	}
	return EncoderID(v), nil
}

func handleQueryEncoder(data *[]byte) error {
	id, err := decodeEncoderID(data)
	if err != nil {
		return err
	}
	sendEncoderPosition(id)
	return nil
}

// handleStreamEncoder starts reports every rest_ticks from clock (0 or a
// clock already past = now); rest_ticks=0 stops them.
func handleStreamEncoder(data *[]byte) error {
	id, err := decodeEncoderID(data)
	if err != nil {
		return err
	}
	clock, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	rest, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	s := &encoderStreams[id]
	CancelTimer(&s.timer)
	atomic.StoreUint32(&s.pending, 0)
	if rest == 0 {
		s.active = false
		RecordEvent(EvtStreamStop, uint8(id), 0, 0)
		return nil
	}
	if now := GetTime(); clock == 0 || timerBefore(clock, now) {
		clock = now
	}
	s.rest = rest
	s.active = true
	s.timer.WakeTime = clock
	ScheduleTimer(&s.timer)
	RecordEvent(EvtStreamStart, uint8(id), rest, clock)
	return nil
}

func sendEncoderPosition(id EncoderID) {
	clock := GetTime()
	pos := EncoderPosition(id)
	SendResponse("encoder_position", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(id))
		protocol.EncodeVLQUint(output, clock)
		protocol.EncodeVLQInt(output, pos)
	})
	RecordEvent(EvtEncoderReport, uint8(id), uint32(pos), clock)
}

// EncoderReportTask sends every report marked due since the last call.
// Call it from the main loop after ProcessTimers.
func EncoderReportTask() {
	for i := range encoderStreams {
		s := &encoderStreams[i]
		if atomic.SwapUint32(&s.pending, 0) != 0 && s.active {
			sendEncoderPosition(EncoderID(i))
		}
	}
}

// EncoderStreaming reports whether encoder id has an active stream
func EncoderStreaming(id EncoderID) bool {
	return id < EncoderCount && encoderStreams[id].active
}

// StopEncoderStreams cancels every periodic report
func StopEncoderStreams() {
	for i := range encoderStreams {
		s := &encoderStreams[i]
		CancelTimer(&s.timer)
		atomic.StoreUint32(&s.pending, 0)
		s.active = false
	}
}
