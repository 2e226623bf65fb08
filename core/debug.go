package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event is one entry of the post-mortem ring: what happened to which
// output or encoder, and when.
type Event struct {
	Type   uint8
	ID     uint8
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

// Event type codes
const (
	EvtMotorDuty     = 1 // Value1 = percent, Value2 = compare
	EvtServoMove     = 2 // Value1 = wrapped degree, Value2 = compare
	EvtEncoderReport = 3 // Value1 = position
	EvtStreamStart   = 4 // Value1 = rest ticks
	EvtStreamStop    = 5
	EvtEmergencyStop = 6
	EvtHostReset     = 7
)

const EventRingSize = 32

var (
	// debugPrintln is the platform output; a no-op until a target installs one
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln; off by default
	debugEnabled bool

	eventRing     [EventRingSize]Event
	eventRingHead uint8

	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the goroutine that drains DebugAsync messages.
// Call it once after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			if debugPrintln != nil {
				debugPrintln(msg)
			}
		}
	}()
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a message without blocking; it is dropped if the queue is full.
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordEvent appends to the event ring. Foreground only.
func RecordEvent(eventType, id uint8, value1, value2 uint32) {
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:   eventType,
		ID:     id,
		Clock:  GetTime(),
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events from oldest to newest.
func Events() []Event {
	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.Type != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtMotorDuty:
		return "MOTOR_DUTY"
	case EvtServoMove:
		return "SERVO_MOVE"
	case EvtEncoderReport:
		return "ENC_REPORT"
	case EvtStreamStart:
		return "STREAM_START"
	case EvtStreamStop:
		return "STREAM_STOP"
	case EvtEmergencyStop:
		return "ESTOP"
	case EvtHostReset:
		return "HOST_RESET"
	}
	return "UNKNOWN"
}

// DumpEventRing writes the ring through the debug writer, oldest first.
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[EVENTS] enc0=" + itoa(int(EncoderPosition(Encoder0))) +
		" enc1=" + itoa(int(EncoderPosition(Encoder1))))
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + eventName(evt.Type) +
			" id=" + utoa(uint32(evt.ID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + itoa(int(int32(evt.Value1))) +
			" v2=" + utoa(evt.Value2))
	}
}

// ClearEventRing empties the ring
func ClearEventRing() {
	eventRing = [EventRingSize]Event{}
	eventRingHead = 0
}
