package core

import (
	"testing"

	"robocore/protocol"
)

// mockGPIO records pin configuration and models latched edge interrupts.
type mockGPIO struct {
	inputs  map[GPIOPin]bool
	outputs map[GPIOPin]bool
	armed   map[GPIOPin]bool
	levels  map[GPIOPin]bool
	pending map[GPIOPin]bool
	cleared []GPIOPin

	// setErr is returned by SetPin when non-nil
	setErr error
}

func newMockGPIO() *mockGPIO {
	return &mockGPIO{
		inputs:  make(map[GPIOPin]bool),
		outputs: make(map[GPIOPin]bool),
		armed:   make(map[GPIOPin]bool),
		levels:  make(map[GPIOPin]bool),
		pending: make(map[GPIOPin]bool),
	}
}

func (m *mockGPIO) ConfigureInput(pin GPIOPin) error {
	m.inputs[pin] = true
	return nil
}

func (m *mockGPIO) ConfigureOutput(pin GPIOPin) error {
	m.outputs[pin] = true
	return nil
}

func (m *mockGPIO) ConfigureEdgeInterrupt(pin GPIOPin) error {
	m.armed[pin] = true
	return nil
}

func (m *mockGPIO) SetPin(pin GPIOPin, value bool) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.levels[pin] = value
	return nil
}

func (m *mockGPIO) ReadPin(pin GPIOPin) bool          { return m.levels[pin] }
func (m *mockGPIO) InterruptPending(pin GPIOPin) bool { return m.pending[pin] }

func (m *mockGPIO) ClearInterrupt(pin GPIOPin) {
	m.pending[pin] = false
	m.cleared = append(m.cleared, pin)
}

// drive changes a line level and latches an interrupt if it toggled.
func (m *mockGPIO) drive(pin GPIOPin, level bool) {
	if m.levels[pin] != level {
		m.levels[pin] = level
		if m.armed[pin] {
			m.pending[pin] = true
		}
	}
}

// regTimer is a register file standing in for a match timer.
type regTimer struct {
	match   [NumMatchRegs]uint32
	mcr     uint32
	emr     uint32
	pwmc    uint32
	enabled bool
	writes  int
}

func (r *regTimer) SetMatch(reg MatchReg, ticks uint32) {
	r.match[reg] = ticks
	r.writes++
}

func (r *regTimer) Match(reg MatchReg) uint32     { return r.match[reg] }
func (r *regTimer) SetMatchControl(bits uint32)   { r.mcr = bits }
func (r *regTimer) SetExternalMatch(bits uint32)  { r.emr = bits }
func (r *regTimer) SetPWMControl(bits uint32)     { r.pwmc = bits }
func (r *regTimer) SetCounterEnable(enabled bool) { r.enabled = enabled }

type testBoard struct {
	gpio  *mockGPIO
	motor *regTimer
	servo *regTimer
}

// setupBoard installs fresh drivers and clears all package state.
func setupBoard(t *testing.T) *testBoard {
	t.Helper()
	b := &testBoard{gpio: newMockGPIO(), motor: &regTimer{}, servo: &regTimer{}}
	SetGPIODriver(b.gpio)
	SetMatchTimer(MotorTimer, b.motor)
	SetMatchTimer(ServoTimer, b.servo)

	motorState = [MotorCount]channelState{}
	servoState = [ServoCount]channelState{}
	motorTimerReady = false
	servoTimerReady = false
	encodersConfigured = false
	statusLEDConfigured = false

	TimerInit()
	StopEncoderStreams()
	InitEncoders()
	ClearEventRing()
	globalState = FirmwareState{}
	SetGlobalTransport(nil)
	return b
}

// firmwareLink wires the global transport to a scratch buffer so handler
// responses can be inspected.
type firmwareLink struct {
	out *protocol.ScratchOutput
}

func setupFirmware(t *testing.T) (*testBoard, *firmwareLink) {
	t.Helper()
	b := setupBoard(t)
	InitCoreCommands()
	InitEncoderCommands()
	InitActuatorCommands()
	GetGlobalDictionary().BuildDictionary()

	link := &firmwareLink{out: protocol.NewScratchOutput()}
	SetGlobalTransport(protocol.NewTransport(link.out, DispatchCommand))
	return b, link
}

// run dispatches a command by name with VLQ-encoded signed arguments.
func (l *firmwareLink) run(t *testing.T, name string, args ...int32) error {
	t.Helper()
	cmd, ok := GetGlobalRegistry().GetCommandByName(name)
	if !ok {
		t.Fatalf("command %s not registered", name)
	}
	buf := protocol.NewScratchOutput()
	for _, a := range args {
		protocol.EncodeVLQInt(buf, a)
	}
	data := append([]byte(nil), buf.Result()...)
	return DispatchCommand(cmd.ID, &data)
}

type response struct {
	name string
	args []int32
}

// responses decodes and drains every message written since the last call.
func (l *firmwareLink) responses(t *testing.T) []response {
	t.Helper()
	var out []response
	data := append([]byte(nil), l.out.Result()...)
	l.out.Reset()

	f := protocol.NewFramer(true)
	for {
		block, rest := f.Next(data)
		data = rest
		if block == nil {
			break
		}
		payload := protocol.BlockPayload(block)
		if len(payload) == 0 {
			continue
		}
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			t.Fatalf("bad response id: %v", err)
		}
		cmd, ok := GetGlobalRegistry().GetCommand(uint16(id))
		if !ok {
			t.Fatalf("unknown response id %d", id)
		}
		r := response{name: cmd.Name}
		if cmd.Name == "identify_response" {
			offset, _ := protocol.DecodeVLQUint(&payload)
			chunk, _ := protocol.DecodeVLQBytes(&payload)
			r.args = []int32{int32(offset), int32(len(chunk))}
		} else {
			for len(payload) > 0 {
				v, err := protocol.DecodeVLQInt(&payload)
				if err != nil {
					t.Fatalf("bad argument in %s: %v", cmd.Name, err)
				}
				r.args = append(r.args, v)
			}
		}
		out = append(out, r)
	}
	return out
}
