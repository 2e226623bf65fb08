package robot

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"robocore/core"
	"robocore/sim"
)

// connectSim boots a simulated board and a connected Robot with the
// dictionary loaded.
func connectSim(t *testing.T) (*Robot, *sim.Board) {
	t.Helper()
	board := sim.NewBoard()
	port, err := board.Port()
	if err != nil {
		t.Fatal(err)
	}
	r := NewRobot()
	if err := r.ConnectPort(port); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		r.Close()
		board.Close()
	})
	if err := r.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return r, board
}

func TestRetrieveDictionary(t *testing.T) {
	r, _ := connectSim(t)

	dict := r.Dictionary()
	if dict.Version != core.FirmwareVersion {
		t.Errorf("Version = %q, want %q", dict.Version, core.FirmwareVersion)
	}
	if id := dict.Commands["identify offset=%u count=%c"]; id != 1 {
		t.Errorf("identify id = %d, want 1", id)
	}
	if id := dict.Responses["identify_response offset=%u data=%*s"]; id != 0 {
		t.Errorf("identify_response id = %d, want 0", id)
	}

	constants := map[string]int64{
		"CLOCK_FREQ":         1000000,
		"TIMER_CLOCK_FREQ":   72000000,
		"ENCODER_COUNT":      2,
		"MOTOR_COUNT":        2,
		"SERVO_COUNT":        3,
		"MOTOR_PERIOD_TICKS": 3600,
		"SERVO_PERIOD_TICKS": 1440000,
		"SERVO_OFFSET":       1760,
	}
	for name, want := range constants {
		got, err := r.ConstantInt(name)
		if err != nil {
			t.Errorf("ConstantInt(%s): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if mcu, _ := r.Constant("MCU"); mcu != "sim" {
		t.Errorf("MCU = %q, want sim", mcu)
	}
	if _, err := r.Constant("NOPE"); !errors.Is(err, ErrMissingConstant) {
		t.Errorf("Constant(NOPE) returned %v", err)
	}
	if len(r.RawDictionary()) == 0 {
		t.Error("raw dictionary is empty")
	}

	var buf bytes.Buffer
	r.PrintDictionary(&buf)
	if !strings.Contains(buf.String(), "[1] identify offset=%u count=%c") {
		t.Errorf("PrintDictionary output missing identify:\n%s", buf.String())
	}
}

func TestQueriesNeedDictionary(t *testing.T) {
	board := sim.NewBoard()
	defer board.Close()
	port, _ := board.Port()

	r := NewRobot()
	if _, err := r.EncoderPosition(0); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("EncoderPosition before connect returned %v", err)
	}
	if err := r.Send("get_clock"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send before connect returned %v", err)
	}

	r.ConnectPort(port)
	defer r.Close()
	if err := r.Send("get_clock"); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Send before RetrieveDictionary returned %v", err)
	}
}

func TestEncoderPosition(t *testing.T) {
	r, board := connectSim(t)

	board.Turn(0, 40)
	board.Turn(1, -9)

	rep, err := r.EncoderPosition(0)
	if err != nil {
		t.Fatalf("EncoderPosition(0): %v", err)
	}
	if rep.ID != 0 || rep.Position != 40 {
		t.Errorf("encoder 0 report = %+v, want position 40", rep)
	}
	rep, err = r.EncoderPosition(1)
	if err != nil {
		t.Fatalf("EncoderPosition(1): %v", err)
	}
	if rep.ID != 1 || rep.Position != -9 {
		t.Errorf("encoder 1 report = %+v, want position -9", rep)
	}

	if _, err := r.EncoderPosition(2); !errors.Is(err, ErrUnknownEncoder) {
		t.Errorf("EncoderPosition(2) returned %v", err)
	}
}

func TestMotorCommands(t *testing.T) {
	r, board := connectSim(t)

	st, err := r.MotorState(1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Value != 50 || st.Compare != 1800 {
		t.Errorf("default motor state = %+v, want 50%%/1800", st)
	}

	if err := r.SetMotorDuty(1, 75); err != nil {
		t.Fatalf("SetMotorDuty: %v", err)
	}
	st, _ = r.MotorState(1)
	if st.Value != 75 || st.Compare != 2700 {
		t.Errorf("motor state = %+v, want 75%%/2700", st)
	}
	if duty, _ := board.MotorDuty(1); duty != 0.75 {
		t.Errorf("motor 1 output duty = %v, want 0.75", duty)
	}

	if err := r.SetMotorDuty(2, 10); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("SetMotorDuty(2) returned %v", err)
	}
	if err := r.SetMotorDuty(-1, 10); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("SetMotorDuty(-1) returned %v", err)
	}
}

func TestServoCommands(t *testing.T) {
	r, board := connectSim(t)

	if err := r.MoveServo(1, -10); err != nil {
		t.Fatalf("MoveServo: %v", err)
	}
	st, err := r.ServoState(1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Value != 170 || st.Compare != 1389600 {
		t.Errorf("servo 1 state = %+v, want 170/1389600", st)
	}

	r.MoveServo(3, 0)
	if pulse, _ := board.ServoPulse(core.Servo3); pulse != 2400*time.Microsecond {
		t.Errorf("servo 3 pulse = %v, want 2.4ms", pulse)
	}

	for _, id := range []int{0, 4} {
		if err := r.MoveServo(id, 10); !errors.Is(err, ErrUnknownServo) {
			t.Errorf("MoveServo(%d) returned %v", id, err)
		}
	}
}

func TestStreamEncoder(t *testing.T) {
	r, board := connectSim(t)
	board.Turn(1, 3)

	reports := make(chan EncoderReport, 64)
	r.OnEncoder(func(rep EncoderReport) {
		select {
		case reports <- rep:
		default:
		}
	})

	if err := r.StreamEncoder(1, 5*time.Millisecond); err != nil {
		t.Fatalf("StreamEncoder: %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case rep := <-reports:
			if rep.ID != 1 || rep.Position != 3 {
				t.Errorf("report = %+v, want encoder 1 at 3", rep)
			}
		case <-time.After(time.Second):
			t.Fatalf("only %d reports received", i)
		}
	}

	if err := r.StreamEncoder(1, 0); err != nil {
		t.Fatalf("stopping stream: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	for len(reports) > 0 {
		<-reports
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(reports); n != 0 {
		t.Errorf("%d reports after the stream was stopped", n)
	}
}

func TestEmergencyStop(t *testing.T) {
	r, _ := connectSim(t)

	r.SetMotorDuty(0, 90)
	r.MoveServo(2, 10)
	if err := r.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}

	cfg, err := r.Config()
	if err != nil {
		t.Fatal(err)
	}
	want := FirmwareConfig{Shutdown: true, Encoders: 2, Motors: 2, Servos: 3}
	if cfg != want {
		t.Errorf("Config() = %+v, want %+v", cfg, want)
	}

	if st, _ := r.MotorState(0); st.Value != 50 {
		t.Errorf("motor 0 after stop = %+v, want 50%%", st)
	}
	if st, _ := r.ServoState(2); st.Value != 90 {
		t.Errorf("servo 2 after stop = %+v, want 90", st)
	}

	// Acknowledged but rejected while shut down
	if err := r.SetMotorDuty(0, 10); err != nil {
		t.Fatalf("SetMotorDuty: %v", err)
	}
	if st, _ := r.MotorState(0); st.Value != 50 {
		t.Errorf("motor 0 moved during shutdown: %+v", st)
	}
}

func TestClock(t *testing.T) {
	r, _ := connectSim(t)

	c1, err := r.Clock()
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	c2, err := r.Clock()
	if err != nil {
		t.Fatal(err)
	}
	if int32(c2-c1) < 4000 {
		t.Errorf("clock advanced %d ticks in 5ms", c2-c1)
	}
}

func TestSendUnknownCommand(t *testing.T) {
	r, _ := connectSim(t)
	if err := r.Send("spin_up"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Send(spin_up) returned %v", err)
	}
	if err := r.Send("query_motor"); err == nil {
		t.Error("Send with missing arguments succeeded")
	}
	if err := r.SetDebug(true); err != nil {
		t.Errorf("SetDebug: %v", err)
	}
	r.SetDebug(false)
	if n := r.DecodeErrors(); n != 0 {
		t.Errorf("%d decode errors", n)
	}
}

func TestQueryTimeout(t *testing.T) {
	r, board := connectSim(t)
	r.ResponseTimeout = 50 * time.Millisecond

	// A board that stops answering after acknowledging: closing it drops
	// the link, so the query fails either on the send or the wait.
	board.Close()
	if _, err := r.Clock(); err == nil {
		t.Error("Clock succeeded on a closed board")
	}
}

func TestCloseWhileQuerying(t *testing.T) {
	r, _ := connectSim(t)

	errs := make(chan error, 2)
	for id := 0; id < 2; id++ {
		go func(id int) {
			for {
				if _, err := r.EncoderPosition(id); err != nil {
					errs <- err
					return
				}
			}
		}(id)
	}

	time.Sleep(20 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-errs:
		case <-time.After(5 * time.Second):
			t.Fatal("query still running after Close")
		}
	}
	if err := r.Send("get_clock"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Close returned %v", err)
	}
}
