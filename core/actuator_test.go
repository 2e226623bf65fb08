package core

import (
	"errors"
	"testing"
)

func TestInitMotorTimerRegisters(t *testing.T) {
	b := setupBoard(t)
	InitMotorTimer()

	m := b.motor
	if m.match[MR2] != 3600 {
		t.Errorf("MR2 = %d, want 3600", m.match[MR2])
	}
	if m.match[MR0] != 1800 || m.match[MR1] != 1800 {
		t.Errorf("MR0/MR1 = %d/%d, want 1800/1800", m.match[MR0], m.match[MR1])
	}
	if m.mcr != 0x80 {
		t.Errorf("MCR = %#x, want 0x80", m.mcr)
	}
	if m.emr != 0xF3 {
		t.Errorf("EMR = %#x, want 0xF3", m.emr)
	}
	if m.pwmc != 0x7 {
		t.Errorf("PWMC = %#x, want 0x7", m.pwmc)
	}
	if !m.enabled {
		t.Error("Motor counter not enabled")
	}
}

func TestInitServoTimerRegisters(t *testing.T) {
	b := setupBoard(t)
	InitServoTimer()

	s := b.servo
	if s.match[MR3] != 1440000 {
		t.Errorf("MR3 = %d, want 1440000", s.match[MR3])
	}
	for _, reg := range []MatchReg{MR0, MR1, MR2} {
		if s.match[reg] != 1332000 {
			t.Errorf("MR%d = %d, want 1332000", reg, s.match[reg])
		}
	}
	if s.mcr != 0x400 {
		t.Errorf("MCR = %#x, want 0x400", s.mcr)
	}
	if s.emr != 0x3F7 {
		t.Errorf("EMR = %#x, want 0x3F7", s.emr)
	}
	if s.pwmc != 0xF {
		t.Errorf("PWMC = %#x, want 0xF", s.pwmc)
	}
	if !s.enabled {
		t.Error("Servo counter not enabled")
	}
	for id := Servo1; id <= Servo3; id++ {
		if deg, _, _ := ServoState(id); deg != 90 {
			t.Errorf("Servo %d starts at %d, want 90", id, deg)
		}
	}
}

func TestInitTimersIdempotent(t *testing.T) {
	b := setupBoard(t)
	InitMotorTimer()
	InitServoTimer()
	motor, servo := *b.motor, *b.servo

	InitMotorTimer()
	InitServoTimer()

	if b.motor.match != motor.match || b.motor.mcr != motor.mcr || b.motor.emr != motor.emr {
		t.Error("Second InitMotorTimer changed the register file")
	}
	if b.servo.match != servo.match || b.servo.mcr != servo.mcr || b.servo.emr != servo.emr {
		t.Error("Second InitServoTimer changed the register file")
	}
}

func TestSetMotorDuty(t *testing.T) {
	testCases := []struct {
		percent int
		compare uint32
	}{
		{0, 0},
		{1, 36},
		{25, 900},
		{50, 1800},
		{100, 3600},
		{150, 5400},
		{-10, uint32(0xFFFFFFFF - 360 + 1)},
	}

	b := setupBoard(t)
	InitMotorTimer()

	for _, tc := range testCases {
		SetMotorDuty(Motor1, tc.percent)
		if got := b.motor.match[MR1]; got != tc.compare {
			t.Errorf("percent %d: MR1 = %d, want %d", tc.percent, got, tc.compare)
		}
		percent, compare, ok := MotorState(Motor1)
		if !ok || percent != tc.percent || compare != tc.compare {
			t.Errorf("percent %d: state %d/%d/%v", tc.percent, percent, compare, ok)
		}
	}
	if b.motor.match[MR0] != 1800 {
		t.Errorf("Motor 0 disturbed: MR0 = %d", b.motor.match[MR0])
	}
	if b.motor.match[MR2] != MotorPeriodTicks {
		t.Errorf("Period disturbed: MR2 = %d", b.motor.match[MR2])
	}
}

func TestMoveServoChannelMap(t *testing.T) {
	b := setupBoard(t)
	InitServoTimer()

	MoveServo(Servo1, 0)
	MoveServo(Servo2, 45)
	MoveServo(Servo3, 179)

	want := map[MatchReg]uint32{
		MR1: 720 * 1760,
		MR0: 720 * 1805,
		MR2: 720 * 1939,
		MR3: ServoPeriodTicks,
	}
	for reg, compare := range want {
		if got := b.servo.match[reg]; got != compare {
			t.Errorf("MR%d = %d, want %d", reg, got, compare)
		}
	}
}

func TestMoveServoWraps(t *testing.T) {
	testCases := []struct {
		degree  int
		wrapped int
	}{
		{0, 0},
		{90, 90},
		{179, 179},
		{180, 0},
		{181, 1},
		{370, 10},
		{-10, 170},
		{-180, 0},
		{-190, 170},
	}

	b := setupBoard(t)
	InitServoTimer()

	for _, tc := range testCases {
		MoveServo(Servo1, tc.degree)
		deg, compare, _ := ServoState(Servo1)
		if deg != tc.wrapped {
			t.Errorf("degree %d: wrapped %d, want %d", tc.degree, deg, tc.wrapped)
		}
		want := uint32(720 * (tc.wrapped + 1760))
		if compare != want || b.servo.match[MR1] != want {
			t.Errorf("degree %d: compare %d MR1 %d, want %d", tc.degree, compare, b.servo.match[MR1], want)
		}
	}
}

func TestMoveServoNegative(t *testing.T) {
	b := setupBoard(t)
	InitServoTimer()

	MoveServo(Servo1, -10)

	if b.servo.match[MR1] != 1389600 {
		t.Errorf("MR1 = %d, want 1389600", b.servo.match[MR1])
	}
	if deg, _, _ := ServoState(Servo1); deg != 170 {
		t.Errorf("Servo 1 state %d, want 170", deg)
	}
}

func TestServoCompareWithinFrame(t *testing.T) {
	for d := -720; d <= 720; d++ {
		c := ServoCompare(d)
		if c >= ServoPeriodTicks {
			t.Fatalf("degree %d: compare %d outside frame", d, c)
		}
		if c != ServoCompare(d+ServoRangeDegrees) {
			t.Fatalf("degree %d: compare not periodic", d)
		}
	}
}

func TestServoPulseWidth(t *testing.T) {
	high := ServoPeriodTicks - ServoCompare(0)
	if us := high / TicksPerMicrosecond; us != 2400 {
		t.Errorf("Pulse at 0 degrees is %d us, want 2400", us)
	}
	high = ServoPeriodTicks - ServoCompare(179)
	if us := high / TicksPerMicrosecond; us != 610 {
		t.Errorf("Pulse at 179 degrees is %d us, want 610", us)
	}
}

func TestActuatorInvalidIDs(t *testing.T) {
	b := setupBoard(t)
	InitMotorTimer()
	InitServoTimer()
	motorWrites, servoWrites := b.motor.writes, b.servo.writes

	SetMotorDuty(MotorCount, 10)
	SetMotorDuty(MotorID(200), 10)
	MoveServo(ServoID(0), 10)
	MoveServo(ServoID(4), 10)

	if b.motor.writes != motorWrites || b.servo.writes != servoWrites {
		t.Error("Invalid ids wrote registers")
	}
	if _, _, ok := MotorState(MotorCount); ok {
		t.Error("MotorState accepted an invalid id")
	}
	if _, _, ok := ServoState(ServoID(0)); ok {
		t.Error("ServoState accepted servo 0")
	}
}

func TestResetActuators(t *testing.T) {
	b := setupBoard(t)

	ResetActuators()
	if b.motor.writes != 0 || b.servo.writes != 0 {
		t.Fatal("ResetActuators wrote to uninitialized timers")
	}

	InitMotorTimer()
	InitServoTimer()
	SetMotorDuty(Motor0, 90)
	MoveServo(Servo3, 10)

	ResetActuators()

	if b.motor.match[MR0] != 1800 {
		t.Errorf("MR0 = %d after reset, want 1800", b.motor.match[MR0])
	}
	if b.servo.match[MR2] != 1332000 {
		t.Errorf("MR2 = %d after reset, want 1332000", b.servo.match[MR2])
	}
}

func TestStatusLED(t *testing.T) {
	b := setupBoard(t)

	ToggleStatusLED()
	if len(b.gpio.levels) != 0 {
		t.Fatal("Toggle before configure drove a pin")
	}

	if err := ConfigureStatusLED(25); err != nil {
		t.Fatalf("ConfigureStatusLED: %v", err)
	}
	if !b.gpio.outputs[25] || b.gpio.levels[25] {
		t.Fatal("LED pin not configured low")
	}
	ToggleStatusLED()
	if !b.gpio.levels[25] {
		t.Error("LED not on after first toggle")
	}
	ToggleStatusLED()
	if b.gpio.levels[25] {
		t.Error("LED not off after second toggle")
	}
}

func TestStatusLEDReportsPinError(t *testing.T) {
	b := setupBoard(t)
	SetDebugEnabled(true)
	defer SetDebugEnabled(false)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	if err := ConfigureStatusLED(25); err != nil {
		t.Fatalf("ConfigureStatusLED: %v", err)
	}
	b.gpio.setErr = errors.New("pin locked")
	ToggleStatusLED()

	if len(lines) != 1 || lines[0] != "[led] set pin 25: pin locked" {
		t.Errorf("Unexpected debug output %q", lines)
	}
}

func TestPWMHighTicks(t *testing.T) {
	motor := OutputPolarity(MotorTimer)
	servo := OutputPolarity(ServoTimer)
	testCases := []struct {
		period, compare uint32
		pol             Polarity
		high            uint32
	}{
		{MotorPeriodTicks, MotorCompare(0), motor, 0},
		{MotorPeriodTicks, MotorCompare(50), motor, 1800},
		{MotorPeriodTicks, MotorCompare(75), motor, 2700},
		{MotorPeriodTicks, MotorCompare(100), motor, MotorPeriodTicks},
		{MotorPeriodTicks, MotorCompare(150), motor, MotorPeriodTicks},
		{MotorPeriodTicks, MotorCompare(-10), motor, MotorPeriodTicks},
		{ServoPeriodTicks, ServoCompare(90), servo, 108000},
		{ServoPeriodTicks, ServoCompare(0), servo, 172800},
		{ServoPeriodTicks, ServoPeriodTicks, servo, 0},
	}
	for _, tc := range testCases {
		if got := PWMHighTicks(tc.period, tc.compare, tc.pol); got != tc.high {
			t.Errorf("PWMHighTicks(%d, %d, %d) = %d, want %d", tc.period, tc.compare, tc.pol, got, tc.high)
		}
	}
	if motor != HighUntilMatch || servo != HighAfterMatch {
		t.Errorf("OutputPolarity = %d/%d", motor, servo)
	}
}

func TestMatchRegLookup(t *testing.T) {
	motors := []struct {
		id   MotorID
		want MatchReg
	}{{Motor0, MR0}, {Motor1, MR1}}
	for _, tt := range motors {
		if reg, ok := MotorMatchReg(tt.id); !ok || reg != tt.want {
			t.Errorf("MotorMatchReg(%d) = %d, %v, want %d", tt.id, reg, ok, tt.want)
		}
	}
	if _, ok := MotorMatchReg(MotorCount); ok {
		t.Error("MotorMatchReg accepted an out of range id")
	}

	servos := []struct {
		id   ServoID
		want MatchReg
	}{{Servo1, MR1}, {Servo2, MR0}, {Servo3, MR2}}
	for _, tt := range servos {
		if reg, ok := ServoMatchReg(tt.id); !ok || reg != tt.want {
			t.Errorf("ServoMatchReg(%d) = %d, %v, want %d", tt.id, reg, ok, tt.want)
		}
	}
	for _, id := range []ServoID{0, 4} {
		if _, ok := ServoMatchReg(id); ok {
			t.Errorf("ServoMatchReg(%d) accepted an invalid id", id)
		}
	}
}
