package core

// MotorID selects a DC motor channel.
type MotorID uint8

const (
	Motor0 MotorID = iota
	Motor1
	MotorCount
)

// ServoID selects a servo channel. Servos are numbered from 1 on the board.
type ServoID uint8

const (
	Servo1 ServoID = iota + 1
	Servo2
	Servo3
)

// ServoCount is the number of servo outputs.
const ServoCount = 3

// Compare register assignment. Servo 1 and 2 are swapped on the board.
var (
	motorRegs = [MotorCount]MatchReg{MR0, MR1}
	servoRegs = [ServoCount]MatchReg{MR1, MR0, MR2}
)

const (
	motorPeriodReg = MR2
	servoPeriodReg = MR3
)

// MotorMatchReg returns the compare register that drives motor.
func MotorMatchReg(motor MotorID) (MatchReg, bool) {
	if motor >= MotorCount {
		return 0, false
	}
	return motorRegs[motor], true
}

// ServoMatchReg returns the compare register that drives servo.
func ServoMatchReg(servo ServoID) (MatchReg, bool) {
	if !validServo(servo) {
		return 0, false
	}
	return servoRegs[servo-Servo1], true
}

// channelState is the last command applied to an output and the compare
// value it produced.
type channelState struct {
	commanded int
	compare   uint32
}

var (
	motorState      [MotorCount]channelState
	servoState      [ServoCount]channelState
	motorTimerReady bool
	servoTimerReady bool
)

// MotorCompare converts a duty percent to compare ticks. There is no
// clamping: values outside 0..100 extrapolate linearly and negative values
// wrap in the 32-bit register.
func MotorCompare(percent int) uint32 {
	return uint32(MotorTicksPerPercent * percent)
}

// WrapServoDegree folds any angle into [0, 180).
func WrapServoDegree(degree int) int {
	degree %= ServoRangeDegrees
	if degree < 0 {
		degree += ServoRangeDegrees
	}
	return degree
}

// ServoCompare converts an angle to compare ticks after wrapping it.
func ServoCompare(degree int) uint32 {
	return uint32(TicksPer10Microseconds * (WrapServoDegree(degree) + ServoOffset))
}

// InitMotorTimer configures the motor timer for a 50 µs period with both
// motors at the neutral duty and starts it. Calling it again re-applies the
// same configuration.
func InitMotorTimer() {
	t := MustMatchTimer(MotorTimer)

	t.SetMatch(motorPeriodReg, MotorPeriodTicks)
	for id := Motor0; id < MotorCount; id++ {
		writeMotor(t, id, MotorDefaultPercent)
	}

	t.SetMatchControl(MatchControlBits(motorPeriodReg, MatchReset))
	t.SetExternalMatch(ExternalMatchBits(MR0, true, ExternalMatchToggle) |
		ExternalMatchBits(MR1, true, ExternalMatchToggle))
	t.SetPWMControl(PWMChannelBit(MR0) | PWMChannelBit(MR1) | PWMChannelBit(MR2))
	t.SetCounterEnable(true)

	motorTimerReady = true
}

// InitServoTimer configures the servo timer for a 20 ms frame with every
// servo centered and starts it. Calling it again re-applies the same
// configuration.
func InitServoTimer() {
	t := MustMatchTimer(ServoTimer)

	t.SetMatch(servoPeriodReg, ServoPeriodTicks)
	for id := Servo1; id <= Servo3; id++ {
		writeServo(t, id, ServoDefaultDegree)
	}

	t.SetMatchControl(MatchControlBits(servoPeriodReg, MatchReset))
	t.SetExternalMatch(ExternalMatchBits(MR0, true, ExternalMatchToggle) |
		ExternalMatchBits(MR1, true, ExternalMatchToggle) |
		ExternalMatchBits(MR2, true, ExternalMatchToggle))
	t.SetPWMControl(PWMChannelBit(MR0) | PWMChannelBit(MR1) | PWMChannelBit(MR2) | PWMChannelBit(MR3))
	t.SetCounterEnable(true)

	servoTimerReady = true
}

// SetMotorDuty sets motor duty in percent. Unknown motors are ignored.
func SetMotorDuty(motor MotorID, percent int) {
	if motor >= MotorCount {
		return
	}
	writeMotor(MustMatchTimer(MotorTimer), motor, percent)
}

// MoveServo sets a servo angle in degrees; any integer is accepted and
// wrapped into [0, 180). Unknown servos are ignored.
func MoveServo(servo ServoID, degree int) {
	if !validServo(servo) {
		return
	}
	writeServo(MustMatchTimer(ServoTimer), servo, degree)
}

func writeMotor(t MatchTimer, motor MotorID, percent int) {
	compare := MotorCompare(percent)
	t.SetMatch(motorRegs[motor], compare)
	motorState[motor] = channelState{commanded: percent, compare: compare}
}

func writeServo(t MatchTimer, servo ServoID, degree int) {
	wrapped := WrapServoDegree(degree)
	compare := ServoCompare(wrapped)
	t.SetMatch(servoRegs[servo-Servo1], compare)
	servoState[servo-Servo1] = channelState{commanded: wrapped, compare: compare}
}

func validServo(servo ServoID) bool {
	return servo >= Servo1 && servo <= Servo3
}

// MotorState returns the last commanded percent and compare value of a motor.
func MotorState(motor MotorID) (percent int, compare uint32, ok bool) {
	if motor >= MotorCount {
		return 0, 0, false
	}
	s := motorState[motor]
	return s.commanded, s.compare, true
}

// ServoState returns the last commanded (wrapped) angle and compare value of a servo.
func ServoState(servo ServoID) (degree int, compare uint32, ok bool) {
	if !validServo(servo) {
		return 0, 0, false
	}
	s := servoState[servo-Servo1]
	return s.commanded, s.compare, true
}

// ResetActuators returns every initialized output to its default.
func ResetActuators() {
	if motorTimerReady {
		t := MustMatchTimer(MotorTimer)
		for id := Motor0; id < MotorCount; id++ {
			writeMotor(t, id, MotorDefaultPercent)
		}
	}
	if servoTimerReady {
		t := MustMatchTimer(ServoTimer)
		for id := Servo1; id <= Servo3; id++ {
			writeServo(t, id, ServoDefaultDegree)
		}
	}
}
