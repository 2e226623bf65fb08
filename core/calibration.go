package core

// Board calibration. Every compare value written to a match timer is derived
// from these constants; the counters run at the CPU clock with no prescaler.
const (
	// CPUClockHz is the match-timer input clock.
	CPUClockHz = 72000000

	TicksPerMicrosecond     = CPUClockHz / 1000000
	TicksPer10Microseconds  = TicksPerMicrosecond * 10
	TicksPer100Microseconds = TicksPerMicrosecond * 100
)

// Motor timer calibration.
const (
	// MotorPeriodUS is the motor PWM period in microseconds (20 kHz).
	MotorPeriodUS = 50

	// MotorPeriodTicks is the value loaded into the motor period register.
	MotorPeriodTicks = TicksPerMicrosecond * MotorPeriodUS

	// MotorTicksPerPercent converts a duty percent into compare ticks.
	// The division happens before the multiply so 1 % is exactly 36 ticks.
	MotorTicksPerPercent = TicksPerMicrosecond / 2

	// MotorDefaultPercent is neutral for a locked-antiphase H-bridge.
	MotorDefaultPercent = 50
)

// Servo timer calibration.
const (
	// ServoFrame100US is the servo frame length in 100 µs units (20 ms).
	ServoFrame100US = 200

	// ServoPeriodTicks is the value loaded into the servo period register.
	ServoPeriodTicks = TicksPer100Microseconds * ServoFrame100US

	// ServoOffset is the compare offset in 10 µs units. The output stays low
	// until the compare match, so the high pulse is ServoPeriodTicks minus
	// the compare value: 2.4 ms at 0° down to 0.61 ms at 179°.
	ServoOffset = 1760

	// ServoRangeDegrees is the wrap modulus for commanded angles.
	ServoRangeDegrees = 180

	// ServoDefaultDegree is where every servo sits after timer init.
	ServoDefaultDegree = 90
)

// RegisterCalibrationConstants publishes the calibration to the host
// dictionary so host tools can convert compare values back to time.
func RegisterCalibrationConstants() {
	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	RegisterConstant("TIMER_CLOCK_FREQ", uint32(CPUClockHz))
	RegisterConstant("ENCODER_COUNT", uint32(EncoderCount))
	RegisterConstant("MOTOR_COUNT", uint32(MotorCount))
	RegisterConstant("SERVO_COUNT", uint32(ServoCount))
	RegisterConstant("MOTOR_PERIOD_TICKS", uint32(MotorPeriodTicks))
	RegisterConstant("SERVO_PERIOD_TICKS", uint32(ServoPeriodTicks))
	RegisterConstant("SERVO_OFFSET", uint32(ServoOffset))
}
