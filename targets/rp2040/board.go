//go:build rp2040

package main

import (
	"machine"

	"robocore/core"
	"tinygo.org/x/drivers/servo"
)

// Board wiring. Encoders use core.DefaultEncoderPins (gpio2..gpio5).
const (
	motor0Pin = machine.GPIO6  // PWM3 A
	motor1Pin = machine.GPIO7  // PWM3 B
	servo1Pin = machine.GPIO8  // PWM4 A
	servo2Pin = machine.GPIO9  // PWM4 B
	servo3Pin = machine.GPIO10 // PWM5 A

	statusLEDPin = machine.LED
)

// initMatchTimers builds the motor and servo timers on their PWM slices and
// registers them with the core.
func initMatchTimers() error {
	motorSlice := servo.PWM(machine.PWM3)
	motors := NewSliceMatchTimer(core.OutputPolarity(core.MotorTimer), motorSlice)
	motorPins := [core.MotorCount]machine.Pin{motor0Pin, motor1Pin}
	for id, pin := range motorPins {
		reg, _ := core.MotorMatchReg(core.MotorID(id))
		if err := motors.Route(reg, motorSlice, pin); err != nil {
			return err
		}
	}

	servoA, servoB := servo.PWM(machine.PWM4), servo.PWM(machine.PWM5)
	servos := NewSliceMatchTimer(core.OutputPolarity(core.ServoTimer), servoA, servoB)
	routes := []struct {
		id  core.ServoID
		pwm servo.PWM
		pin machine.Pin
	}{
		{core.Servo1, servoA, servo1Pin},
		{core.Servo2, servoA, servo2Pin},
		{core.Servo3, servoB, servo3Pin},
	}
	for _, r := range routes {
		reg, _ := core.ServoMatchReg(r.id)
		if err := servos.Route(reg, r.pwm, r.pin); err != nil {
			return err
		}
	}

	core.SetMatchTimer(core.MotorTimer, motors)
	core.SetMatchTimer(core.ServoTimer, servos)
	return nil
}
