package core

import (
	"errors"

	"robocore/protocol"
)

var (
	ErrUnknownMotor = errors.New("unknown motor")
	ErrUnknownServo = errors.New("unknown servo")
)

// InitActuatorCommands registers motor and servo commands.
// Percent and degree are signed so out-of-range input reaches the driver
// unchanged.
func InitActuatorCommands() {
	RegisterCommand("set_motor_duty", "mid=%c percent=%i", handleSetMotorDuty)
	RegisterCommand("query_motor", "mid=%c", handleQueryMotor)
	RegisterCommand("move_servo", "sid=%c degree=%i", handleMoveServo)
	RegisterCommand("query_servo", "sid=%c", handleQueryServo)

	RegisterResponse("motor_state", "mid=%c percent=%i compare=%u")
	RegisterResponse("servo_state", "sid=%c degree=%i compare=%u")
}

func decodeMotorID(data *[]byte) (MotorID, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v >= uint32(MotorCount) {
		return 0, ErrUnknownMotor
	}
	return MotorID(v), nil
}

func decodeServoID(data *[]byte) (ServoID, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v < uint32(Servo1) || v > uint32(Servo3) {
		return 0, ErrUnknownServo
	}
	return ServoID(v), nil
}

func handleSetMotorDuty(data *[]byte) error {
	id, err := decodeMotorID(data)
	if err != nil {
		return err
	}
	percent, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return err
	}
	if IsShutdown() {
		return ErrShutdown
	}

	SetMotorDuty(id, int(percent))
	_, compare, _ := MotorState(id)
	RecordEvent(EvtMotorDuty, uint8(id), uint32(percent), compare)
	ToggleStatusLED()
	return nil
}

func handleQueryMotor(data *[]byte) error {
	id, err := decodeMotorID(data)
	if err != nil {
		return err
	}
	percent, compare, _ := MotorState(id)
	SendResponse("motor_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(id))
		protocol.EncodeVLQInt(output, int32(percent))
		protocol.EncodeVLQUint(output, compare)
	})
	return nil
}

func handleMoveServo(data *[]byte) error {
	id, err := decodeServoID(data)
	if err != nil {
		return err
	}
	degree, err := protocol.DecodeVLQInt(data)
	if err != nil {
		return err
	}
	if IsShutdown() {
		return ErrShutdown
	}

	MoveServo(id, int(degree))
	wrapped, compare, _ := ServoState(id)
	RecordEvent(EvtServoMove, uint8(id), uint32(wrapped), compare)
	ToggleStatusLED()
	return nil
}

func handleQueryServo(data *[]byte) error {
	id, err := decodeServoID(data)
	if err != nil {
		return err
	}
	degree, compare, _ := ServoState(id)
	SendResponse("servo_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(id))
		protocol.EncodeVLQInt(output, int32(degree))
		protocol.EncodeVLQUint(output, compare)
	})
	return nil
}
