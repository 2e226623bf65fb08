package robot

import (
	"fmt"
	"time"
)

func (r *Robot) checkID(id int, lo int, countConst string, sentinel error) error {
	n, err := r.ConstantInt(countConst)
	if err != nil {
		return err
	}
	if id < lo || id >= lo+int(n) {
		return fmt.Errorf("%w: %d", sentinel, id)
	}
	return nil
}

func matchID(key string, id int) func(*Message) bool {
	return func(m *Message) bool { return m.Get(key) == int64(id) }
}

// EncoderPosition queries the current count of encoder id (0 or 1)
func (r *Robot) EncoderPosition(id int) (EncoderReport, error) {
	if err := r.checkID(id, 0, "ENCODER_COUNT", ErrUnknownEncoder); err != nil {
		return EncoderReport{}, err
	}
	msg, err := r.query("encoder_position", matchID("eid", id), "query_encoder", int64(id))
	if err != nil {
		return EncoderReport{}, err
	}
	return encoderReport(msg), nil
}

// StreamEncoder asks for a report of encoder id every interval, delivered to
// the OnEncoder callback. A zero interval stops the stream.
func (r *Robot) StreamEncoder(id int, interval time.Duration) error {
	if err := r.checkID(id, 0, "ENCODER_COUNT", ErrUnknownEncoder); err != nil {
		return err
	}
	freq, err := r.ConstantInt("CLOCK_FREQ")
	if err != nil {
		return err
	}
	rest := int64(interval) * freq / int64(time.Second)
	if interval > 0 && rest == 0 {
		rest = 1
	}
	return r.Send("stream_encoder", int64(id), 0, rest)
}

// SetMotorDuty sets motor id (0 or 1) to percent. Values outside 0..100
// are passed through; the firmware does not clamp them.
func (r *Robot) SetMotorDuty(id, percent int) error {
	if err := r.checkID(id, 0, "MOTOR_COUNT", ErrUnknownMotor); err != nil {
		return err
	}
	return r.Send("set_motor_duty", int64(id), int64(percent))
}

// MotorState returns the last commanded duty of motor id
func (r *Robot) MotorState(id int) (ActuatorState, error) {
	if err := r.checkID(id, 0, "MOTOR_COUNT", ErrUnknownMotor); err != nil {
		return ActuatorState{}, err
	}
	msg, err := r.query("motor_state", matchID("mid", id), "query_motor", int64(id))
	if err != nil {
		return ActuatorState{}, err
	}
	return ActuatorState{ID: id, Value: int(msg.Get("percent")), Compare: uint32(msg.Get("compare"))}, nil
}

// MoveServo moves servo id (1..3) to degree; the firmware wraps it into 0..179
func (r *Robot) MoveServo(id, degree int) error {
	if err := r.checkID(id, 1, "SERVO_COUNT", ErrUnknownServo); err != nil {
		return err
	}
	return r.Send("move_servo", int64(id), int64(degree))
}

// ServoState returns the wrapped angle of servo id
func (r *Robot) ServoState(id int) (ActuatorState, error) {
	if err := r.checkID(id, 1, "SERVO_COUNT", ErrUnknownServo); err != nil {
		return ActuatorState{}, err
	}
	msg, err := r.query("servo_state", matchID("sid", id), "query_servo", int64(id))
	if err != nil {
		return ActuatorState{}, err
	}
	return ActuatorState{ID: id, Value: int(msg.Get("degree")), Compare: uint32(msg.Get("compare"))}, nil
}

// EmergencyStop returns every output to its default and latches shutdown
// until the link is reset
func (r *Robot) EmergencyStop() error {
	return r.Send("emergency_stop")
}

// Config queries the firmware configuration
func (r *Robot) Config() (FirmwareConfig, error) {
	msg, err := r.query("config", nil, "get_config")
	if err != nil {
		return FirmwareConfig{}, err
	}
	return FirmwareConfig{
		Shutdown: msg.Get("is_shutdown") != 0,
		Encoders: int(msg.Get("encoders")),
		Motors:   int(msg.Get("motors")),
		Servos:   int(msg.Get("servos")),
	}, nil
}

// Clock returns the firmware's 1 MHz clock
func (r *Robot) Clock() (uint32, error) {
	msg, err := r.query("clock", nil, "get_clock")
	if err != nil {
		return 0, err
	}
	return uint32(msg.Get("clock")), nil
}

// SetDebug turns firmware debug output on or off
func (r *Robot) SetDebug(enable bool) error {
	v := int64(0)
	if enable {
		v = 1
	}
	return r.Send("set_debug", v)
}
