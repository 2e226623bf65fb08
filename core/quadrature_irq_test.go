package core

import "testing"

// gray is the forward phase cycle expressed as A/B levels.
var gray = [4][2]bool{
	{false, false},
	{false, true},
	{true, true},
	{true, false},
}

// turn moves an encoder by steps quarter cycles, servicing the interrupt
// after every line change as the hardware would.
func turn(b *testBoard, id EncoderID, pins EncoderPins, step *int, steps int) {
	dir := 1
	if steps < 0 {
		dir, steps = -1, -steps
	}
	for i := 0; i < steps; i++ {
		*step = (*step + dir + 4) % 4
		b.gpio.drive(pins.A, gray[*step][0])
		b.gpio.drive(pins.B, gray[*step][1])
		EncoderIRQ()
	}
}

func TestConfigureEncoderPins(t *testing.T) {
	b := setupBoard(t)

	if err := ConfigureEncoderPins(DefaultEncoderPins); err != nil {
		t.Fatalf("ConfigureEncoderPins: %v", err)
	}

	for _, p := range DefaultEncoderPins {
		for _, pin := range []GPIOPin{p.A, p.B} {
			if !b.gpio.inputs[pin] {
				t.Errorf("pin %d not configured as input", pin)
			}
			if !b.gpio.armed[pin] {
				t.Errorf("pin %d edge interrupt not armed", pin)
			}
		}
	}
	if pins, ok := EncoderPinsFor(Encoder1); !ok || pins != DefaultEncoderPins[1] {
		t.Errorf("EncoderPinsFor(1) = %v, %v", pins, ok)
	}
}

func TestEncoderIRQCountsTurns(t *testing.T) {
	b := setupBoard(t)
	if err := ConfigureEncoderPins(DefaultEncoderPins); err != nil {
		t.Fatalf("ConfigureEncoderPins: %v", err)
	}

	step0, step1 := 0, 0
	turn(b, Encoder0, DefaultEncoderPins[0], &step0, 12)
	turn(b, Encoder1, DefaultEncoderPins[1], &step1, -6)

	if got := EncoderPosition(Encoder0); got != 12 {
		t.Errorf("Encoder 0 position %d, want 12", got)
	}
	if got := EncoderPosition(Encoder1); got != -6 {
		t.Errorf("Encoder 1 position %d, want -6", got)
	}

	turn(b, Encoder0, DefaultEncoderPins[0], &step0, -12)
	if got := EncoderPosition(Encoder0); got != 0 {
		t.Errorf("Encoder 0 back to %d, want 0", got)
	}
}

func TestEncoderIRQServicesOnePinPerEntry(t *testing.T) {
	b := setupBoard(t)
	if err := ConfigureEncoderPins(DefaultEncoderPins); err != nil {
		t.Fatalf("ConfigureEncoderPins: %v", err)
	}

	// Encoder 0 moves to phase 1 (B high), encoder 1 to phase 2 (A high).
	b.gpio.drive(DefaultEncoderPins[1].A, true)
	b.gpio.drive(DefaultEncoderPins[0].B, true)

	EncoderIRQ()
	if EncoderPosition(Encoder0) != 1 || EncoderPosition(Encoder1) != 0 {
		t.Fatalf("After first entry positions %d/%d, want 1/0",
			EncoderPosition(Encoder0), EncoderPosition(Encoder1))
	}
	if !b.gpio.pending[DefaultEncoderPins[1].A] {
		t.Fatal("Second pending pin was cleared early")
	}

	EncoderIRQ()
	if EncoderPosition(Encoder1) != -1 {
		t.Errorf("After second entry encoder 1 = %d, want -1", EncoderPosition(Encoder1))
	}
	if len(b.gpio.cleared) != 2 {
		t.Errorf("Expected 2 interrupt clears, got %v", b.gpio.cleared)
	}
}

func TestEncoderPinEvent(t *testing.T) {
	b := setupBoard(t)
	if err := ConfigureEncoderPins(DefaultEncoderPins); err != nil {
		t.Fatalf("ConfigureEncoderPins: %v", err)
	}

	b.gpio.levels[DefaultEncoderPins[0].B] = true
	EncoderPinEvent(DefaultEncoderPins[0].B)
	if got := EncoderPosition(Encoder0); got != 1 {
		t.Errorf("Encoder 0 position %d, want 1", got)
	}

	EncoderPinEvent(GPIOPin(25))
	if EncoderPosition(Encoder0) != 1 || EncoderPosition(Encoder1) != 0 {
		t.Error("Unknown pin changed encoder state")
	}
}

func TestEncoderIRQBeforeConfigure(t *testing.T) {
	b := setupBoard(t)
	b.gpio.pending[DefaultEncoderPins[0].A] = true

	EncoderIRQ()
	EncoderPinEvent(DefaultEncoderPins[0].A)

	if len(b.gpio.cleared) != 0 || EncoderPosition(Encoder0) != 0 {
		t.Error("Unconfigured handler touched state")
	}
}
