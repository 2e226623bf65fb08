package main

// Keys that drive the interactive demos.
const (
	keyDown = 'a'
	keyUp   = 'd'
	keyQuit = 'q'
)

// stepMotor applies one demo key to a duty percent, clamped to 0..100.
func stepMotor(percent int, key rune, step int) int {
	switch key {
	case keyDown:
		percent -= step
	case keyUp:
		percent += step
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent
}

// stepServo applies one demo key to an angle. The angle is not clamped;
// the firmware wraps it into 0..179.
func stepServo(degree int, key rune, step int) int {
	switch key {
	case keyDown:
		degree -= step
	case keyUp:
		degree += step
	}
	return degree
}
