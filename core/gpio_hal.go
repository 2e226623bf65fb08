package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureInput configures a pin as a floating digital input.
	// Encoder lines are driven push-pull by the encoder, so no pull resistor is enabled.
	ConfigureInput(pin GPIOPin) error

	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureEdgeInterrupt arms a pin to interrupt on both rising and falling edges
	ConfigureEdgeInterrupt(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// ReadPin reads the current pin level
	ReadPin(pin GPIOPin) bool

	// InterruptPending reports whether the pin has a latched edge interrupt
	InterruptPending(pin GPIOPin) bool

	// ClearInterrupt acknowledges a latched edge interrupt
	ClearInterrupt(pin GPIOPin)
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
