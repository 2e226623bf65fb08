package core

var (
	statusLEDPin        GPIOPin
	statusLEDConfigured bool
	statusLEDOn         bool
)

// ConfigureStatusLED sets up pin as the activity indicator.
func ConfigureStatusLED(pin GPIOPin) error {
	gpio := MustGPIO()
	if err := gpio.ConfigureOutput(pin); err != nil {
		return err
	}
	statusLEDPin = pin
	statusLEDConfigured = true
	statusLEDOn = false
	return gpio.SetPin(pin, false)
}

// ToggleStatusLED flips the activity indicator; a no-op until configured.
func ToggleStatusLED() {
	if !statusLEDConfigured {
		return
	}
	statusLEDOn = !statusLEDOn
	if err := MustGPIO().SetPin(statusLEDPin, statusLEDOn); err != nil {
		DebugPrintln("[led] set pin " + utoa(uint32(statusLEDPin)) + ": " + err.Error())
	}
}
