package core

// EncoderPins names the two signal lines of one encoder.
type EncoderPins struct {
	A GPIOPin
	B GPIOPin
}

// DefaultEncoderPins is the board wiring: encoder 0 on gpio2/gpio3,
// encoder 1 on gpio4/gpio5.
var DefaultEncoderPins = [EncoderCount]EncoderPins{
	{A: 2, B: 3},
	{A: 4, B: 5},
}

// edgeSource routes one interrupting pin to the encoder it belongs to.
type edgeSource struct {
	pin GPIOPin
	id  EncoderID
}

var (
	encoderPins        [EncoderCount]EncoderPins
	edgeSources        [2 * EncoderCount]edgeSource
	encodersConfigured bool
)

// ConfigureEncoderPins sets up all encoder lines as floating inputs, resets
// the decoder, then arms both-edge interrupts on every line.
func ConfigureEncoderPins(pins [EncoderCount]EncoderPins) error {
	gpio := MustGPIO()
	encodersConfigured = false

	for i, p := range pins {
		if err := gpio.ConfigureInput(p.A); err != nil {
			return err
		}
		if err := gpio.ConfigureInput(p.B); err != nil {
			return err
		}
		id := EncoderID(i)
		edgeSources[2*i] = edgeSource{pin: p.A, id: id}
		edgeSources[2*i+1] = edgeSource{pin: p.B, id: id}
	}
	encoderPins = pins

	InitEncoders()
	for i := range edgeSources {
		if err := gpio.ConfigureEdgeInterrupt(edgeSources[i].pin); err != nil {
			return err
		}
	}
	encodersConfigured = true
	return nil
}

// sampleEncoder reads the current phase A<<1 | B of an encoder.
func sampleEncoder(gpio GPIODriver, id EncoderID) uint8 {
	p := &encoderPins[id]
	var raw uint8
	if gpio.ReadPin(p.A) {
		raw |= 2
	}
	if gpio.ReadPin(p.B) {
		raw |= 1
	}
	return raw
}

// EncoderIRQ is the shared edge-interrupt handler body. It services the
// first pending encoder line in table order and returns; any other pending
// line keeps the interrupt asserted and is handled on the next entry.
func EncoderIRQ() {
	if !encodersConfigured {
		return
	}
	gpio := gpioDriver
	for i := range edgeSources {
		src := &edgeSources[i]
		if gpio.InterruptPending(src.pin) {
			EncoderEdge(src.id, sampleEncoder(gpio, src.id))
			gpio.ClearInterrupt(src.pin)
			return
		}
	}
}

// EncoderPinEvent handles an edge on a known pin, for interrupt controllers
// that report which pin fired.
func EncoderPinEvent(pin GPIOPin) {
	if !encodersConfigured {
		return
	}
	gpio := gpioDriver
	for i := range edgeSources {
		src := &edgeSources[i]
		if src.pin == pin {
			EncoderEdge(src.id, sampleEncoder(gpio, src.id))
			gpio.ClearInterrupt(pin)
			return
		}
	}
}

// EncoderPinsFor returns the configured lines of encoder id.
func EncoderPinsFor(id EncoderID) (EncoderPins, bool) {
	if id >= EncoderCount || !encodersConfigured {
		return EncoderPins{}, false
	}
	return encoderPins[id], true
}
