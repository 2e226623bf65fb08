//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync/atomic"

	"robocore/core"
)

const numGPIO = 30

var errPinRange = errors.New("gpio out of range")

// RPGPIODriver implements the GPIODriver interface for RP2040
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin

	// pending latches edges until the core clears them; written from the
	// pin interrupt callback
	pending [numGPIO]uint32
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureInput configures a floating input; encoder boards supply their own pull-ups
func (d *RPGPIODriver) ConfigureInput(pin core.GPIOPin) error {
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinInput})
	d.configuredPins[pin] = machinePin
	return nil
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

// ConfigureEdgeInterrupt arms rising and falling edge interrupts.
func (d *RPGPIODriver) ConfigureEdgeInterrupt(pin core.GPIOPin) error {
	if int(pin) >= numGPIO {
		return errPinRange
	}
	atomic.StoreUint32(&d.pending[pin], 0)
	return machine.Pin(pin).SetInterrupt(machine.PinRising|machine.PinFalling, d.onEdge)
}

// onEdge runs in interrupt context.
func (d *RPGPIODriver) onEdge(p machine.Pin) {
	if int(p) >= numGPIO {
		return
	}
	atomic.StoreUint32(&d.pending[p], 1)
	core.EncoderPinEvent(core.GPIOPin(p))
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}
	machinePin.Set(value)
	return nil
}

func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

func (d *RPGPIODriver) InterruptPending(pin core.GPIOPin) bool {
	return int(pin) < numGPIO && atomic.LoadUint32(&d.pending[pin]) != 0
}

func (d *RPGPIODriver) ClearInterrupt(pin core.GPIOPin) {
	if int(pin) < numGPIO {
		atomic.StoreUint32(&d.pending[pin], 0)
	}
}
