//go:build rp2040 && !pioencoder

package main

import "robocore/core"

// initEncoders arms GPIO edge interrupts on every encoder line.
func initEncoders() error {
	return core.ConfigureEncoderPins(core.DefaultEncoderPins)
}

// encoderTask has nothing to do: edges are decoded in interrupt context.
func encoderTask() {}
