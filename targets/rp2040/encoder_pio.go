//go:build rp2040 && pioencoder

package main

import (
	"robocore/core"
	"robocore/targets/pio"
)

// initEncoders samples encoder lines with PIO state machines. Build with
// -tags pioencoder.
func initEncoders() error {
	return pio.StartEncoderSamplers(core.DefaultEncoderPins)
}

func encoderTask() {
	pio.EncoderSampleTask()
}
