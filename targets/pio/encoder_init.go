//go:build rp2040

package pio

import "robocore/core"

var samplers []*EncoderSampler

// StartEncoderSamplers replaces GPIO edge interrupts with one PIO state
// machine per encoder.
func StartEncoderSamplers(pins [core.EncoderCount]core.EncoderPins) error {
	core.InitEncoders()
	for i, p := range pins {
		pioNum, smNum, ok := allocatePIO()
		if !ok {
			return errNoStateMachine
		}
		s := NewEncoderSampler(pioNum, smNum, core.EncoderID(i))
		if err := s.Init(p); err != nil {
			releasePIO(pioNum, smNum)
			return err
		}
		samplers = append(samplers, s)
	}
	return nil
}

// EncoderSampleTask drains every sampler. Call it from the main loop.
func EncoderSampleTask() {
	for _, s := range samplers {
		s.Drain()
	}
}
