package sim

import (
	"sync"

	"robocore/core"
)

// gray is the forward phase cycle of a quadrature encoder as A/B levels.
var gray = [4][2]bool{
	{false, false},
	{false, true},
	{true, true},
	{true, false},
}

// GPIO models pin levels and latched both-edge interrupts.
type GPIO struct {
	mu      sync.Mutex
	outputs map[core.GPIOPin]bool
	armed   map[core.GPIOPin]bool
	levels  map[core.GPIOPin]bool
	pending map[core.GPIOPin]bool
}

// NewGPIO creates a GPIO model with every line low
func NewGPIO() *GPIO {
	return &GPIO{
		outputs: make(map[core.GPIOPin]bool),
		armed:   make(map[core.GPIOPin]bool),
		levels:  make(map[core.GPIOPin]bool),
		pending: make(map[core.GPIOPin]bool),
	}
}

func (g *GPIO) ConfigureInput(pin core.GPIOPin) error {
	g.mu.Lock()
	delete(g.outputs, pin)
	g.mu.Unlock()
	return nil
}

func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.mu.Lock()
	g.outputs[pin] = true
	g.mu.Unlock()
	return nil
}

func (g *GPIO) ConfigureEdgeInterrupt(pin core.GPIOPin) error {
	g.mu.Lock()
	g.armed[pin] = true
	g.pending[pin] = false
	g.mu.Unlock()
	return nil
}

func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	g.levels[pin] = value
	g.mu.Unlock()
	return nil
}

func (g *GPIO) ReadPin(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

func (g *GPIO) InterruptPending(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending[pin]
}

func (g *GPIO) ClearInterrupt(pin core.GPIOPin) {
	g.mu.Lock()
	g.pending[pin] = false
	g.mu.Unlock()
}

// Drive sets an input line from outside the chip, latching an interrupt if
// the level changed on an armed pin. It reports whether an edge was latched.
func (g *GPIO) Drive(pin core.GPIOPin, level bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.levels[pin] == level {
		return false
	}
	g.levels[pin] = level
	if g.armed[pin] {
		g.pending[pin] = true
		return true
	}
	return false
}

func (g *GPIO) anyPending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.pending {
		if p {
			return true
		}
	}
	return false
}

// Level returns the current level of a line
func (g *GPIO) Level(pin core.GPIOPin) bool {
	return g.ReadPin(pin)
}
