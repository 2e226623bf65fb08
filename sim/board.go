// Package sim runs the robocore firmware in-process against modelled
// peripherals, so the host tools work without hardware.
package sim

import (
	"errors"
	"io"
	"sync"
	"time"

	"robocore/core"
	"robocore/protocol"
)

// ErrClosed is returned by Board methods after Close.
var ErrClosed = errors.New("simulated board closed")

// DefaultTick is how often the firmware loop runs without input.
const DefaultTick = time.Millisecond

// Board owns the firmware state. core keeps its state in package globals,
// so at most one Board may run at a time in a process.
type Board struct {
	GPIO  *GPIO
	Motor *RegisterTimer
	Servo *RegisterTimer

	input     *protocol.FifoBuffer
	output    *protocol.ScratchOutput
	transport *protocol.Transport

	rx    chan []byte
	calls chan func()
	stop  chan struct{}
	done  chan struct{}
	close sync.Once

	// owned by the firmware goroutine
	out    io.WriteCloser
	start  time.Time
	phase  [core.EncoderCount]int
	resets int
}

// Option configures a Board
type Option func(*Board)

// WithDebug sends firmware debug output to w
func WithDebug(w io.Writer) Option {
	return func(b *Board) {
		core.SetDebugWriter(func(s string) {
			io.WriteString(w, s+"\n")
		})
		core.SetDebugEnabled(true)
	}
}

// NewBoard boots the firmware and starts its main loop
func NewBoard(opts ...Option) *Board {
	b := &Board{
		GPIO:   NewGPIO(),
		Motor:  &RegisterTimer{Polarity: core.OutputPolarity(core.MotorTimer)},
		Servo:  &RegisterTimer{Polarity: core.OutputPolarity(core.ServoTimer)},
		input:  protocol.NewFifoBuffer(256),
		output: protocol.NewScratchOutput(),
		rx:     make(chan []byte, 16),
		calls:  make(chan func()),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	core.SetDebugWriter(nil)
	core.SetDebugEnabled(false)
	for _, opt := range opts {
		opt(b)
	}
	b.boot()
	go b.run()
	return b
}

func (b *Board) boot() {
	core.SetGPIODriver(b.GPIO)
	core.SetMatchTimer(core.MotorTimer, b.Motor)
	core.SetMatchTimer(core.ServoTimer, b.Servo)

	b.start = time.Now()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitEncoderCommands()
	core.InitActuatorCommands()
	core.RegisterConstant("MCU", "sim")

	core.ResetFirmwareState()
	core.ClearEventRing()
	b.resetPeripherals()
	core.GetGlobalDictionary().BuildDictionary()

	b.transport = protocol.NewTransport(b.output, core.DispatchCommand)
	b.transport.SetResetCallback(func() {
		b.input.Reset()
		core.ResetFirmwareState()
	})
	b.transport.SetFlushCallback(b.flush)
	b.transport.SetErrorCallback(core.HandleCommandError)
	core.SetGlobalTransport(b.transport)

	core.SetResetHandler(func() {
		b.resets++
		b.start = time.Now()
		core.TimerInit()
		b.resetPeripherals()
		b.input.Reset()
		b.output.Reset()
		b.transport.Reset()
	})
}

func (b *Board) resetPeripherals() {
	for i := range b.phase {
		b.phase[i] = 0
		pins := core.DefaultEncoderPins[i]
		b.GPIO.Drive(pins.A, false)
		b.GPIO.Drive(pins.B, false)
	}
	if err := core.ConfigureEncoderPins(core.DefaultEncoderPins); err != nil {
		core.DebugPrintln("[sim] encoders: " + err.Error())
	}
	core.InitMotorTimer()
	core.InitServoTimer()
}

// Port returns the host end of a fresh serial link. A previous link is
// closed; the firmware resynchronises when the new host restarts its
// sequence.
func (b *Board) Port() (io.ReadWriteCloser, error) {
	hostR, fwW := io.Pipe()
	fwR, hostW := io.Pipe()

	err := b.call(func() {
		if b.out != nil {
			b.out.Close()
		}
		b.out = fwW
	})
	if err != nil {
		return nil, err
	}

	go b.readLink(fwR)
	return &hostLink{r: hostR, w: hostW}, nil
}

func (b *Board) readLink(r *io.PipeReader) {
	defer r.Close()
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case b.rx <- data:
			case <-b.stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// hostLink is the host side of the simulated USB link
type hostLink struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (l *hostLink) Read(p []byte) (int, error)  { return l.r.Read(p) }
func (l *hostLink) Write(p []byte) (int, error) { return l.w.Write(p) }
func (l *hostLink) Flush() error                { return nil }

func (l *hostLink) Close() error {
	l.w.Close()
	return l.r.Close()
}

// call runs fn on the firmware goroutine and waits for it
func (b *Board) call(fn func()) error {
	done := make(chan struct{})
	select {
	case b.calls <- func() { fn(); close(done) }:
	case <-b.stop:
		return ErrClosed
	}
	<-done
	return nil
}

func (b *Board) run() {
	defer close(b.done)
	ticker := time.NewTicker(DefaultTick)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			if b.out != nil {
				b.out.Close()
			}
			return
		case data := <-b.rx:
			b.input.Write(data)
		case fn := <-b.calls:
			fn()
		case <-ticker.C:
		}
		b.step()
	}
}

// step is one pass of the firmware main loop
func (b *Board) step() {
	core.SetTime(uint32(time.Since(b.start).Microseconds()))

	if b.input.Available() > 0 {
		data := b.input.Data()
		in := protocol.NewSliceInputBuffer(data)
		b.transport.Receive(in)
		if consumed := len(data) - in.Available(); consumed > 0 {
			b.input.Pop(consumed)
		}
	}

	core.ProcessTimers()
	core.EncoderReportTask()
	b.flush()
	core.CheckPendingReset()
}

func (b *Board) flush() {
	result := b.output.Result()
	if len(result) == 0 {
		return
	}
	if b.out != nil {
		if _, err := b.out.Write(result); err != nil {
			// Host went away; drop what it did not read
			b.out = nil
		}
	}
	b.output.Reset()
}

// Turn rotates encoder id by steps quarter cycles (negative turns backwards),
// producing one line change and one interrupt per step.
func (b *Board) Turn(id core.EncoderID, steps int) error {
	if id >= core.EncoderCount {
		return core.ErrUnknownEncoder
	}
	return b.call(func() {
		pins := core.DefaultEncoderPins[id]
		dir := 1
		if steps < 0 {
			dir, steps = -1, -steps
		}
		for i := 0; i < steps; i++ {
			b.phase[id] = (b.phase[id] + dir + 4) % 4
			b.GPIO.Drive(pins.A, gray[b.phase[id]][0])
			b.GPIO.Drive(pins.B, gray[b.phase[id]][1])
			for b.GPIO.anyPending() {
				core.EncoderIRQ()
			}
		}
	})
}

// Position reads encoder id directly from the decoder
func (b *Board) Position(id core.EncoderID) (int32, error) {
	var pos int32
	err := b.call(func() { pos = core.EncoderPosition(id) })
	return pos, err
}

// ServoPulse returns the high time of servo id's output
func (b *Board) ServoPulse(id core.ServoID) (time.Duration, error) {
	reg, ok := core.ServoMatchReg(id)
	if !ok {
		return 0, core.ErrUnknownServo
	}
	return ticksToDuration(b.Servo.HighTicks(reg)), nil
}

// MotorDuty returns the fraction of each period motor id's output is high
func (b *Board) MotorDuty(id core.MotorID) (float64, error) {
	reg, ok := core.MotorMatchReg(id)
	if !ok {
		return 0, core.ErrUnknownMotor
	}
	period := b.Motor.PeriodTicks()
	if period == 0 {
		return 0, nil
	}
	return float64(b.Motor.HighTicks(reg)) / float64(period), nil
}

func ticksToDuration(ticks uint32) time.Duration {
	return time.Duration(uint64(ticks) * uint64(time.Second) / core.CPUClockHz)
}

// Resets returns how many times the reset command rebooted the board
func (b *Board) Resets() int {
	var n int
	b.call(func() { n = b.resets })
	return n
}

// Close stops the firmware loop and the current link
func (b *Board) Close() error {
	b.close.Do(func() {
		close(b.stop)
		<-b.done
	})
	return nil
}
