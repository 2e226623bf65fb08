package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTransportClosed is returned once Close has been called.
var ErrTransportClosed = errors.New("transport closed")

// DefaultAckTimeout bounds how long SendCommand waits for an acknowledgement.
const DefaultAckTimeout = 2 * time.Second

// ResponseHandler receives every non-empty block from the firmware. payload
// holds one or more messages, each starting with its VLQ message id.
type ResponseHandler func(payload []byte)

// Message is a block received from the firmware
type Message struct {
	Sequence uint8
	Payload  []byte
}

// HostTransport is the host end of the link: it sends commands, waits for
// their acknowledgement and delivers firmware messages.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // sequence of the next block to send

	framer      *Framer
	inputBuffer *FifoBuffer

	ackChan      chan Message
	responseChan chan Message

	handlerMu       sync.RWMutex
	responseHandler ResponseHandler

	sendMu sync.Mutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts a transport reading from port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		framer:       NewFramer(false),
		inputBuffer:  NewFifoBuffer(1024),
		ackChan:      make(chan Message, 4),
		responseChan: make(chan Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one message and waits for the block to be acknowledged
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout is SendCommand with a custom acknowledgement timeout.
// If the firmware acknowledges with an unexpected sequence, the transport
// adopts the firmware's sequence and retransmits once.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		t.drainAcks()

		seq := t.CurrentSequence()
		block, err := AppendBlock(nil, seq, payload)
		if err != nil {
			return fmt.Errorf("command %d: %w", cmdID, err)
		}
		if err := t.write(block); err != nil {
			return fmt.Errorf("write command %d: %w", cmdID, err)
		}

		ack, err := t.waitForAck(timeout)
		if err != nil {
			return fmt.Errorf("command %d: %w", cmdID, err)
		}
		if ack.Sequence == nextSeq(seq) {
			atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
			return nil
		}
		atomic.StoreUint32(&t.currentSeq, uint32(ack.Sequence))
		lastErr = fmt.Errorf("sequence mismatch: sent 0x%02x, firmware expects 0x%02x", seq, ack.Sequence)
	}
	return lastErr
}

func (t *HostTransport) write(block []byte) error {
	n, err := t.port.Write(block)
	if err != nil {
		return err
	}
	if n != len(block) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(block))
	}
	return nil
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.ackChan:
		default:
			return
		}
	}
}

func (t *HostTransport) waitForAck(timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ack := <-t.ackChan:
		return ack, nil
	case <-timer.C:
		return Message{}, fmt.Errorf("ACK timeout after %v", timeout)
	case <-t.stopChan:
		return Message{}, ErrTransportClosed
	}
}

// ReceiveResponse returns the next firmware message block
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return Message{}, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return Message{}, ErrTransportClosed
	}
}

// SetResponseHandler installs a callback run from the read loop for every
// firmware message block
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.responseHandler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.inputBuffer.Write(buf[:n])
			t.processInput()
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processInput() {
	data := t.inputBuffer.Data()
	for {
		block, rest := t.framer.Next(data)
		data = rest
		if block == nil {
			break
		}
		payload := make([]byte, len(BlockPayload(block)))
		copy(payload, BlockPayload(block))
		t.deliver(Message{Sequence: BlockSeq(block), Payload: payload})
	}
	if consumed := t.inputBuffer.Available() - len(data); consumed > 0 {
		t.inputBuffer.Pop(consumed)
	}
}

func (t *HostTransport) deliver(msg Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	t.handlerMu.RLock()
	handler := t.responseHandler
	t.handlerMu.RUnlock()
	if handler != nil {
		handler(msg.Payload)
		return
	}

	// Without a handler keep the newest messages for ReceiveResponse.
	select {
	case t.responseChan <- msg:
	default:
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// CurrentSequence returns the sequence of the next block to send
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}

// Reset restarts the sequence at 0x10 and drops buffered input
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	t.drainAcks()
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}
