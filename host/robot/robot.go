package robot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"robocore/host/serial"
	"robocore/protocol"
)

var (
	ErrNotConnected      = errors.New("not connected to board")
	ErrNoDictionary      = errors.New("dictionary not loaded")
	ErrUnknownMessage    = errors.New("unknown message")
	ErrUnknownEncoder    = errors.New("unknown encoder")
	ErrUnknownMotor      = errors.New("unknown motor")
	ErrUnknownServo      = errors.New("unknown servo")
	ErrMissingConstant   = errors.New("constant not in dictionary")
	ErrResponseTimeout   = errors.New("response timeout")
	errDictionaryTooLong = errors.New("dictionary exceeds size limit")
)

const (
	// identify and identify_response have fixed ids so the dictionary can
	// be downloaded before any other id is known.
	identifyResponseID = 0
	identifyID         = 1

	dictionaryChunk = 40
	maxDictionary   = 64 * 1024

	DefaultResponseTimeout = time.Second
)

// Dictionary is the firmware's self-description
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// EncoderReport is one encoder_position message
type EncoderReport struct {
	ID       int    `json:"id"`
	Clock    uint32 `json:"clock"`
	Position int32  `json:"position"`
}

// ActuatorState is a motor_state or servo_state message. Value is the duty
// percent for a motor and the wrapped angle for a servo.
type ActuatorState struct {
	ID      int    `json:"id"`
	Value   int    `json:"value"`
	Compare uint32 `json:"compare"`
}

// FirmwareConfig is the config response
type FirmwareConfig struct {
	Shutdown bool `json:"shutdown"`
	Encoders int  `json:"encoders"`
	Motors   int  `json:"motors"`
	Servos   int  `json:"servos"`
}

type waiter struct {
	name  string
	match func(*Message) bool
	ch    chan *Message
}

// Robot is a connection to a robocore board
type Robot struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser

	mu         sync.Mutex
	dictionary *Dictionary
	rawDict    []byte
	responses  map[uint16]*messageFormat
	commands   map[string]*messageFormat
	waiters    []*waiter
	onEncoder  func(EncoderReport)
	decodeErrs int

	// ResponseTimeout bounds every query
	ResponseTimeout time.Duration
}

// NewRobot creates a Robot that is not yet connected
func NewRobot() *Robot {
	r := &Robot{ResponseTimeout: DefaultResponseTimeout}
	r.resetFormats()
	return r
}

func (r *Robot) resetFormats() {
	identifyResp, _ := parseFormat("identify_response offset=%u data=%*s", identifyResponseID)
	identify, _ := parseFormat("identify offset=%u count=%c", identifyID)
	r.responses = map[uint16]*messageFormat{identifyResponseID: identifyResp}
	r.commands = map[string]*messageFormat{"identify": identify}
	r.dictionary = nil
	r.rawDict = nil
}

// Connect opens device with the default serial settings
func (r *Robot) Connect(device string) error {
	return r.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial port with a custom config
func (r *Robot) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	// Give the board time to enumerate if it just powered on
	time.Sleep(100 * time.Millisecond)
	return r.ConnectPort(port)
}

// ConnectPort attaches to an already open link, such as a simulated board
func (r *Robot) ConnectPort(port io.ReadWriteCloser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transport != nil {
		return errors.New("already connected")
	}
	r.port = port
	r.transport = protocol.NewHostTransport(port)
	r.transport.SetResponseHandler(r.handleBlock)
	return nil
}

// link returns the current transport, nil when not connected
func (r *Robot) link() *protocol.HostTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transport
}

// Close closes the connection and fails any pending query
func (r *Robot) Close() error {
	r.mu.Lock()
	t := r.transport
	r.transport = nil
	r.mu.Unlock()
	if t == nil {
		return nil
	}

	// The reader takes r.mu to dispatch, so close outside the lock
	err := t.Close()

	r.mu.Lock()
	for _, w := range r.waiters {
		close(w.ch)
	}
	r.waiters = nil
	r.mu.Unlock()
	return err
}

// RetrieveDictionary downloads and parses the dictionary in identify chunks
func (r *Robot) RetrieveDictionary() error {
	if r.link() == nil {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	offset := uint32(0)
	for {
		chunk, err := r.identifyChunk(offset)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if offset > maxDictionary {
			return errDictionaryTooLong
		}
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(buf.Bytes(), dict); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	responses := map[uint16]*messageFormat{}
	commands := map[string]*messageFormat{}
	for sig, id := range dict.Responses {
		mf, err := parseFormat(sig, uint16(id))
		if err != nil {
			return err
		}
		responses[mf.id] = mf
	}
	for sig, id := range dict.Commands {
		mf, err := parseFormat(sig, uint16(id))
		if err != nil {
			return err
		}
		commands[mf.name] = mf
	}

	r.mu.Lock()
	r.dictionary = dict
	r.rawDict = buf.Bytes()
	r.responses = responses
	r.commands = commands
	r.mu.Unlock()
	return nil
}

func (r *Robot) identifyChunk(offset uint32) ([]byte, error) {
	msg, err := r.query("identify_response", func(m *Message) bool {
		return m.Get("offset") == int64(offset)
	}, "identify", int64(offset), dictionaryChunk)
	if err != nil {
		return nil, err
	}
	return msg.Data["data"], nil
}

// Dictionary returns the parsed dictionary, nil before RetrieveDictionary
func (r *Robot) Dictionary() *Dictionary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dictionary
}

// RawDictionary returns the downloaded JSON text
func (r *Robot) RawDictionary() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rawDict
}

// Constant returns a dictionary constant
func (r *Robot) Constant(name string) (string, error) {
	dict := r.Dictionary()
	if dict == nil {
		return "", ErrNoDictionary
	}
	v, ok := dict.Config[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrMissingConstant)
	}
	return v, nil
}

// ConstantInt returns a numeric dictionary constant
func (r *Robot) ConstantInt(name string) (int64, error) {
	v, err := r.Constant(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("constant %s: %w", name, err)
	}
	return n, nil
}

// PrintDictionary writes a summary of the dictionary to w
func (r *Robot) PrintDictionary(w io.Writer) {
	dict := r.Dictionary()
	if dict == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintf(w, "Version: %s\n", dict.Version)
	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(dict.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, dict.Config[k])
	}
	fmt.Fprintf(w, "\nCommands (%d):\n", len(dict.Commands))
	printMessages(w, dict.Commands)
	fmt.Fprintf(w, "\nResponses (%d):\n", len(dict.Responses))
	printMessages(w, dict.Responses)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printMessages(w io.Writer, msgs map[string]int) {
	type entry struct {
		id  int
		sig string
	}
	list := make([]entry, 0, len(msgs))
	for sig, id := range msgs {
		list = append(list, entry{id, sig})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	for _, e := range list {
		fmt.Fprintf(w, "  [%d] %s\n", e.id, e.sig)
	}
}

// OnEncoder installs a callback for every encoder_position message,
// including streamed reports. It runs on the transport's read goroutine.
func (r *Robot) OnEncoder(fn func(EncoderReport)) {
	r.mu.Lock()
	r.onEncoder = fn
	r.mu.Unlock()
}

// DecodeErrors returns the number of blocks that could not be decoded
func (r *Robot) DecodeErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decodeErrs
}

// Send encodes a command by name and waits for its acknowledgement
func (r *Robot) Send(name string, args ...int64) error {
	t := r.link()
	if t == nil {
		return ErrNotConnected
	}
	r.mu.Lock()
	mf, ok := r.commands[name]
	r.mu.Unlock()
	if !ok {
		if r.Dictionary() == nil {
			return ErrNoDictionary
		}
		return fmt.Errorf("%s: %w", name, ErrUnknownMessage)
	}

	scratch := protocol.NewScratchOutput()
	if err := mf.encode(scratch, args); err != nil {
		return err
	}
	payload := scratch.Result()

	// HostTransport encodes the id itself
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return err
	}
	return t.SendCommand(uint16(id), func(output protocol.OutputBuffer) {
		output.Output(payload)
	})
}

// query sends a command and returns the first matching response. The
// waiter is registered before sending since the firmware writes the
// response ahead of the acknowledgement.
func (r *Robot) query(resp string, match func(*Message) bool, cmd string, args ...int64) (*Message, error) {
	w := &waiter{name: resp, match: match, ch: make(chan *Message, 1)}
	r.mu.Lock()
	r.waiters = append(r.waiters, w)
	r.mu.Unlock()

	if err := r.Send(cmd, args...); err != nil {
		r.removeWaiter(w)
		return nil, err
	}

	timer := time.NewTimer(r.ResponseTimeout)
	defer timer.Stop()
	select {
	case msg, ok := <-w.ch:
		if !ok {
			return nil, protocol.ErrTransportClosed
		}
		return msg, nil
	case <-timer.C:
		r.removeWaiter(w)
		return nil, fmt.Errorf("%s: %w after %v", resp, ErrResponseTimeout, r.ResponseTimeout)
	}
}

func (r *Robot) removeWaiter(w *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.waiters {
		if x == w {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// handleBlock runs on the read goroutine for every firmware block
func (r *Robot) handleBlock(payload []byte) {
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			r.countDecodeError()
			return
		}
		r.mu.Lock()
		mf, ok := r.responses[uint16(id)]
		r.mu.Unlock()
		if !ok {
			// Without the format the rest of the block cannot be split
			r.countDecodeError()
			return
		}
		msg, err := mf.decode(&payload)
		if err != nil {
			r.countDecodeError()
			return
		}
		r.dispatch(msg)
	}
}

func (r *Robot) countDecodeError() {
	r.mu.Lock()
	r.decodeErrs++
	r.mu.Unlock()
}

func (r *Robot) dispatch(msg *Message) {
	r.mu.Lock()
	var target *waiter
	for i, w := range r.waiters {
		if w.name == msg.Name && (w.match == nil || w.match(msg)) {
			target = w
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			break
		}
	}
	onEncoder := r.onEncoder
	r.mu.Unlock()

	if target != nil {
		target.ch <- msg
	}
	if msg.Name == "encoder_position" && onEncoder != nil {
		onEncoder(encoderReport(msg))
	}
}

func encoderReport(msg *Message) EncoderReport {
	return EncoderReport{
		ID:       int(msg.Get("eid")),
		Clock:    uint32(msg.Get("clock")),
		Position: int32(msg.Get("position")),
	}
}
