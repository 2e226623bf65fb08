package robot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"robocore/protocol"
)

var errUnsupportedType = errors.New("unsupported parameter type")

type paramKind uint8

const (
	kindUint paramKind = iota
	kindInt
	kindBytes
)

type param struct {
	name string
	kind paramKind
}

// messageFormat is a parsed dictionary entry such as
// "encoder_position eid=%c clock=%u position=%i".
type messageFormat struct {
	id     uint16
	name   string
	params []param
}

func parseFormat(signature string, id uint16) (*messageFormat, error) {
	fields := strings.Fields(signature)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message format for id %d", id)
	}
	mf := &messageFormat{id: id, name: fields[0]}
	for _, f := range fields[1:] {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: malformed parameter %q", mf.name, f)
		}
		var kind paramKind
		switch parts[1] {
		case "%c", "%u", "%hu":
			kind = kindUint
		case "%i", "%hi":
			kind = kindInt
		case "%*s", "%.*s", "%s":
			kind = kindBytes
		default:
			return nil, fmt.Errorf("%s %s: %w", mf.name, parts[0], errUnsupportedType)
		}
		mf.params = append(mf.params, param{name: parts[0], kind: kind})
	}
	return mf, nil
}

// encode writes the message id and args in parameter order. Byte parameters
// are not supported for commands.
func (mf *messageFormat) encode(output protocol.OutputBuffer, args []int64) error {
	if len(args) != len(mf.params) {
		return fmt.Errorf("%s expects %d arguments, got %d", mf.name, len(mf.params), len(args))
	}
	protocol.EncodeVLQUint(output, uint32(mf.id))
	for i, p := range mf.params {
		switch p.kind {
		case kindUint:
			protocol.EncodeVLQUint(output, uint32(args[i]))
		case kindInt:
			protocol.EncodeVLQInt(output, int32(args[i]))
		default:
			return fmt.Errorf("%s %s: %w", mf.name, p.name, errUnsupportedType)
		}
	}
	return nil
}

// decode reads the parameters of one message; data is advanced past it.
func (mf *messageFormat) decode(data *[]byte) (*Message, error) {
	msg := &Message{Name: mf.name, Params: make(map[string]int64, len(mf.params))}
	for _, p := range mf.params {
		switch p.kind {
		case kindUint:
			v, err := protocol.DecodeVLQUint(data)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", mf.name, p.name, err)
			}
			msg.Params[p.name] = int64(v)
		case kindInt:
			v, err := protocol.DecodeVLQInt(data)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", mf.name, p.name, err)
			}
			msg.Params[p.name] = int64(v)
		case kindBytes:
			v, err := protocol.DecodeVLQBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", mf.name, p.name, err)
			}
			if msg.Data == nil {
				msg.Data = make(map[string][]byte)
			}
			msg.Data[p.name] = append([]byte(nil), v...)
		}
	}
	return msg, nil
}

// Message is one decoded firmware response
type Message struct {
	Name   string
	Params map[string]int64
	Data   map[string][]byte
}

// Get returns an integer parameter, 0 if absent
func (m *Message) Get(name string) int64 {
	return m.Params[name]
}

func (m *Message) String() string {
	keys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(m.Name)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%d", k, m.Params[k])
	}
	for k, v := range m.Data {
		fmt.Fprintf(&b, " %s=%q", k, v)
	}
	return b.String()
}
