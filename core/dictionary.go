package core

import "sync"

// FirmwareVersion is reported in the dictionary.
const FirmwareVersion = "robocore-0.3.0"

// Constant is a named value published to the host.
type Constant struct {
	Name  string
	Value interface{}
}

// Dictionary is the JSON document the host downloads with identify: the
// firmware version, constants and every registered message with its id.
type Dictionary struct {
	mu         sync.RWMutex
	constants  []Constant
	commandReg *CommandRegistry
	version    string
	cached     []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary over cmdReg
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		commandReg: cmdReg,
		version:    FirmwareVersion,
	}
}

// GetGlobalDictionary returns the dictionary served by identify
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// RegisterConstant adds or replaces a constant in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant adds or replaces a constant and drops the cached document
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
	for i := range d.constants {
		if d.constants[i].Name == name {
			d.constants[i].Value = value
			return
		}
	}
	d.constants = append(d.constants, Constant{Name: name, Value: value})
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

// BuildDictionary renders and caches the document. Call it after every
// command has been registered.
func (d *Dictionary) BuildDictionary() {
	entries := d.commandReg.Entries()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = d.render(entries)
	DebugPrintln("[dict] built, " + itoa(len(d.cached)) + " bytes")
}

// Generate returns the cached document, rendering it if needed
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// render builds the JSON by hand; caller holds d.mu.
func (d *Dictionary) render(entries []*Command) []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = appendJSONString(out, d.version)

	out = append(out, `,"config":{`...)
	for i, c := range d.constants {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, c.Name)
		out = append(out, ':')
		out = appendJSONString(out, valueToString(c.Value))
	}

	out = append(out, `},"commands":{`...)
	out = appendMessages(out, entries, false)
	out = append(out, `},"responses":{`...)
	out = appendMessages(out, entries, true)
	out = append(out, "}}"...)
	return out
}

func appendMessages(out []byte, entries []*Command, responses bool) []byte {
	first := true
	for _, cmd := range entries {
		if cmd.IsResponse() != responses {
			continue
		}
		if !first {
			out = append(out, ',')
		}
		first = false
		out = appendJSONString(out, cmd.Signature())
		out = append(out, ':')
		out = append(out, utoa(uint32(cmd.ID))...)
	}
	return out
}

func appendJSONString(out []byte, s string) []byte {
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return append(out, '"')
}

// GetChunk returns a copy of up to count bytes of the document starting at
// offset; an empty slice marks the end.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}
