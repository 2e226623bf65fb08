package core

import (
	"errors"
	"sync/atomic"

	"robocore/protocol"
)

var (
	// ErrShutdown rejects actuator commands after an emergency stop.
	ErrShutdown = errors.New("firmware is shut down")
)

// FirmwareState holds the global firmware state
type FirmwareState struct {
	isShutdown   uint32 // atomic bool
	commandError uint32 // atomic count of failed handlers
}

var globalState FirmwareState

// InitCoreCommands registers the link-level commands.
//
// identify_response and identify must be ids 0 and 1: the host uses them to
// download the dictionary before it knows any other id.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)
	RegisterCommand("set_debug", "enable=%c", handleSetDebug)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("config", "is_shutdown=%c encoders=%c motors=%c servos=%c")

	RegisterConstant("MCU", "rp2040")
	RegisterCalibrationConstants()
}

// handleIdentify returns one chunk of the dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetConfig(data *[]byte) error {
	shutdown := uint32(0)
	if IsShutdown() {
		shutdown = 1
	}
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, shutdown)
		protocol.EncodeVLQUint(output, uint32(EncoderCount))
		protocol.EncodeVLQUint(output, uint32(MotorCount))
		protocol.EncodeVLQUint(output, uint32(ServoCount))
	})
	return nil
}

func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	return nil
}

// handleEmergencyStop stops encoder reports, returns every output to its
// default and latches shutdown until the host reconnects.
func handleEmergencyStop(data *[]byte) error {
	TryShutdown("emergency_stop")
	return nil
}

// TryShutdown puts the firmware in the safe state
func TryShutdown(reason string) {
	atomic.StoreUint32(&globalState.isShutdown, 1)
	StopEncoderStreams()
	ResetActuators()
	RecordEvent(EvtEmergencyStop, 0, 0, 0)
	DebugPrintln("[shutdown] " + reason)
	if debugEnabled {
		DumpEventRing()
	}
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// ResetFirmwareState clears shutdown and streaming state. It runs when the
// host restarts its sequence or the USB link reconnects.
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.isShutdown, 0)
	StopEncoderStreams()
	RecordEvent(EvtHostReset, 0, 0, 0)
}

// CommandErrors returns the number of handlers that failed since boot
func CommandErrors() uint32 {
	return atomic.LoadUint32(&globalState.commandError)
}

// HandleCommandError is the transport error hook
func HandleCommandError(cmdID uint16, err error) {
	atomic.AddUint32(&globalState.commandError, 1)
	DebugPrintln("[cmd] id=" + utoa(uint32(cmdID)) + " failed: " + err.Error())
}

// SendResponse encodes a registered response through the global transport
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

var globalTransport *protocol.Transport

// SetGlobalTransport sets the transport used by SendResponse
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

var (
	globalResetHandler func()
	resetPending       uint32 // atomic bool
)

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset defers the reset to the main loop so the ACK goes out first
func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset runs the reset handler once a reset was requested
func CheckPendingReset() {
	if atomic.CompareAndSwapUint32(&resetPending, 1, 0) && globalResetHandler != nil {
		globalResetHandler()
	}
}
