//go:build rp2040

package main

import (
	"machine"

	"robocore/core"
)

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART1 on GPIO20 (TX) and GPIO21 (RX)
// at 115200 baud. Output stays off until the host sends set_debug.
func InitDebugUART() {
	debugUART = machine.UART1

	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO20,
		RX:       machine.GPIO21,
	})
	if err != nil {
		debugUART = nil
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.InitAsyncDebug()
}
