package serialmux

import "io"

// SerialPorter is the minimal link the mux needs. A go.bug.st/serial port
// and a net.Conn both satisfy it.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
