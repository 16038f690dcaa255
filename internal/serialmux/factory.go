package serialmux

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.bug.st/serial"
)

// NewRealSerialMux opens the serial port at path with opts.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return NewSerialMux[serial.Port](port), nil
}

// DialTCP connects to a controller bridge listening on addr.
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (*SerialMux[net.Conn], error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewSerialMux[net.Conn](conn), nil
}
