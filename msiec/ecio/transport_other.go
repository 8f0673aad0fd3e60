//go:build !linux

package ecio

import "fmt"

// PortTransport is only available on Linux.
type PortTransport struct{}

func NewPortTransport(device string) (*PortTransport, error) {
	return nil, fmt.Errorf("raw port EC transport is only available on Linux")
}

func (t *PortTransport) ReadByte(addr byte) (byte, error) {
	return 0, fmt.Errorf("raw port EC transport is not available on this platform")
}

func (t *PortTransport) WriteByte(addr byte, value byte) error {
	return fmt.Errorf("raw port EC transport is not available on this platform")
}

func (t *PortTransport) Close() error { return nil }

// DebugfsTransport is only available on Linux.
type DebugfsTransport struct{}

func NewDebugfsTransport(device string) (*DebugfsTransport, error) {
	return nil, fmt.Errorf("debugfs EC transport is only available on Linux")
}

func (t *DebugfsTransport) ReadByte(addr byte) (byte, error) {
	return 0, fmt.Errorf("debugfs EC transport is not available on this platform")
}

func (t *DebugfsTransport) WriteByte(addr byte, value byte) error {
	return fmt.Errorf("debugfs EC transport is not available on this platform")
}

func (t *DebugfsTransport) Close() error { return nil }
