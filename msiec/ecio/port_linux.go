//go:build linux

package ecio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	ecDataPort    = 0x62
	ecCommandPort = 0x66
	cmdReadEC     = 0x80
	cmdWriteEC    = 0x81
	statusOBF     = 1 << 0 // Output Buffer Full
	statusIBF     = 1 << 1 // Input Buffer Full

	handshakeRetries = 100
	handshakeWait    = time.Millisecond
)

// PortTransport は /dev/port 経由の ACPI EC ハンドシェイクで読み書きします。
// コマンドポート 0x66 とデータポート 0x62 を使う標準の EC プロトコルで、
// 1 回の読み書きのあいだ mutex でハンドシェイク全体を直列化します。
type PortTransport struct {
	f     *os.File
	mutex sync.Mutex
}

// NewPortTransport opens the raw I/O port device. Needs root.
func NewPortTransport(device string) (*PortTransport, error) {
	if device == "" {
		device = "/dev/port"
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", device, err)
	}
	return &PortTransport{f: f}, nil
}

func (t *PortTransport) ReadByte(addr byte) (byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.waitInputClear(); err != nil {
		return 0, fmt.Errorf("ec read 0x%02x: %w", addr, err)
	}
	if err := t.outb(ecCommandPort, cmdReadEC); err != nil {
		return 0, err
	}
	if err := t.waitInputClear(); err != nil {
		return 0, fmt.Errorf("ec read 0x%02x: %w", addr, err)
	}
	if err := t.outb(ecDataPort, addr); err != nil {
		return 0, err
	}
	if err := t.waitOutputFull(); err != nil {
		return 0, fmt.Errorf("ec read 0x%02x: %w", addr, err)
	}
	return t.inb(ecDataPort)
}

func (t *PortTransport) WriteByte(addr byte, value byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.waitInputClear(); err != nil {
		return fmt.Errorf("ec write 0x%02x: %w", addr, err)
	}
	if err := t.outb(ecCommandPort, cmdWriteEC); err != nil {
		return err
	}
	if err := t.waitInputClear(); err != nil {
		return fmt.Errorf("ec write 0x%02x: %w", addr, err)
	}
	if err := t.outb(ecDataPort, addr); err != nil {
		return err
	}
	if err := t.waitInputClear(); err != nil {
		return fmt.Errorf("ec write 0x%02x: %w", addr, err)
	}
	return t.outb(ecDataPort, value)
}

func (t *PortTransport) Close() error {
	return t.f.Close()
}

// waitInputClear は EC がコマンド/データを受け取れる状態になるまで待ちます。
func (t *PortTransport) waitInputClear() error {
	for range handshakeRetries {
		status, err := t.inb(ecCommandPort)
		if err != nil {
			return err
		}
		if status&statusIBF == 0 {
			return nil
		}
		time.Sleep(handshakeWait)
	}
	return fmt.Errorf("timeout waiting for EC input buffer to clear")
}

// waitOutputFull は EC がデータを用意するまで待ちます。
func (t *PortTransport) waitOutputFull() error {
	for range handshakeRetries {
		status, err := t.inb(ecCommandPort)
		if err != nil {
			return err
		}
		if status&statusOBF != 0 {
			return nil
		}
		time.Sleep(handshakeWait)
	}
	return fmt.Errorf("timeout waiting for EC output buffer to fill")
}

func (t *PortTransport) inb(port int64) (byte, error) {
	var buf [1]byte
	if _, err := t.f.ReadAt(buf[:], port); err != nil {
		return 0, fmt.Errorf("error reading port 0x%02x: %w", port, err)
	}
	return buf[0], nil
}

func (t *PortTransport) outb(port int64, value byte) error {
	if _, err := t.f.WriteAt([]byte{value}, port); err != nil {
		return fmt.Errorf("error writing port 0x%02x: %w", port, err)
	}
	return nil
}
