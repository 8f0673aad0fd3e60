//go:build linux

package ecio

import (
	"fmt"
	"os"
	"sync"
)

// DefaultDebugfsDevice はカーネルの ec ドライバが公開するレジスタ空間のイメージです。
const DefaultDebugfsDevice = "/sys/kernel/debug/ec/ec0/io"

// DebugfsTransport はカーネルの acpi ec debugfs インターフェイスで読み書きします。
// ファイルのオフセットがそのままレジスタアドレスになります。
// ハンドシェイクはカーネル側が行うため、こちらはファイル入出力だけです。
type DebugfsTransport struct {
	f     *os.File
	mutex sync.Mutex
}

func NewDebugfsTransport(device string) (*DebugfsTransport, error) {
	if device == "" {
		device = DefaultDebugfsDevice
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		// 書き込み不可のカーネル設定でも読み出しは提供する
		f, err = os.OpenFile(device, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("error opening %s: %w", device, err)
		}
	}
	return &DebugfsTransport{f: f}, nil
}

func (t *DebugfsTransport) ReadByte(addr byte) (byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var buf [1]byte
	if _, err := t.f.ReadAt(buf[:], int64(addr)); err != nil {
		return 0, fmt.Errorf("error reading ec register 0x%02x: %w", addr, err)
	}
	return buf[0], nil
}

func (t *DebugfsTransport) WriteByte(addr byte, value byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, err := t.f.WriteAt([]byte{value}, int64(addr)); err != nil {
		return fmt.Errorf("error writing ec register 0x%02x: %w", addr, err)
	}
	return nil
}

func (t *DebugfsTransport) Close() error {
	return t.f.Close()
}
