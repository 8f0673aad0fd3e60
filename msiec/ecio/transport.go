// Package ecio は EC レジスタ空間への 1 バイト単位の入出力を提供します。
// 上位層はここで返るエラーをそのまま伝播し、リトライはしません。
package ecio

import (
	"fmt"
)

// Transport は EC レジスタ空間への同期入出力を表します。
// 実装はプロセス内での直列化を自前で行います。
type Transport interface {
	// ReadByte は addr の 1 バイトを読み出します。
	ReadByte(addr byte) (byte, error)

	// WriteByte は addr に 1 バイトを書き込みます。
	WriteByte(addr byte, value byte) error

	// Close は下位リソースを解放します。
	Close() error
}

// ReadSequence は addr から連続する n バイトを 1 バイトずつ読み出します。
// 途中の失敗で読み出し全体が失敗し、部分的な結果は返しません。
func ReadSequence(t Transport, addr byte, n int) ([]byte, error) {
	if n < 1 || int(addr)+n > 0x100 {
		return nil, fmt.Errorf("invalid sequence 0x%02x+%d", addr, n)
	}
	buf := make([]byte, n)
	for i := range n {
		b, err := t.ReadByte(addr + byte(i))
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// Kind is a transport selector used by configuration.
type Kind string

const (
	KindAuto    Kind = "auto"
	KindPort    Kind = "port"
	KindDebugfs Kind = "debugfs"
	KindMock    Kind = "mock"
)

// Open opens the transport selected by kind. KindAuto tries debugfs first and
// falls back to raw port I/O. device overrides the default device path of the
// chosen transport when non-empty.
func Open(kind Kind, device string) (Transport, error) {
	switch kind {
	case KindPort:
		return NewPortTransport(device)
	case KindDebugfs:
		return NewDebugfsTransport(device)
	case KindMock:
		return NewMockTransport(), nil
	case KindAuto, "":
		t, err := NewDebugfsTransport(device)
		if err == nil {
			return t, nil
		}
		t2, err2 := NewPortTransport("")
		if err2 == nil {
			return t2, nil
		}
		return nil, fmt.Errorf("no EC transport available: debugfs: %v; port: %v", err, err2)
	default:
		return nil, fmt.Errorf("unknown EC transport %q", kind)
	}
}
