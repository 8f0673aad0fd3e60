package ecio

import (
	"fmt"
	"sync"
)

// MockTransport は 256 バイトのメモリイメージを EC の代わりに使います。
// テストとデモモード用。障害注入で転送エラーの経路も再現できます。
type MockTransport struct {
	mutex  sync.Mutex
	image  [0x100]byte
	writes []MockWrite

	reads      int
	failAddr   map[byte]error
	failAfter  int // 0 のときは無効。n 回目以降の読み出しを失敗させる
	failAfterE error
	closed     bool
}

// MockWrite は書き込みの記録です。
type MockWrite struct {
	Addr  byte
	Value byte
}

func NewMockTransport() *MockTransport {
	return &MockTransport{failAddr: make(map[byte]error)}
}

// Seed は複数レジスタをまとめて初期化します。
func (t *MockTransport) Seed(values map[byte]byte) *MockTransport {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for addr, value := range values {
		t.image[addr] = value
	}
	return t
}

// SeedBytes は addr から連続してバイト列を書き込みます。
func (t *MockTransport) SeedBytes(addr byte, data []byte) *MockTransport {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	copy(t.image[addr:], data)
	return t
}

// FailAt は指定アドレスへのアクセスを失敗させます。
func (t *MockTransport) FailAt(addr byte, err error) *MockTransport {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.failAddr[addr] = err
	return t
}

// FailAfterReads は n 回の読み出しの後、以降の読み出しを err で失敗させます。
func (t *MockTransport) FailAfterReads(n int, err error) *MockTransport {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.failAfter = n
	t.failAfterE = err
	return t
}

// ClearFaults は注入済みの障害をすべて取り除きます。
func (t *MockTransport) ClearFaults() *MockTransport {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.failAddr = make(map[byte]error)
	t.failAfter = 0
	t.failAfterE = nil
	return t
}

func (t *MockTransport) ReadByte(addr byte) (byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return 0, fmt.Errorf("transport is closed")
	}
	if err, ok := t.failAddr[addr]; ok {
		return 0, err
	}
	if t.failAfter > 0 && t.reads >= t.failAfter {
		return 0, t.failAfterE
	}
	t.reads++
	return t.image[addr], nil
}

func (t *MockTransport) WriteByte(addr byte, value byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	if err, ok := t.failAddr[addr]; ok {
		return err
	}
	t.image[addr] = value
	t.writes = append(t.writes, MockWrite{Addr: addr, Value: value})
	return nil
}

func (t *MockTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closed = true
	return nil
}

// At は現在のイメージの 1 バイトを返します。
func (t *MockTransport) At(addr byte) byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.image[addr]
}

// Writes は書き込みの記録を古い順で返します。
func (t *MockTransport) Writes() []MockWrite {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	result := make([]MockWrite, len(t.writes))
	copy(result, t.writes)
	return result
}

// ReadCount は読み出しの総数を返します。
func (t *MockTransport) ReadCount() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.reads
}

// Calls は読み出しと書き込みの総数を返します。
func (t *MockTransport) Calls() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.reads + len(t.writes)
}
