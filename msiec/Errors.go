package msiec

import (
	"fmt"
)

// TransportError は Register Primitive (EC 入出力) の失敗を表します。
// 呼び出し側はそのまま伝播させ、この層ではリトライしません。
type TransportError struct {
	Op   string // "read" or "write"
	Addr RegisterAddr
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ec %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// OutOfRangeError は、数値プロパティのデコードで生の値が宣言された範囲の
// 外にあったことを表します。センサー/ハードウェア側の異常です。
type OutOfRangeError struct {
	Property string
	Raw      byte
	Min      byte
	Max      byte
}

func (e *OutOfRangeError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("raw value 0x%02x outside [0x%02x, 0x%02x]", e.Raw, e.Min, e.Max)
	}
	return fmt.Sprintf("%s: raw value 0x%02x outside [0x%02x, 0x%02x]", e.Property, e.Raw, e.Min, e.Max)
}

// InvalidValueError は、エンコードへの入力がプロパティの定義域に含まれない
// ことを表します。呼び出し側の誤りで、レジスタへの書き込みは行われません。
type InvalidValueError struct {
	Property string
	Value    string
	Reason   string
}

func (e *InvalidValueError) Error() string {
	msg := fmt.Sprintf("invalid value %q", e.Value)
	if e.Property != "" {
		msg = e.Property + ": " + msg
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// UnknownValueString は語彙に無い生の値の表示形式を返します。
// 未知の値はエラーではなく、生の値を添えてそのまま表示します。
func UnknownValueString(raw byte) string {
	return fmt.Sprintf("unknown (%d)", raw)
}
