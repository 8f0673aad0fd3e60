package msiec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RegisterAddr は EC レジスタ空間のアドレスを表します。
// EC のレジスタ空間は 0x00〜0xFF の 1 バイトアドレスです。
type RegisterAddr byte

func (a RegisterAddr) String() string {
	return fmt.Sprintf("0x%02x", byte(a))
}

// MarshalJSON は RegisterAddr を "0xXX" 形式のJSON文字列にエンコードします。
func (a RegisterAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%02x", byte(a)))
}

// UnmarshalJSON は "0xXX" 形式または10進数形式のJSON文字列から RegisterAddr をデコードします。
func (a *RegisterAddr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("RegisterAddr should be a string, got %s: %w", data, err)
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		val, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return fmt.Errorf("invalid hex RegisterAddr string %q: %w", s, err)
		}
		*a = RegisterAddr(val)
	} else {
		val, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return fmt.Errorf("invalid decimal or hex RegisterAddr string %q: %w", s, err)
		}
		*a = RegisterAddr(val)
	}
	return nil
}

// RegisterRun は連続するレジスタの読み出し範囲を表します。
// Len バイトを Addr から 1 バイトずつ順に読み出します。
type RegisterRun struct {
	Addr RegisterAddr
	Len  int
}

func (r RegisterRun) String() string {
	if r.Len <= 1 {
		return r.Addr.String()
	}
	return fmt.Sprintf("%s+%d", r.Addr, r.Len)
}

// Addrs は run に含まれる全アドレスを列挙します。
func (r RegisterRun) Addrs() []RegisterAddr {
	addrs := make([]RegisterAddr, r.Len)
	for i := range addrs {
		addrs[i] = r.Addr + RegisterAddr(i)
	}
	return addrs
}
