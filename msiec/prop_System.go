package msiec

import (
	"fmt"
)

// プロパティ名。レジスタ割り当ては EC ファームウェア世代ごとの構成データで、
// ModelSpec で上書きできる (デフォルトは既定世代の値)。
const (
	PropWebcam        = "webcam"
	PropWebcamBlock   = "webcam_block"
	PropFnKey         = "fn_key"
	PropWinKey        = "win_key"
	PropCoolerBoost   = "cooler_boost"
	PropShiftMode     = "shift_mode"
	PropFanMode       = "fan_mode"
	PropFwVersion     = "fw_version"
	PropFwReleaseDate = "fw_release_date"
)

// fn_key と win_key は同じレジスタを共有するが、値は 1 バイト全体で互いに
// 排他なので read-modify-write は不要。fn_key=left は win_key=right と同じ状態。
func systemProperties() []PropertyDesc {
	return []PropertyDesc{
		{
			Name: PropWebcam, Group: GroupSystem, Addr: 0x2e,
			Aliases: map[string][]byte{
				"on":  {0x4a},
				"off": {0x48},
			},
		},
		{
			Name: PropWebcamBlock, Group: GroupSystem, Addr: 0x2f,
			Aliases: map[string][]byte{
				"on":  {0x4a},
				"off": {0x48},
			},
		},
		{
			Name: PropFnKey, Group: GroupSystem, Addr: 0xbf,
			Aliases: map[string][]byte{
				"left":  {0x40},
				"right": {0x50},
			},
		},
		{
			Name: PropWinKey, Group: GroupSystem, Addr: 0xbf,
			Aliases: map[string][]byte{
				"left":  {0x50},
				"right": {0x40},
			},
		},
		{
			Name: PropCoolerBoost, Group: GroupSystem, Addr: 0x98,
			Aliases: map[string][]byte{
				"on":  {0x82},
				"off": {0x02},
			},
		},
		{
			Name: PropShiftMode, Group: GroupSystem, Addr: 0xf2,
			Aliases: map[string][]byte{
				"performance": {0xc0},
				"balanced":    {0xc1},
				"eco":         {0xc2},
				"off":         {0x80},
			},
		},
		{
			Name: PropFanMode, Group: GroupSystem, Addr: 0xf4,
			Aliases: map[string][]byte{
				"silent":   {0x1d},
				"basic":    {0x4d},
				"advanced": {0x8d},
			},
		},
		{
			Name: PropFwVersion, Group: GroupSystem, Access: ReadOnly,
			Addr: 0xa0, Len: 12,
			Decoder: FixedStringDesc{Len: 12},
		},
		{
			Name: PropFwReleaseDate, Group: GroupSystem, Access: ReadOnly,
			Runs:    []RegisterRun{{Addr: 0xac, Len: 8}, {Addr: 0xb4, Len: 8}},
			Decoder: FirmwareDateDesc{},
		},
	}
}

// FirmwareDateDesc はファームウェアのリリース日時を表します。
// 前半 8 バイトが MMDDYYYY 形式の日付、後半 8 バイトが HH:MM:SS 形式の時刻で、
// "YYYY/MM/DD HH:MM:SS" に整形します。桁が数字でない場合はフィールド全体が
// デコードエラーになります。
type FirmwareDateDesc struct{}

func (FirmwareDateDesc) Decode(raw []byte) (string, error) {
	if len(raw) != 16 {
		return "", fmt.Errorf("date field should be 16 bytes, got %d", len(raw))
	}
	date, clock := raw[:8], raw[8:]

	month, err := decimalField(date[0:2])
	if err != nil {
		return "", fmt.Errorf("malformed firmware date %q: %w", date, err)
	}
	day, err := decimalField(date[2:4])
	if err != nil {
		return "", fmt.Errorf("malformed firmware date %q: %w", date, err)
	}
	year, err := decimalField(date[4:8])
	if err != nil {
		return "", fmt.Errorf("malformed firmware date %q: %w", date, err)
	}

	if clock[2] != ':' || clock[5] != ':' {
		return "", fmt.Errorf("malformed firmware time %q", clock)
	}
	hour, err := decimalField(clock[0:2])
	if err != nil {
		return "", fmt.Errorf("malformed firmware time %q: %w", clock, err)
	}
	minute, err := decimalField(clock[3:5])
	if err != nil {
		return "", fmt.Errorf("malformed firmware time %q: %w", clock, err)
	}
	second, err := decimalField(clock[6:8])
	if err != nil {
		return "", fmt.Errorf("malformed firmware time %q: %w", clock, err)
	}

	return fmt.Sprintf("%04d/%02d/%02d %02d:%02d:%02d", year, month, day, hour, minute, second), nil
}

// decimalField は全桁が数字であることを要求して 10 進数に変換します。
func decimalField(b []byte) (int, error) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit byte 0x%02x", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
