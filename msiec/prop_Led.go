package msiec

import (
	"fmt"
	"strconv"
)

const (
	PropMuteLed      = "mute_led"
	PropMicmuteLed   = "micmute_led"
	PropKbdBacklight = "kbd_backlight"
)

func ledProperties() []PropertyDesc {
	return []PropertyDesc{
		{
			Name: PropMicmuteLed, Group: GroupLed, Addr: 0x2b,
			Aliases: map[string][]byte{
				"on":  {0x02},
				"off": {0x00},
			},
		},
		{
			Name: PropMuteLed, Group: GroupLed, Addr: 0x2c,
			Aliases: map[string][]byte{
				"on":  {0x04},
				"off": {0x00},
			},
		},
		{
			Name: PropKbdBacklight, Group: GroupLed, Addr: 0xf3,
			Decoder: KbdBacklightDesc{
				States:   [4]byte{0x80, 0x81, 0x82, 0x83},
				ReadMask: 0x03,
			},
		},
	}
}

// KbdBacklightDesc はキーボードバックライトの 4 段階の輝度 (0〜3) を表します。
// 線形スケールではなく段階ごとの状態バイトの表引きで、読み出しは下位 2 ビットが
// 現在の段階を示します。PropertyDecoderとPropertyEncoderを実装します。
type KbdBacklightDesc struct {
	States   [4]byte // 段階 0〜3 に対応する状態バイト
	ReadMask byte
}

func (d KbdBacklightDesc) Decode(raw []byte) (string, error) {
	if len(raw) != 1 {
		return "", fmt.Errorf("backlight state should be 1 byte, got %d", len(raw))
	}
	return strconv.Itoa(int(raw[0] & d.ReadMask)), nil
}

func (d KbdBacklightDesc) Encode(value string) ([]byte, error) {
	level, err := strconv.Atoi(value)
	if err != nil {
		return nil, &InvalidValueError{Value: value, Reason: "not a number"}
	}
	if level < 0 || level > 3 {
		return nil, &InvalidValueError{Value: value, Reason: "level outside 0..3"}
	}
	return []byte{d.States[level]}, nil
}

func (d KbdBacklightDesc) ToInt(raw []byte) (int, bool) {
	if len(raw) != 1 {
		return 0, false
	}
	return int(raw[0] & d.ReadMask), true
}

func (d KbdBacklightDesc) Candidates() []string {
	return []string{"0", "1", "2", "3"}
}
