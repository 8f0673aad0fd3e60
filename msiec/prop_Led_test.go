package msiec

import (
	"testing"
)

func TestKbdBacklightDesc(t *testing.T) {
	desc := KbdBacklightDesc{States: [4]byte{0x80, 0x81, 0x82, 0x83}, ReadMask: 0x03}

	t.Run("書き込みは状態バイトの表引き", func(t *testing.T) {
		for level, state := range map[string]byte{"0": 0x80, "1": 0x81, "2": 0x82, "3": 0x83} {
			raw, err := desc.Encode(level)
			if err != nil {
				t.Fatalf("Encode(%s) error: %v", level, err)
			}
			if raw[0] != state {
				t.Errorf("Encode(%s) = 0x%02x, want 0x%02x", level, raw[0], state)
			}
		}
	})

	t.Run("読み出しは下位ビットのマスク", func(t *testing.T) {
		got, err := desc.Decode([]byte{0x82})
		if err != nil {
			t.Fatalf("Decode(0x82) error: %v", err)
		}
		if got != "2" {
			t.Errorf("Decode(0x82) = %q, want \"2\"", got)
		}
	})

	t.Run("decode(encode(v)) == v", func(t *testing.T) {
		for _, level := range desc.Candidates() {
			raw, err := desc.Encode(level)
			if err != nil {
				t.Fatalf("Encode(%s) error: %v", level, err)
			}
			got, err := desc.Decode(raw)
			if err != nil {
				t.Fatalf("Decode(0x%02x) error: %v", raw[0], err)
			}
			if got != level {
				t.Errorf("round trip %s -> 0x%02x -> %s", level, raw[0], got)
			}
		}
	})

	t.Run("範囲外の段階は拒否", func(t *testing.T) {
		for _, value := range []string{"4", "-1", "bright"} {
			if _, err := desc.Encode(value); err == nil {
				t.Errorf("Encode(%q) should fail", value)
			}
		}
	})
}
