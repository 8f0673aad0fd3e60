package msiec

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testModelYAML = `
model: gf63-thin
drop:
  - webcam_block
properties:
  - name: webcam
    group: system
    addr: 0x31
    values:
      "on": 0x4a
      "off": 0x48
  - name: cpu_basic_fan_speed
    group: cpu
    addr: 0x91
    kind: scaled
    min: 0x00
    max: 0x0f
    unit: "%"
  - name: super_battery
    group: battery
    addr: 0xd5
    values:
      "on": 0x01
      "off": 0x00
`

func TestParseModelSpec(t *testing.T) {
	spec, err := ParseModelSpec([]byte(testModelYAML))
	if err != nil {
		t.Fatalf("ParseModelSpec error: %v", err)
	}
	if spec.Model != "gf63-thin" {
		t.Errorf("Model = %q, want \"gf63-thin\"", spec.Model)
	}
	if len(spec.Properties) != 3 {
		t.Errorf("len(Properties) = %d, want 3", len(spec.Properties))
	}
	if diff := cmp.Diff([]string{"webcam_block"}, spec.Drop); diff != "" {
		t.Errorf("Drop mismatch (-want +got):\n%s", diff)
	}
}

func TestModelSpec_Apply(t *testing.T) {
	spec, err := ParseModelSpec([]byte(testModelYAML))
	if err != nil {
		t.Fatalf("ParseModelSpec error: %v", err)
	}
	table, err := spec.Apply(DefaultPropertyTable())
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	t.Run("モデル名が付く", func(t *testing.T) {
		if table.Model != "gf63-thin" {
			t.Errorf("Model = %q, want \"gf63-thin\"", table.Model)
		}
	})

	t.Run("同名の定義は置き換わる", func(t *testing.T) {
		webcam, ok := table.Find(PropWebcam)
		if !ok {
			t.Fatal("webcam should exist")
		}
		if webcam.Addr != 0x31 {
			t.Errorf("webcam addr = %s, want 0x31", webcam.Addr)
		}
		fan, _ := table.Find(PropCpuBasicFanSpeed)
		if fan.Addr != 0x91 {
			t.Errorf("cpu_basic_fan_speed addr = %s, want 0x91", fan.Addr)
		}
	})

	t.Run("drop された定義は消える", func(t *testing.T) {
		if _, ok := table.Find(PropWebcamBlock); ok {
			t.Error("webcam_block should be dropped")
		}
	})

	t.Run("新しい定義は末尾に足される", func(t *testing.T) {
		desc, ok := table.Find("super_battery")
		if !ok {
			t.Fatal("super_battery should exist")
		}
		if desc.Addr != 0xd5 {
			t.Errorf("super_battery addr = %s, want 0xd5", desc.Addr)
		}
		names := table.Names()
		if names[len(names)-1] != "super_battery" {
			t.Errorf("last property = %q, want \"super_battery\"", names[len(names)-1])
		}
	})

	t.Run("触れていない定義はそのまま", func(t *testing.T) {
		shift, _ := table.Find(PropShiftMode)
		base, _ := DefaultPropertyTable().Find(PropShiftMode)
		if diff := cmp.Diff(base.Aliases, shift.Aliases); diff != "" {
			t.Errorf("shift_mode aliases mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestModelSpec_ValidateAggregatesProblems(t *testing.T) {
	bad := `
model: ""
properties:
  - name: webcam
    values:
      "on": 0x4a
  - name: webcam
    addr: 0x2e
    values:
      "on": 300
  - name: mystery
    addr: 0x10
`
	_, err := ParseModelSpec([]byte(bad))
	if err == nil {
		t.Fatal("ParseModelSpec should fail")
	}
	for _, problem := range []string{
		"model name is required",
		"addr or runs is required",
		"duplicate name",
		"outside 0..255",
		"kind is required",
	} {
		if !strings.Contains(err.Error(), problem) {
			t.Errorf("error should mention %q, got: %v", problem, err)
		}
	}
}

func TestModelSpec_ThresholdAndDateKinds(t *testing.T) {
	src := `
model: custom
properties:
  - name: charge_control_end_threshold
    group: battery
    addr: 0xd7
    kind: threshold
    offset: 0x80
    range: [0x8a, 0xe4]
  - name: fw_release_date
    group: system
    access: ro
    kind: fw_date
    runs:
      - {addr: 0xac, len: 8}
      - {addr: 0xb4, len: 8}
  - name: kbd_backlight
    group: led
    addr: 0xf3
    kind: kbd_backlight
    states: [0x80, 0x81, 0x82, 0x83]
`
	spec, err := ParseModelSpec([]byte(src))
	if err != nil {
		t.Fatalf("ParseModelSpec error: %v", err)
	}
	table, err := spec.Apply(DefaultPropertyTable())
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	end, _ := table.Find(PropChargeEndThreshold)
	if end.Addr != 0xd7 {
		t.Errorf("threshold addr = %s, want 0xd7", end.Addr)
	}
	raw, err := end.Encode("80")
	if err != nil {
		t.Fatalf("Encode(80) error: %v", err)
	}
	if raw[0] != 0xd0 {
		t.Errorf("Encode(80) = 0x%02x, want 0xd0", raw[0])
	}

	date, _ := table.Find(PropFwReleaseDate)
	if date.RawLen() != 16 || len(date.RegisterRuns()) != 2 {
		t.Errorf("fw_release_date geometry = %v, want two 8-byte runs", date.RegisterRuns())
	}
	if date.Access != ReadOnly {
		t.Errorf("fw_release_date access = %s, want ro", date.Access)
	}
}
