package msiec

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelSpec is a per-model register assignment loaded from YAML. MSI ships
// different EC firmware generations with different addresses and raw values
// for the same logical properties, so the geometry is configuration, not code.
//
// Each entry fully declares one property and replaces a same-named built-in
// entry, or adds a new one. Entries in Drop remove built-ins the model does
// not support.
type ModelSpec struct {
	Model      string          `yaml:"model"`
	Drop       []string        `yaml:"drop,omitempty"`
	Properties []ModelProperty `yaml:"properties"`
}

// ModelProperty declares one property. Kind selects the codec:
//
//	alias         closed vocabulary (default when values are present)
//	scaled        raw range [min,max] mapped to percent 0..100
//	plain         raw byte read as an integer
//	threshold     percent stored as percent+offset, bounds in range
//	string        fixed-length ASCII run
//	fw_date       date run (8) + time run (8), needs two runs
//	kbd_backlight four-level ordinal via states lookup
type ModelProperty struct {
	Name     string         `yaml:"name"`
	Group    string         `yaml:"group,omitempty"`
	Access   string         `yaml:"access,omitempty"` // "rw" (default), "ro", "wo"
	Kind     string         `yaml:"kind,omitempty"`
	Addr     *int           `yaml:"addr,omitempty"`
	Len      int            `yaml:"len,omitempty"`
	Runs     []ModelRun     `yaml:"runs,omitempty"`
	Values   map[string]int `yaml:"values,omitempty"`
	Min      *int           `yaml:"min,omitempty"`
	Max      *int           `yaml:"max,omitempty"`
	Unit     string         `yaml:"unit,omitempty"`
	Offset   *int           `yaml:"offset,omitempty"`
	Range    []int          `yaml:"range,omitempty"` // stored-byte bounds [min, max]
	States   []int          `yaml:"states,omitempty"`
	ReadMask *int           `yaml:"read_mask,omitempty"`
}

type ModelRun struct {
	Addr int `yaml:"addr"`
	Len  int `yaml:"len"`
}

// LoadModelSpec reads and validates a model spec file.
func LoadModelSpec(path string) (ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelSpec{}, fmt.Errorf("error reading model spec: %w", err)
	}
	spec, err := ParseModelSpec(data)
	if err != nil {
		return ModelSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// ParseModelSpec parses YAML and validates the whole spec, reporting every
// problem rather than the first one.
func ParseModelSpec(data []byte) (ModelSpec, error) {
	var spec ModelSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ModelSpec{}, fmt.Errorf("error parsing model spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return ModelSpec{}, err
	}
	return spec, nil
}

// Validate checks the spec declaratively and aggregates all problems.
func (s ModelSpec) Validate() error {
	var problems []string
	if s.Model == "" {
		problems = append(problems, "model name is required")
	}
	seen := make(map[string]bool)
	for i, prop := range s.Properties {
		where := fmt.Sprintf("properties[%d]", i)
		if prop.Name != "" {
			where = fmt.Sprintf("property %q", prop.Name)
			if seen[prop.Name] {
				problems = append(problems, where+": duplicate name")
			}
			seen[prop.Name] = true
		}
		if _, err := prop.desc(); err != nil {
			problems = append(problems, where+": "+err.Error())
		}
	}
	for _, name := range s.Drop {
		if seen[name] {
			problems = append(problems, fmt.Sprintf("property %q is both dropped and declared", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid model spec: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Apply merges the spec over a base table: dropped names are removed,
// declared names replace same-named base entries or append after them.
func (s ModelSpec) Apply(base PropertyTable) (PropertyTable, error) {
	dropped := make(map[string]bool, len(s.Drop))
	for _, name := range s.Drop {
		dropped[name] = true
	}
	overlay := make(map[string]PropertyDesc, len(s.Properties))
	var added []string
	for _, prop := range s.Properties {
		desc, err := prop.desc()
		if err != nil {
			return PropertyTable{}, fmt.Errorf("property %q: %w", prop.Name, err)
		}
		if _, exists := base.Find(prop.Name); !exists {
			added = append(added, prop.Name)
		}
		overlay[prop.Name] = desc
	}

	var merged []PropertyDesc
	for _, desc := range base.All() {
		if dropped[desc.Name] {
			continue
		}
		if replacement, ok := overlay[desc.Name]; ok {
			merged = append(merged, replacement)
			continue
		}
		merged = append(merged, desc)
	}
	for _, name := range added {
		merged = append(merged, overlay[name])
	}
	return NewPropertyTable(s.Model, merged)
}

func (p ModelProperty) desc() (PropertyDesc, error) {
	if p.Name == "" {
		return PropertyDesc{}, fmt.Errorf("name is required")
	}

	desc := PropertyDesc{Name: p.Name, Group: p.Group}
	if desc.Group == "" {
		desc.Group = GroupSystem
	}

	switch p.Access {
	case "", "rw":
		desc.Access = ReadWrite
	case "ro":
		desc.Access = ReadOnly
	case "wo":
		desc.Access = WriteOnly
	default:
		return PropertyDesc{}, fmt.Errorf("unknown access %q", p.Access)
	}

	if len(p.Runs) > 0 {
		for _, run := range p.Runs {
			addr, err := byteValue(run.Addr, "run addr")
			if err != nil {
				return PropertyDesc{}, err
			}
			if run.Len < 1 || run.Len > 256 {
				return PropertyDesc{}, fmt.Errorf("run len %d outside 1..256", run.Len)
			}
			desc.Runs = append(desc.Runs, RegisterRun{Addr: RegisterAddr(addr), Len: run.Len})
		}
	} else {
		if p.Addr == nil {
			return PropertyDesc{}, fmt.Errorf("addr or runs is required")
		}
		addr, err := byteValue(*p.Addr, "addr")
		if err != nil {
			return PropertyDesc{}, err
		}
		desc.Addr = RegisterAddr(addr)
		if p.Len < 0 || p.Len > 256 {
			return PropertyDesc{}, fmt.Errorf("len %d outside 0..256", p.Len)
		}
		desc.Len = p.Len
	}

	kind := p.Kind
	if kind == "" && len(p.Values) > 0 {
		kind = "alias"
	}
	switch kind {
	case "alias":
		if len(p.Values) == 0 {
			return PropertyDesc{}, fmt.Errorf("alias property needs values")
		}
		desc.Aliases = make(map[string][]byte, len(p.Values))
		for alias, value := range p.Values {
			b, err := byteValue(value, "value of "+alias)
			if err != nil {
				return PropertyDesc{}, err
			}
			desc.Aliases[alias] = []byte{b}
		}
	case "scaled":
		lo, hi, err := p.bounds()
		if err != nil {
			return PropertyDesc{}, err
		}
		desc.Decoder = ScaledDesc{Min: lo, Max: hi, Unit: p.Unit}
	case "plain":
		desc.Decoder = PlainDesc{Unit: p.Unit}
	case "threshold":
		if p.Offset == nil {
			return PropertyDesc{}, fmt.Errorf("threshold property needs offset")
		}
		offset, err := byteValue(*p.Offset, "offset")
		if err != nil {
			return PropertyDesc{}, err
		}
		if len(p.Range) != 2 {
			return PropertyDesc{}, fmt.Errorf("threshold property needs range [min, max]")
		}
		lo, err := byteValue(p.Range[0], "range min")
		if err != nil {
			return PropertyDesc{}, err
		}
		hi, err := byteValue(p.Range[1], "range max")
		if err != nil {
			return PropertyDesc{}, err
		}
		if lo >= hi {
			return PropertyDesc{}, fmt.Errorf("range min 0x%02x should be below max 0x%02x", lo, hi)
		}
		desc.Decoder = ThresholdDesc{Offset: offset, RangeMin: lo, RangeMax: hi}
	case "string":
		n := p.Len
		if n == 0 {
			n = desc.RawLen()
		}
		desc.Decoder = FixedStringDesc{Len: n}
	case "fw_date":
		if len(desc.Runs) != 2 {
			return PropertyDesc{}, fmt.Errorf("fw_date property needs two runs")
		}
		if desc.RawLen() != 16 {
			return PropertyDesc{}, fmt.Errorf("fw_date runs should total 16 bytes, got %d", desc.RawLen())
		}
		desc.Decoder = FirmwareDateDesc{}
	case "kbd_backlight":
		if len(p.States) != 4 {
			return PropertyDesc{}, fmt.Errorf("kbd_backlight property needs 4 states")
		}
		var d KbdBacklightDesc
		for i, state := range p.States {
			b, err := byteValue(state, fmt.Sprintf("state %d", i))
			if err != nil {
				return PropertyDesc{}, err
			}
			d.States[i] = b
		}
		d.ReadMask = 0x03
		if p.ReadMask != nil {
			mask, err := byteValue(*p.ReadMask, "read_mask")
			if err != nil {
				return PropertyDesc{}, err
			}
			d.ReadMask = mask
		}
		desc.Decoder = d
	case "":
		return PropertyDesc{}, fmt.Errorf("kind is required when no values are given")
	default:
		return PropertyDesc{}, fmt.Errorf("unknown kind %q", kind)
	}

	return desc, nil
}

func (p ModelProperty) bounds() (byte, byte, error) {
	if p.Min == nil || p.Max == nil {
		return 0, 0, fmt.Errorf("scaled property needs min and max")
	}
	lo, err := byteValue(*p.Min, "min")
	if err != nil {
		return 0, 0, err
	}
	hi, err := byteValue(*p.Max, "max")
	if err != nil {
		return 0, 0, err
	}
	if lo >= hi {
		return 0, 0, fmt.Errorf("min 0x%02x should be below max 0x%02x", lo, hi)
	}
	return lo, hi, nil
}

func byteValue(v int, what string) (byte, error) {
	if v < 0 || v > 0xff {
		return 0, fmt.Errorf("%s %d outside 0..255", what, v)
	}
	return byte(v), nil
}
