package msiec

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Property は名前付きの生のレジスタ値を表します。
type Property struct {
	Name string
	Raw  []byte
}

func (p Property) String() string {
	return fmt.Sprintf("%s:%X", p.Name, p.Raw)
}

// PropertyValue はプロパティの読み出し結果のデコード済み表現を表します。
type PropertyValue struct {
	Name  string
	Value string
	Raw   []byte
	Known bool // 生の値が既知の語彙・範囲に含まれるか
}

func (v PropertyValue) String() string {
	return fmt.Sprintf("%s: %s", v.Name, v.Value)
}

// PropertyTable はひとつの EC ファームウェア世代のプロパティ定義の集まりです。
// プロセス開始時に一度構築し、以後は読み出し専用で共有します。
type PropertyTable struct {
	Model string
	descs []PropertyDesc
	index map[string]int
}

// NewPropertyTable はプロパティ定義を検証してテーブルを構築します。
// 名前の重複、空の定義、別名の衝突はエラーです。
func NewPropertyTable(model string, descs []PropertyDesc) (PropertyTable, error) {
	var problems []string
	index := make(map[string]int, len(descs))
	for i, desc := range descs {
		if desc.Name == "" {
			problems = append(problems, fmt.Sprintf("property #%d: empty name", i))
			continue
		}
		if _, ok := index[desc.Name]; ok {
			problems = append(problems, fmt.Sprintf("property %q: duplicate name", desc.Name))
			continue
		}
		if desc.Aliases == nil && desc.Decoder == nil {
			problems = append(problems, fmt.Sprintf("property %q: neither aliases nor decoder", desc.Name))
		}
		if desc.RawLen() <= 0 {
			problems = append(problems, fmt.Sprintf("property %q: empty register range", desc.Name))
		}
		seen := make(map[string]string, len(desc.Aliases))
		for alias, raw := range desc.Aliases {
			key := fmt.Sprintf("%X", raw)
			if len(raw) == 0 {
				problems = append(problems, fmt.Sprintf("property %q: alias %q has no raw value", desc.Name, alias))
				continue
			}
			if other, ok := seen[key]; ok {
				problems = append(problems, fmt.Sprintf("property %q: aliases %q and %q share raw value %s", desc.Name, min(alias, other), max(alias, other), key))
			}
			seen[key] = alias
		}
		index[desc.Name] = i
	}
	if len(problems) > 0 {
		return PropertyTable{}, fmt.Errorf("property table %q: %s", model, strings.Join(problems, "; "))
	}
	return PropertyTable{Model: model, descs: descs, index: index}, nil
}

// Find は名前でプロパティ定義を検索します。
func (pt PropertyTable) Find(name string) (PropertyDesc, bool) {
	if i, ok := pt.index[name]; ok {
		return pt.descs[i], true
	}
	return PropertyDesc{}, false
}

// All は定義順のプロパティ一覧を返します。
func (pt PropertyTable) All() []PropertyDesc {
	return slices.Clone(pt.descs)
}

// ByGroup は指定グループのプロパティを定義順で返します。
// group が空のときは全プロパティを返します。
func (pt PropertyTable) ByGroup(group string) []PropertyDesc {
	if group == "" {
		return pt.All()
	}
	var result []PropertyDesc
	for _, desc := range pt.descs {
		if desc.Group == group {
			result = append(result, desc)
		}
	}
	return result
}

// Groups は定義順に現れるグループ名を重複なしで返します。
func (pt PropertyTable) Groups() []string {
	var groups []string
	seen := make(map[string]bool)
	for _, desc := range pt.descs {
		if !seen[desc.Group] {
			seen[desc.Group] = true
			groups = append(groups, desc.Group)
		}
	}
	return groups
}

// Names は定義順のプロパティ名を返します。
func (pt PropertyTable) Names() []string {
	names := make([]string, len(pt.descs))
	for i, desc := range pt.descs {
		names[i] = desc.Name
	}
	return names
}

// Len はプロパティ数を返します。
func (pt PropertyTable) Len() int {
	return len(pt.descs)
}

