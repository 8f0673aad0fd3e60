package msiec

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Access はプロパティの入出力方向を表します。
type Access uint8

const (
	ReadWrite Access = iota
	ReadOnly
	WriteOnly
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "ro"
	case WriteOnly:
		return "wo"
	default:
		return "rw"
	}
}

func (a Access) CanRead() bool  { return a != WriteOnly }
func (a Access) CanWrite() bool { return a != ReadOnly }

// PropertyDesc は EC レジスタに対応付けられたプロパティの定義を表します。
// Aliases か Decoder の少なくとも一方を持ちます。
type PropertyDesc struct {
	Name    string
	Group   string
	Access  Access
	Addr    RegisterAddr
	Len     int               // レジスタ長 (0のときは1扱い)
	Runs    []RegisterRun     // 複数レンジのときに Addr/Len の代わりに使う
	Aliases map[string][]byte // 値の別名 (e.g., "on" -> []byte{0x4a})
	Decoder PropertyDecoder   // デコーダ。PropertyEncoderも実装すると、文字列から変換できる。
}

type PropertyDecoder interface {
	Decode(raw []byte) (string, error)
}

type PropertyEncoder interface {
	Encode(value string) ([]byte, error)
}

// PropertyIntConverter は数値としても読めるプロパティが実装します。
type PropertyIntConverter interface {
	ToInt(raw []byte) (int, bool)
}

// PropertyCandidateProvider は値の補完候補を提供するデコーダが実装します。
type PropertyCandidateProvider interface {
	Candidates() []string
}

// RegisterRuns はこのプロパティが読み書きするレジスタ範囲を読み出し順に返します。
func (p PropertyDesc) RegisterRuns() []RegisterRun {
	if len(p.Runs) > 0 {
		return p.Runs
	}
	n := p.Len
	if n == 0 {
		n = 1
	}
	return []RegisterRun{{Addr: p.Addr, Len: n}}
}

// RawLen は全レジスタ範囲の合計バイト数を返します。
func (p PropertyDesc) RawLen() int {
	n := 0
	for _, run := range p.RegisterRuns() {
		n += run.Len
	}
	return n
}

// Addrs はこのプロパティが触れる全アドレスを返します。
func (p PropertyDesc) Addrs() []RegisterAddr {
	var addrs []RegisterAddr
	for _, run := range p.RegisterRuns() {
		addrs = append(addrs, run.Addrs()...)
	}
	return addrs
}

// Decode は生のレジスタ値を表示文字列に変換します。
// 語彙に無い 1 バイト値は "unknown (N)" として成功扱いで返します。
func (p PropertyDesc) Decode(raw []byte) (string, error) {
	if p.Aliases != nil {
		for alias, value := range p.Aliases {
			if bytes.Equal(raw, value) {
				return alias, nil
			}
		}
	}
	if p.Decoder != nil {
		decoded, err := p.Decoder.Decode(raw)
		if err != nil {
			return "", p.describeError(err)
		}
		return decoded, nil
	}
	if p.Aliases != nil && len(raw) == 1 {
		return UnknownValueString(raw[0]), nil
	}
	return "", fmt.Errorf("%s: cannot decode % X", p.Name, raw)
}

// Encode は文字列を書き込み用のレジスタ値に変換します。
// 末尾の改行 1 つは無視されます。変換できない入力は InvalidValueError です。
func (p PropertyDesc) Encode(value string) ([]byte, error) {
	value = strings.TrimSuffix(value, "\n")
	if p.Aliases != nil {
		if raw, ok := p.Aliases[value]; ok {
			return raw, nil
		}
	}
	if p.Decoder != nil {
		if encoder, ok := p.Decoder.(PropertyEncoder); ok {
			raw, err := encoder.Encode(value)
			if err != nil {
				return nil, p.describeError(err)
			}
			return raw, nil
		}
	}
	return nil, &InvalidValueError{Property: p.Name, Value: value}
}

// KnownRaw は raw がこのプロパティの既知の語彙・範囲に含まれるかを返します。
func (p PropertyDesc) KnownRaw(raw []byte) bool {
	if p.Aliases != nil {
		for _, value := range p.Aliases {
			if bytes.Equal(raw, value) {
				return true
			}
		}
	}
	if p.Decoder != nil {
		if _, err := p.Decoder.Decode(raw); err == nil {
			return true
		}
	}
	return false
}

// ToInt は数値として読めるプロパティの数値表現を返します。
func (p PropertyDesc) ToInt(raw []byte) (int, bool) {
	if p.Decoder != nil {
		if conv, ok := p.Decoder.(PropertyIntConverter); ok {
			return conv.ToInt(raw)
		}
	}
	return 0, false
}

// ValueCandidates は set の補完候補を返します。別名はアルファベット順です。
func (p PropertyDesc) ValueCandidates() []string {
	if len(p.Aliases) > 0 {
		candidates := make([]string, 0, len(p.Aliases))
		for alias := range p.Aliases {
			candidates = append(candidates, alias)
		}
		slices.Sort(candidates)
		return candidates
	}
	if p.Decoder != nil {
		if provider, ok := p.Decoder.(PropertyCandidateProvider); ok {
			return provider.Candidates()
		}
	}
	return nil
}

// describeError は型付きエラーにプロパティ名を補います。
func (p PropertyDesc) describeError(err error) error {
	var oor *OutOfRangeError
	if errors.As(err, &oor) && oor.Property == "" {
		oor.Property = p.Name
	}
	var iv *InvalidValueError
	if errors.As(err, &iv) && iv.Property == "" {
		iv.Property = p.Name
	}
	return err
}

// ScaledDesc は生のレジスタ範囲 [Min,Max] をパーセント 0〜100 に線形変換する
// プロパティを表します。PropertyDecoderとPropertyEncoderを実装します。
// 変換は整数の切り捨てで、範囲外の生の値はデコードエラー (OutOfRange) です。
type ScaledDesc struct {
	Min  byte
	Max  byte
	Unit string // 表示用の単位 (e.g., "%")
}

func (s ScaledDesc) Decode(raw []byte) (string, error) {
	percent, err := s.percent(raw)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d%s", percent, s.Unit), nil
}

func (s ScaledDesc) Encode(value string) ([]byte, error) {
	v := strings.TrimSuffix(value, s.Unit)
	percent, err := strconv.Atoi(v)
	if err != nil {
		return nil, &InvalidValueError{Value: value, Reason: "not a number"}
	}
	if percent < 0 || percent > 100 {
		return nil, &InvalidValueError{Value: value, Reason: "percent outside 0..100"}
	}
	raw := (percent*int(s.Max-s.Min) + 100*int(s.Min)) / 100
	return []byte{byte(raw)}, nil
}

func (s ScaledDesc) ToInt(raw []byte) (int, bool) {
	percent, err := s.percent(raw)
	if err != nil {
		return 0, false
	}
	return percent, true
}

func (s ScaledDesc) percent(raw []byte) (int, error) {
	if len(raw) != 1 {
		return 0, fmt.Errorf("scaled value should be 1 byte, got %d", len(raw))
	}
	r := raw[0]
	if r < s.Min || r > s.Max {
		return 0, &OutOfRangeError{Raw: r, Min: s.Min, Max: s.Max}
	}
	return 100 * int(r-s.Min) / int(s.Max-s.Min), nil
}

// PlainDesc は生のバイト値をそのまま整数として読むプロパティを表します。
// PropertyDecoderを実装します。書き込みはできません。
type PlainDesc struct {
	Unit string // 表示用の単位 (e.g., "°C")
}

func (d PlainDesc) Decode(raw []byte) (string, error) {
	if len(raw) != 1 {
		return "", fmt.Errorf("plain value should be 1 byte, got %d", len(raw))
	}
	return fmt.Sprintf("%d%s", raw[0], d.Unit), nil
}

func (d PlainDesc) ToInt(raw []byte) (int, bool) {
	if len(raw) != 1 {
		return 0, false
	}
	return int(raw[0]), true
}

// ThresholdDesc は共有レジスタにオフセット付きで格納される充電閾値を表します。
// 格納値 = パーセント + Offset。書き込みは完全な最終バイトであり、
// 同じレジスタを共有する相手側の現在値を読む必要はありません。
// PropertyDecoderとPropertyEncoderを実装します。
type ThresholdDesc struct {
	Offset   byte
	RangeMin byte // 格納値の絶対下限
	RangeMax byte // 格納値の絶対上限
}

func (t ThresholdDesc) Decode(raw []byte) (string, error) {
	if len(raw) != 1 {
		return "", fmt.Errorf("threshold value should be 1 byte, got %d", len(raw))
	}
	// 符号付きで差を取る。ハードウェアが保持している値をそのまま見せる。
	return strconv.Itoa(int(raw[0]) - int(t.Offset)), nil
}

func (t ThresholdDesc) Encode(value string) ([]byte, error) {
	percent, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil {
		return nil, &InvalidValueError{Value: value, Reason: "not a number"}
	}
	if percent < 0 {
		return nil, &InvalidValueError{Value: value, Reason: "negative percent"}
	}
	stored := percent + int(t.Offset)
	if stored < int(t.RangeMin) || stored > int(t.RangeMax) {
		return nil, &InvalidValueError{
			Value:  value,
			Reason: fmt.Sprintf("stored byte 0x%02x outside [0x%02x, 0x%02x]", stored, t.RangeMin, t.RangeMax),
		}
	}
	return []byte{byte(stored)}, nil
}

func (t ThresholdDesc) ToInt(raw []byte) (int, bool) {
	if len(raw) != 1 {
		return 0, false
	}
	return int(raw[0]) - int(t.Offset), true
}

// FixedStringDesc は固定長レジスタ列に格納された ASCII 文字列を表します。
// 最初の NUL 以降は切り捨てます。PropertyDecoderを実装します。
type FixedStringDesc struct {
	Len int
}

func (d FixedStringDesc) Decode(raw []byte) (string, error) {
	if len(raw) != d.Len {
		return "", fmt.Errorf("string field should be %d bytes, got %d", d.Len, len(raw))
	}
	if i := bytes.IndexByte(raw, 0); i != -1 {
		raw = raw[:i]
	}
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return "", fmt.Errorf("non-printable byte 0x%02x in string field", b)
		}
	}
	return string(raw), nil
}
