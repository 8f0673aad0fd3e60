package handler

import (
	"fmt"
	"log/slog"
	"sync"

	"msiec-ctl/msiec"
	"msiec-ctl/msiec/ecio"

	"golang.org/x/exp/slices"
)

// RegisterAccessHandler は、EC レジスタへの読み書きを担当する構造体。
// 同一アドレスへのアクセスはアドレスごとのミューテックスで直列化する。
type RegisterAccessHandler struct {
	transport ecio.Transport
	table     msiec.PropertyTable
	core      *HandlerCore
	locks     [0x100]sync.Mutex // レジスタアドレスごとのロック
}

// NewRegisterAccessHandler は、RegisterAccessHandlerの新しいインスタンスを作成する
func NewRegisterAccessHandler(transport ecio.Transport, table msiec.PropertyTable, core *HandlerCore) *RegisterAccessHandler {
	return &RegisterAccessHandler{
		transport: transport,
		table:     table,
		core:      core,
	}
}

// Table は、使用中のプロパティテーブルを返す
func (h *RegisterAccessHandler) Table() msiec.PropertyTable {
	return h.table
}

// lockAddrs は、指定されたアドレス群のロックを昇順に取得する。
// 取得順を固定することでデッドロックを防ぐ。返り値は解放用の関数。
func (h *RegisterAccessHandler) lockAddrs(addrs []msiec.RegisterAddr) func() {
	sorted := slices.Clone(addrs)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, addr := range sorted {
		h.locks[addr].Lock()
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			h.locks[sorted[i]].Unlock()
		}
	}
}

// readRaw は、プロパティの全レジスタ範囲を読み出す。呼び出し側でロックを取得しておくこと。
func (h *RegisterAccessHandler) readRaw(desc msiec.PropertyDesc) ([]byte, error) {
	raw := make([]byte, 0, desc.RawLen())
	for _, run := range desc.RegisterRuns() {
		data, err := ecio.ReadSequence(h.transport, byte(run.Addr), run.Len)
		if err != nil {
			return nil, &msiec.TransportError{Op: "read", Addr: run.Addr, Err: err}
		}
		raw = append(raw, data...)
	}
	return raw, nil
}

// writeRaw は、エンコード済みの値をプロパティの全レジスタ範囲に書き込む。
// 呼び出し側でロックを取得しておくこと。
func (h *RegisterAccessHandler) writeRaw(desc msiec.PropertyDesc, encoded []byte) error {
	if len(encoded) != desc.RawLen() {
		return fmt.Errorf("%s: エンコード結果が %d バイト (期待値 %d バイト)", desc.Name, len(encoded), desc.RawLen())
	}
	pos := 0
	for _, run := range desc.RegisterRuns() {
		for i := range run.Len {
			addr := run.Addr + msiec.RegisterAddr(i)
			if err := h.transport.WriteByte(byte(addr), encoded[pos]); err != nil {
				return &msiec.TransportError{Op: "write", Addr: addr, Err: err}
			}
			pos++
		}
	}
	return nil
}

// decodeValue は、読み出した生の値を PropertyValue に変換する
func (h *RegisterAccessHandler) decodeValue(desc msiec.PropertyDesc, raw []byte) (msiec.PropertyValue, error) {
	value, err := desc.Decode(raw)
	if err != nil {
		return msiec.PropertyValue{}, err
	}
	return msiec.PropertyValue{
		Name:  desc.Name,
		Value: value,
		Raw:   raw,
		Known: desc.KnownRaw(raw),
	}, nil
}

// GetProperty は、プロパティ値を読み出してデコードする
func (h *RegisterAccessHandler) GetProperty(name string) (msiec.PropertyValue, error) {
	desc, ok := h.table.Find(name)
	if !ok {
		return msiec.PropertyValue{}, &PropertyNotFoundError{Name: name}
	}
	if !desc.Access.CanRead() {
		return msiec.PropertyValue{}, fmt.Errorf("プロパティ %s は書き込み専用です", name)
	}

	unlock := h.lockAddrs(desc.Addrs())
	defer unlock()

	raw, err := h.readRaw(desc)
	if err != nil {
		slog.Error("プロパティ読み出しに失敗", "property", name, "err", err)
		return msiec.PropertyValue{}, err
	}
	return h.decodeValue(desc, raw)
}

// SetProperty は、プロパティ値をエンコードして書き込み、読み戻した結果を返す。
// エンコードに失敗した場合は EC へのアクセスを一切行わない。
func (h *RegisterAccessHandler) SetProperty(name string, value string) (msiec.PropertyValue, error) {
	desc, ok := h.table.Find(name)
	if !ok {
		return msiec.PropertyValue{}, &PropertyNotFoundError{Name: name}
	}
	if !desc.Access.CanWrite() {
		return msiec.PropertyValue{}, &msiec.InvalidValueError{
			Property: name,
			Value:    value,
			Reason:   "read-only property",
		}
	}

	// 書き込む前にエンコードを済ませる
	encoded, err := desc.Encode(value)
	if err != nil {
		return msiec.PropertyValue{}, err
	}

	unlock := h.lockAddrs(desc.Addrs())
	defer unlock()

	// 変化通知用に書き込み前の値を読んでおく（読める場合のみ）
	var previous msiec.PropertyValue
	if desc.Access.CanRead() {
		if prevRaw, err := h.readRaw(desc); err == nil {
			previous, _ = h.decodeValue(desc, prevRaw)
		}
	}

	if err := h.writeRaw(desc, encoded); err != nil {
		slog.Error("プロパティ書き込みに失敗", "property", name, "err", err)
		return msiec.PropertyValue{}, err
	}
	h.core.DebugLog("set %s: % X", name, encoded)

	// 書き込み専用プロパティは読み戻せないので、エンコード結果から表示値を作る
	if !desc.Access.CanRead() {
		result := msiec.PropertyValue{Name: name, Value: value, Raw: encoded, Known: desc.KnownRaw(encoded)}
		if decoded, err := desc.Decode(encoded); err == nil {
			result.Value = decoded
		}
		return result, nil
	}

	raw, err := h.readRaw(desc)
	if err != nil {
		slog.Error("書き込み後の読み戻しに失敗", "property", name, "err", err)
		return msiec.PropertyValue{}, err
	}
	result, err := h.decodeValue(desc, raw)
	if err != nil {
		return msiec.PropertyValue{}, err
	}

	if previous.Name != "" && previous.Value != result.Value {
		h.core.RelayPropertyChangeEvent(PropertyChangeNotification{
			Property: result,
			Previous: previous,
		})
	}
	return result, nil
}

// ListProperties は、指定グループの全プロパティを読み出す。
// group が空のときは全プロパティが対象。失敗したプロパティは結果に
// エラー付きで含まれ、他のプロパティの読み出しは継続する。
func (h *RegisterAccessHandler) ListProperties(group string) []PropertyReadResult {
	descs := h.table.ByGroup(group)
	results := make([]PropertyReadResult, 0, len(descs))
	for _, desc := range descs {
		if !desc.Access.CanRead() {
			results = append(results, PropertyReadResult{
				Value: msiec.PropertyValue{Name: desc.Name, Value: "(write-only)"},
			})
			continue
		}
		value, err := h.GetProperty(desc.Name)
		if err != nil {
			results = append(results, PropertyReadResult{
				Value: msiec.PropertyValue{Name: desc.Name},
				Err:   err,
			})
			continue
		}
		results = append(results, PropertyReadResult{Value: value})
	}
	return results
}

// ReadRegister は、任意のレジスタを 1 バイト読み出す（デバッグ用）
func (h *RegisterAccessHandler) ReadRegister(addr msiec.RegisterAddr) (byte, error) {
	h.locks[addr].Lock()
	defer h.locks[addr].Unlock()

	value, err := h.transport.ReadByte(byte(addr))
	if err != nil {
		return 0, &msiec.TransportError{Op: "read", Addr: addr, Err: err}
	}
	return value, nil
}

// WriteRegister は、任意のレジスタに 1 バイト書き込む（デバッグ用）
func (h *RegisterAccessHandler) WriteRegister(addr msiec.RegisterAddr, value byte) error {
	h.locks[addr].Lock()
	defer h.locks[addr].Unlock()

	if err := h.transport.WriteByte(byte(addr), value); err != nil {
		return &msiec.TransportError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

// DumpRegisters は、レジスタ空間全体 (0x00〜0xff) を読み出す（デバッグ用）
func (h *RegisterAccessHandler) DumpRegisters() ([]byte, error) {
	dump := make([]byte, 0x100)
	for i := range 0x100 {
		value, err := h.ReadRegister(msiec.RegisterAddr(i))
		if err != nil {
			return nil, err
		}
		dump[i] = value
	}
	return dump, nil
}
