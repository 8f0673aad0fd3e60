package handler

import (
	"context"
	"time"

	"msiec-ctl/msiec"
	"msiec-ctl/msiec/ecio"
)

// ECHandler は、EC レジスタアクセスの窓口となる構造体。
// 内部的に各機能を担当するハンドラを持ち、ファサードとして機能する
type ECHandler struct {
	core             *HandlerCore                    // コア機能
	registers        *RegisterAccessHandler          // レジスタアクセス機能
	monitor          *PropertyMonitor                // プロパティ変化監視
	transport        ecio.Transport                  // EC との通信路 (Close で解放する)
	TransportCh      chan TransportNotification      // 通信状態通知用チャネル
	PropertyChangeCh chan PropertyChangeNotification // プロパティ変化通知用チャネル
}

// Options は、ECHandler の動作設定を表す
type Options struct {
	Debug             bool
	MonitorInterval   time.Duration // 変化監視のポーリング間隔 (0 のときはデフォルト値)
	MonitorProperties []string      // 監視対象のプロパティ名 (空のときは全読み出し可能プロパティ)
}

// NewECHandler は、ECHandler の新しいインスタンスを作成する
func NewECHandler(ctx context.Context, transport ecio.Transport, table msiec.PropertyTable, options Options) (*ECHandler, error) {
	handlerCtx, cancel := context.WithCancel(ctx)

	// 各ハンドラを初期化
	core := NewHandlerCore(handlerCtx, cancel, options.Debug)
	registers := NewRegisterAccessHandler(transport, table, core)

	monitor, err := NewPropertyMonitor(handlerCtx, registers, core, options.MonitorInterval, options.MonitorProperties)
	if err != nil {
		cancel() // エラーの場合はコンテキストをキャンセル
		return nil, err
	}

	return &ECHandler{
		core:             core,
		registers:        registers,
		monitor:          monitor,
		transport:        transport,
		TransportCh:      core.TransportCh,
		PropertyChangeCh: core.PropertyChangeCh,
	}, nil
}

// Close は、ECHandler のリソースを解放する
func (h *ECHandler) Close() error {
	h.monitor.Stop()
	if err := h.core.Close(); err != nil {
		return err
	}
	return h.transport.Close()
}

// StartMonitoring は、プロパティ変化監視を開始する
func (h *ECHandler) StartMonitoring() {
	h.monitor.Start()
}

// StopMonitoring は、プロパティ変化監視を停止する
func (h *ECHandler) StopMonitoring() {
	h.monitor.Stop()
}

// SetDebug は、デバッグモードを設定する
func (h *ECHandler) SetDebug(debug bool) {
	h.core.SetDebug(debug)
}

// IsDebug は、現在のデバッグモードを返す
func (h *ECHandler) IsDebug() bool {
	if h == nil || h.core == nil {
		return false
	}
	return h.core.IsDebug()
}

// Table は、使用中のプロパティテーブルを返す
func (h *ECHandler) Table() msiec.PropertyTable {
	return h.registers.Table()
}

// GetProperty は、プロパティ値を読み出す
func (h *ECHandler) GetProperty(name string) (msiec.PropertyValue, error) {
	return h.registers.GetProperty(name)
}

// SetProperty は、プロパティ値を書き込み、読み戻した結果を返す
func (h *ECHandler) SetProperty(name string, value string) (msiec.PropertyValue, error) {
	return h.registers.SetProperty(name, value)
}

// ListProperties は、指定グループの全プロパティを読み出す
func (h *ECHandler) ListProperties(group string) []PropertyReadResult {
	return h.registers.ListProperties(group)
}

// ReadRegister は、任意のレジスタを 1 バイト読み出す（デバッグ用）
func (h *ECHandler) ReadRegister(addr msiec.RegisterAddr) (byte, error) {
	return h.registers.ReadRegister(addr)
}

// WriteRegister は、任意のレジスタに 1 バイト書き込む（デバッグ用）
func (h *ECHandler) WriteRegister(addr msiec.RegisterAddr, value byte) error {
	return h.registers.WriteRegister(addr, value)
}

// DumpRegisters は、レジスタ空間全体を読み出す（デバッグ用）
func (h *ECHandler) DumpRegisters() ([]byte, error) {
	return h.registers.DumpRegisters()
}
