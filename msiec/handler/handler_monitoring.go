package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"msiec-ctl/msiec"
)

// PropertyMonitor は、プロパティ値の変化をポーリングで監視する。
// 変化を検出すると HandlerCore の通知チャネルに中継する。
type PropertyMonitor struct {
	parentCtx  context.Context
	mu         sync.Mutex
	cancel     context.CancelFunc // 実行中のポーリングの停止用。nil のときは停止中
	interval   time.Duration
	properties []string // 監視対象のプロパティ名。空のときは全読み出し可能プロパティ
	registers  *RegisterAccessHandler
	core       *HandlerCore
	lastRaw    map[string][]byte
	faulted    bool // 前回のポーリングで EC と通信できなかったか
	channels   *ChannelMonitorManager
	wg         sync.WaitGroup
}

// NewPropertyMonitor は、新しいプロパティ監視を作成する。
// properties に存在しない名前や読み出せないプロパティが含まれる場合はエラー。
func NewPropertyMonitor(ctx context.Context, registers *RegisterAccessHandler, core *HandlerCore, interval time.Duration, properties []string) (*PropertyMonitor, error) {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	for _, name := range properties {
		desc, ok := registers.Table().Find(name)
		if !ok {
			return nil, &PropertyNotFoundError{Name: name}
		}
		if !desc.Access.CanRead() {
			return nil, fmt.Errorf("監視対象にできません (書き込み専用): %s", name)
		}
	}

	// 通知チャネルの使用率を監視する
	channels := NewChannelMonitorManager()
	channels.AddMonitor(NewChannelMonitor("property_change", cap(core.PropertyChangeCh), func() int {
		return len(core.PropertyChangeCh)
	}))
	channels.AddMonitor(NewChannelMonitor("transport", cap(core.TransportCh), func() int {
		return len(core.TransportCh)
	}))

	return &PropertyMonitor{
		parentCtx:  ctx,
		interval:   interval,
		properties: properties,
		registers:  registers,
		core:       core,
		lastRaw:    make(map[string][]byte),
		channels:   channels,
	}, nil
}

// Start は、監視を開始する。すでに実行中の場合は何もしない
func (m *PropertyMonitor) Start() {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(m.parentCtx)
	m.cancel = cancel
	m.mu.Unlock()

	slog.Info("プロパティ監視を開始します", "interval", m.interval, "properties", len(m.targetNames()))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.poll()
				m.channels.CheckAll()
			case <-runCtx.Done():
				slog.Info("プロパティ監視を停止しました")
				return
			}
		}
	}()
}

// Stop は、監視を停止する。実行中のポーリングの完了を待ってから戻る。
// Start で再開できる
func (m *PropertyMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

// targetNames は、監視対象のプロパティ名を返す
func (m *PropertyMonitor) targetNames() []string {
	if len(m.properties) > 0 {
		return m.properties
	}
	var names []string
	for _, desc := range m.registers.Table().All() {
		if desc.Access.CanRead() {
			names = append(names, desc.Name)
		}
	}
	return names
}

// poll は、監視対象の全プロパティを読み出して前回の値と比較する
func (m *PropertyMonitor) poll() {
	for _, name := range m.targetNames() {
		value, err := m.registers.GetProperty(name)
		if err != nil {
			var transportErr *msiec.TransportError
			if errors.As(err, &transportErr) {
				// EC と通信できない。このティックの残りはスキップする
				if !m.faulted {
					m.faulted = true
					slog.Warn("EC との通信に失敗しました", "err", err)
					m.core.RelayTransportEvent(TransportNotification{Type: TransportFault, Error: err})
				}
				return
			}
			// 範囲外などのデコード失敗は記録して継続する
			slog.Warn("監視中のデコードに失敗", "property", name, "err", err)
			continue
		}

		if m.faulted {
			m.faulted = false
			slog.Info("EC との通信が回復しました")
			m.core.RelayTransportEvent(TransportNotification{Type: TransportRecovered})
		}

		prev, seen := m.lastRaw[name]
		if seen && !bytes.Equal(prev, value.Raw) {
			notification := PropertyChangeNotification{Property: value}
			if desc, ok := m.registers.Table().Find(name); ok {
				if prevValue, err := m.registers.decodeValue(desc, prev); err == nil {
					notification.Previous = prevValue
				}
			}
			m.core.RelayPropertyChangeEvent(notification)
		}
		m.lastRaw[name] = value.Raw
	}
}

// ChannelMonitor は、チャンネルのバッファ使用率を監視する
type ChannelMonitor struct {
	name     string
	capacity int
	lenFunc  func() int
}

// NewChannelMonitor は、新しいチャンネル監視を作成する
func NewChannelMonitor(name string, capacity int, lenFunc func() int) *ChannelMonitor {
	return &ChannelMonitor{
		name:     name,
		capacity: capacity,
		lenFunc:  lenFunc,
	}
}

// CheckUsage は、チャンネルの使用率をチェックする
func (cm *ChannelMonitor) CheckUsage() {
	if cm.lenFunc == nil || cm.capacity == 0 {
		return
	}

	currentLen := cm.lenFunc()
	usagePercent := float64(currentLen) / float64(cm.capacity) * 100

	// 高い使用率を警告
	if usagePercent > 80 {
		slog.Warn("High channel buffer usage",
			"name", cm.name,
			"current", currentLen,
			"capacity", cm.capacity,
			"usage_percent", usagePercent,
		)
	}
}

// ChannelMonitorManager は、複数のチャンネル監視を管理する
type ChannelMonitorManager struct {
	monitors []*ChannelMonitor
}

// NewChannelMonitorManager は、新しいチャンネル監視マネージャーを作成する
func NewChannelMonitorManager() *ChannelMonitorManager {
	return &ChannelMonitorManager{
		monitors: make([]*ChannelMonitor, 0),
	}
}

// AddMonitor は、チャンネル監視を追加する
func (cmm *ChannelMonitorManager) AddMonitor(monitor *ChannelMonitor) {
	cmm.monitors = append(cmm.monitors, monitor)
}

// CheckAll は、すべてのチャンネル監視をチェックする
func (cmm *ChannelMonitorManager) CheckAll() {
	for _, monitor := range cmm.monitors {
		monitor.CheckUsage()
	}
}
