package handler

import (
	"context"
	"fmt"
	"log/slog"
)

// HandlerCore は、ECHandlerのコア機能を担当する構造体
type HandlerCore struct {
	ctx              context.Context                 // コンテキスト
	cancel           context.CancelFunc              // コンテキストのキャンセル関数
	TransportCh      chan TransportNotification      // 通信状態通知用チャネル
	PropertyChangeCh chan PropertyChangeNotification // プロパティ変化通知用チャネル
	Debug            bool                            // デバッグモード
}

// NewHandlerCore は、HandlerCoreの新しいインスタンスを作成する
func NewHandlerCore(ctx context.Context, cancel context.CancelFunc, debug bool) *HandlerCore {
	// 通知チャンネルを作成
	transportCh := make(chan TransportNotification, 100)           // バッファサイズは100に設定
	propertyChangeCh := make(chan PropertyChangeNotification, 400) // バッファサイズは400に設定

	return &HandlerCore{
		ctx:              ctx,
		cancel:           cancel,
		TransportCh:      transportCh,
		PropertyChangeCh: propertyChangeCh,
		Debug:            debug,
	}
}

// Close は、HandlerCoreのリソースを解放する
func (c *HandlerCore) Close() error {
	// コンテキストをキャンセル
	if c.cancel != nil {
		c.cancel()
	}

	// 通信状態通知チャネルを閉じる
	if c.TransportCh != nil {
		close(c.TransportCh)
	}

	// プロパティ変化通知チャネルを閉じる
	if c.PropertyChangeCh != nil {
		close(c.PropertyChangeCh)
	}

	return nil
}

// SetDebug は、デバッグモードを設定する
func (c *HandlerCore) SetDebug(debug bool) {
	c.Debug = debug
}

// IsDebug は、現在のデバッグモードを返す
func (c *HandlerCore) IsDebug() bool {
	return c.Debug
}

// RelayTransportEvent は、通信状態の変化を通知チャネルに中継する
func (c *HandlerCore) RelayTransportEvent(notification TransportNotification) {
	select {
	case c.TransportCh <- notification:
		// 送信成功
	default:
		// チャンネルがブロックされている場合は無視
		slog.Warn("通信状態通知チャネルがブロックされています")
	}
}

// RelayPropertyChangeEvent は、プロパティ変更通知を中継する
func (c *HandlerCore) RelayPropertyChangeEvent(notification PropertyChangeNotification) {
	select {
	case c.PropertyChangeCh <- notification:
		// 送信成功
	default:
		// チャンネルがブロックされている場合は無視
		slog.Warn("プロパティ変化通知チャネルがブロックされています")
	}
}

// DebugLog は、デバッグモードが有効な場合にメッセージを出力する
func (c *HandlerCore) DebugLog(format string, args ...interface{}) {
	if c.Debug {
		fmt.Printf(format+"\n", args...)
	}
}
