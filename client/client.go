package client

import (
	"time"

	"msiec-ctl/msiec"
	"msiec-ctl/protocol"
)

type PropertyTable = msiec.PropertyTable
type PropertyData = protocol.PropertyData
type PropertyDescription = protocol.PropertyDescriptionData
type ListResult = protocol.ListPropertiesResultData
type ListEntry = protocol.ListEntry
type ChangeHistoryEntry = protocol.ChangeHistoryEntryData
type RegisterValue = protocol.RegisterData

// ChangeHistoryOptions は、変化履歴の取得条件を表す
type ChangeHistoryOptions struct {
	Name  string    // プロパティ名でフィルター（空文字列は全プロパティ）
	Since time.Time // この時刻以降のエントリのみ
	Limit int       // 取得件数の上限（0 は無制限）
}

// ECClient は、EC プロパティ操作のクライアント側インターフェース。
// ローカルの ECHandler を直接使う実装と、WebSocket サーバー経由の実装がある
type ECClient interface {
	Debugger
	PropertyManager
	HistoryProvider
	RegisterDebugger
	PropertyCatalog
	ChangeWatcher
	Close() error
}
