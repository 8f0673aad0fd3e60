package handler

import (
	"fmt"
	"msiec-ctl/msiec"
	"time"
)

const (
	DefaultMonitorInterval = 2 * time.Second // 変化監視のデフォルトポーリング間隔
)

// TransportNotificationType は通知の種類を表す型
type TransportNotificationType int

const (
	TransportFault TransportNotificationType = iota
	TransportRecovered
)

// TransportNotification は EC との通信状態に関する通知を表す構造体
type TransportNotification struct {
	Type  TransportNotificationType
	Error error // 障害の場合はエラー情報
}

// PropertyChangeNotification はプロパティ変化に関する通知を表す構造体
type PropertyChangeNotification struct {
	Property msiec.PropertyValue // 変化後の値
	Previous msiec.PropertyValue // 変化前の値
}

// PropertyReadResult は、1 件のプロパティ読み出しの結果を表す構造体
type PropertyReadResult struct {
	Value msiec.PropertyValue
	Err   error // 読み出しに失敗した場合のエラー
}

// PropertyNotFoundError は、プロパティテーブルに存在しない名前が指定されたことを表す
type PropertyNotFoundError struct {
	Name string
}

func (e *PropertyNotFoundError) Error() string {
	return fmt.Sprintf("プロパティが見つかりません: %s", e.Name)
}
