package client

type Debugger interface {
	IsDebug() bool
	SetDebug(debug bool)
}

type PropertyManager interface {
	// GetProperties は、指定した名前のプロパティ値を要求順に読み出す
	GetProperties(names []string) ([]PropertyData, error)
	// SetProperties は、名前と値の組を書き込み、読み戻した結果を返す
	SetProperties(values map[string]string) ([]PropertyData, error)
	// ListProperties は、指定グループ（空文字列は全グループ）のプロパティを列挙する
	ListProperties(group string) (*ListResult, error)
	// GetPropertyDescription は、プロパティの定義情報を返す
	GetPropertyDescription(name string) (*PropertyDescription, error)
}

type HistoryProvider interface {
	// GetChangeHistory は、プロパティ変化履歴を新しい順に返す
	GetChangeHistory(opts ChangeHistoryOptions) ([]ChangeHistoryEntry, error)
}

// RegisterDebugger は、プロパティ定義を介さない生レジスタアクセス（デバッグ用）
type RegisterDebugger interface {
	ReadRegister(addr string) (*RegisterValue, error)
	WriteRegister(addr string, value string) (*RegisterValue, error)
	DumpRegisters() ([]byte, error)
}

// PropertyCatalog は、補完候補などに使う静的なプロパティ定義情報を提供する。
// 定義テーブルはバイナリに埋め込まれているため、接続先に関わらずローカルで完結する
type PropertyCatalog interface {
	PropertyNames() []string
	PropertyGroups() []string
	ValueCandidates(name string) []string
}

// ChangeWatcher は、プロパティ変化通知の表示を制御する
type ChangeWatcher interface {
	SetWatch(enabled bool)
	IsWatching() bool
}
