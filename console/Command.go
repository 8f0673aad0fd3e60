package console

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"msiec-ctl/client"
)

// CommandType はコマンドの種類を表す
type CommandType int

const (
	CmdUnknown CommandType = iota
	CmdQuit
	CmdHelp
	CmdList
	CmdGet
	CmdSet
	CmdInfo
	CmdHistory
	CmdMonitor
	CmdDebug
	CmdReadRegister
	CmdWriteRegister
	CmdDump
)

// Command は解析済みのコマンドを表す構造体
type Command struct {
	Type           CommandType
	Names          []string                    // get/info: 対象プロパティ名
	Values         map[string]string           // set: プロパティ名 -> 設定値
	Group          *string                     // list: グループによる絞り込み
	HelpCommand    *string                     // help: 対象コマンド名
	HistoryOptions client.ChangeHistoryOptions // history: 取得条件
	Mode           *string                     // debug/monitor: on または off
	Addr           string                      // readreg/writereg: レジスタアドレス
	Value          string                      // writereg: 書き込む値
	Done           chan struct{}               // コマンド処理の完了通知用チャネル
	Error          error                       // コマンド処理中に発生したエラー
}

// newCommand は指定された種類のコマンドを作成する
func newCommand(cmdType CommandType) *Command {
	return &Command{
		Type: cmdType,
		Done: make(chan struct{}),
	}
}

// CommandParser はコマンド文字列の解析を担当する構造体。
// プロパティ名や設定値の検証には接続先に依存しない定義カタログを使う
type CommandParser struct {
	catalog client.PropertyCatalog
}

// NewCommandParser は新しいCommandParserを作成する
func NewCommandParser(catalog client.PropertyCatalog) CommandParser {
	return CommandParser{catalog: catalog}
}

// validatePropertyName は名前が定義済みプロパティかを検証する
func (p CommandParser) validatePropertyName(name string) error {
	if !slices.Contains(p.catalog.PropertyNames(), name) {
		return &UnknownPropertyError{Name: name}
	}
	return nil
}

// UnknownPropertyError は定義されていないプロパティ名を表すエラー
type UnknownPropertyError struct {
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("未知のプロパティ: %s (list でプロパティ一覧を表示)", e.Name)
}

// AvailableValuesError は値なしで指定されたプロパティの設定候補を知らせるエラー
type AvailableValuesError struct {
	Property   string
	Candidates []string
}

func (e *AvailableValuesError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%s に定義済みの値候補はありません。値を直接指定してください", e.Property)
	}
	messages := make([]string, 0, len(e.Candidates)+1)
	messages = append(messages, fmt.Sprintf("%s に設定できる値:", e.Property))
	for _, candidate := range e.Candidates {
		messages = append(messages, fmt.Sprintf("  %s", candidate))
	}
	return strings.Join(messages, "\n")
}

// InvalidArgument は解釈できない引数を表すエラー
type InvalidArgument struct {
	Argument string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("無効な引数: %s", e.Argument)
}

// parseOnOff は on|off 引数を解析する。引数なしの場合は nil を返す
func parseOnOff(command string, parts []string) (*string, error) {
	if len(parts) == 1 {
		return nil, nil
	}
	if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
		return nil, fmt.Errorf("%s コマンドの引数は on または off のみ有効です", command)
	}
	value := parts[1]
	return &value, nil
}

// コマンドをパースする
func (p CommandParser) ParseCommand(input string, debug bool) (*Command, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, nil
	}

	commandName := parts[0]

	// テーブルから一致するコマンドを探す
	for _, cmdDef := range CommandTable {
		if cmdDef.Name == commandName || slices.Contains(cmdDef.Aliases, commandName) {
			if cmdDef.ParseFunc != nil {
				return cmdDef.ParseFunc(p, parts, debug)
			}
			// ParseFuncが定義されていない場合はデフォルトのコマンドを返す
			return newCommand(CmdUnknown), nil
		}
	}

	return nil, fmt.Errorf("unknown command: %s", commandName)
}
