package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/exp/slices"

	"msiec-ctl/client"
	"msiec-ctl/msiec"
)

// CommandDefinition はコマンドの定義を保持する構造体
type CommandDefinition struct {
	Name              string                                                              // コマンド名
	Aliases           []string                                                            // 別名（例: list と ls など）
	Summary           string                                                              // 概要（短い説明）
	Syntax            string                                                              // 構文
	Description       []string                                                            // 詳細説明（各行が1つの要素）
	ParseFunc         func(p CommandParser, parts []string, debug bool) (*Command, error) // パース関数
	GetCandidatesFunc func(c client.ECClient, words []string) []prompt.Suggest            // 補完候補生成関数
}

// CommandTable はコマンドの定義を格納するテーブル
// コマンドの使用法に変化があったときは、README.md も更新すること
var CommandTable []CommandDefinition

func init() {
	CommandTable = []CommandDefinition{
		{
			Name:    "list",
			Aliases: []string{"ls"},
			Summary: "プロパティの一覧表示",
			Syntax:  "list, ls [group]",
			Description: []string{
				"定義済みプロパティの現在値を一覧表示します。",
				"group: グループ名でフィルター（例: battery）。省略時は全プロパティを表示",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				if len(words) == 2 {
					return getGroupCandidates(c)
				}
				return []prompt.Suggest{}
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdList)

				if len(parts) > 2 {
					return nil, &InvalidArgument{Argument: parts[2]}
				}
				if len(parts) == 2 {
					group := parts[1]
					if !slices.Contains(p.catalog.PropertyGroups(), group) {
						return nil, fmt.Errorf("未知のグループ: %s (グループ一覧: %s)",
							group, strings.Join(p.catalog.PropertyGroups(), ", "))
					}
					cmd.Group = &group
				}

				return cmd, nil
			},
		},
		{
			Name:    "get",
			Summary: "プロパティ値の取得",
			Syntax:  "get property1 [property2...]",
			Description: []string{
				"property: プロパティ名（例: webcam）。複数指定可能",
				"例: get webcam battery_mode",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				return getPropertyNameCandidates(c)
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdGet)

				if len(parts) < 2 {
					return nil, fmt.Errorf("get コマンドには少なくとも1つのプロパティ名が必要です")
				}
				for _, name := range parts[1:] {
					if err := p.validatePropertyName(name); err != nil {
						return nil, err
					}
					cmd.Names = append(cmd.Names, name)
				}

				return cmd, nil
			},
		},
		{
			Name:    "set",
			Summary: "プロパティ値の設定",
			Syntax:  "set property value [property value...]",
			Description: []string{
				"property: プロパティ名（例: webcam）",
				"value: 設定値。名前付きの値（例: on）または数値（例: 60）",
				"値を省略すると、そのプロパティに設定できる値の候補を表示します。",
				"例: set webcam off",
				"例: set charge_control_end_threshold 80 cooler_boost on",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				// コマンド名を除き、プロパティ名と値が交互に並ぶ
				if len(words)%2 == 0 {
					return getPropertyNameCandidates(c)
				}
				return getValueCandidates(c, words[len(words)-2])
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdSet)
				cmd.Values = make(map[string]string)

				if len(parts) < 2 {
					return nil, fmt.Errorf("set コマンドには少なくとも1つのプロパティが必要です")
				}
				for i := 1; i < len(parts); i += 2 {
					name := parts[i]
					if err := p.validatePropertyName(name); err != nil {
						return nil, err
					}
					// 値なしの場合は候補一覧を表示
					if i+1 >= len(parts) {
						return nil, &AvailableValuesError{
							Property:   name,
							Candidates: p.catalog.ValueCandidates(name),
						}
					}
					cmd.Values[name] = parts[i+1]
				}

				return cmd, nil
			},
		},
		{
			Name:    "info",
			Summary: "プロパティ定義の表示",
			Syntax:  "info property",
			Description: []string{
				"property: プロパティ名（例: webcam）",
				"対応するレジスタ、アクセス方向、設定できる値の候補を表示します。",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				if len(words) == 2 {
					return getPropertyNameCandidates(c)
				}
				return []prompt.Suggest{}
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdInfo)

				if len(parts) != 2 {
					return nil, fmt.Errorf("info コマンドにはプロパティ名が1つ必要です")
				}
				if err := p.validatePropertyName(parts[1]); err != nil {
					return nil, err
				}
				cmd.Names = []string{parts[1]}

				return cmd, nil
			},
		},
		{
			Name:    "history",
			Summary: "プロパティ変化履歴の表示",
			Syntax:  "history [property] [-limit N] [-since RFC3339]",
			Description: []string{
				"プロパティの変化履歴を新しい順に表示します。",
				"property: プロパティ名でフィルター（省略時は全プロパティ）",
				"-limit N: 取得する履歴件数の上限",
				"-since RFC3339: 指定した時刻以降の履歴のみ表示（例: 2026-05-01T12:00:00Z）",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				suggestions := []prompt.Suggest{
					{Text: "-limit", Description: "取得件数の上限を指定"},
					{Text: "-since", Description: "この時刻以降の履歴を取得"},
				}
				if len(words) == 2 {
					suggestions = append(suggestions, getPropertyNameCandidates(c)...)
				}
				return suggestions
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdHistory)

				argIndex := 1
				if argIndex < len(parts) && !strings.HasPrefix(parts[argIndex], "-") {
					name := parts[argIndex]
					if err := p.validatePropertyName(name); err != nil {
						return nil, err
					}
					cmd.HistoryOptions.Name = name
					argIndex++
				}

				for argIndex < len(parts) {
					switch parts[argIndex] {
					case "-limit":
						if argIndex+1 >= len(parts) {
							return nil, fmt.Errorf("-limit オプションには数値が必要です")
						}
						value, err := strconv.Atoi(parts[argIndex+1])
						if err != nil || value <= 0 {
							return nil, fmt.Errorf("-limit には1以上の整数を指定してください")
						}
						cmd.HistoryOptions.Limit = value
						argIndex += 2
					case "-since":
						if argIndex+1 >= len(parts) {
							return nil, fmt.Errorf("-since オプションには時刻が必要です")
						}
						sinceStr := parts[argIndex+1]
						timestamp, err := time.Parse(time.RFC3339Nano, sinceStr)
						if err != nil {
							timestamp, err = time.Parse(time.RFC3339, sinceStr)
						}
						if err != nil {
							return nil, fmt.Errorf("-since の形式が不正です (RFC3339): %v", err)
						}
						cmd.HistoryOptions.Since = timestamp
						argIndex += 2
					default:
						return nil, &InvalidArgument{Argument: parts[argIndex]}
					}
				}

				return cmd, nil
			},
		},
		{
			Name:    "monitor",
			Summary: "変化監視の表示または切り替え",
			Syntax:  "monitor [on|off]",
			Description: []string{
				"引数なし: 現在の監視状態を表示",
				"on: レジスタ監視を有効にし、変化をコンソールに表示する",
				"off: 変化の表示を無効にする",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				if len(words) == 2 {
					return []prompt.Suggest{
						{Text: "on", Description: "変化監視有効"},
						{Text: "off", Description: "変化監視無効"},
					}
				}
				return []prompt.Suggest{}
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdMonitor)

				mode, err := parseOnOff("monitor", parts)
				if err != nil {
					return nil, err
				}
				cmd.Mode = mode

				return cmd, nil
			},
		},
		{
			Name:    "debug",
			Summary: "デバッグモードの表示または切り替え",
			Syntax:  "debug [on|off]",
			Description: []string{
				"引数なし: 現在のデバッグモードを表示",
				"on: デバッグモードを有効にする",
				"off: デバッグモードを無効にする",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				if len(words) == 2 {
					return []prompt.Suggest{
						{Text: "on", Description: "デバッグモード有効"},
						{Text: "off", Description: "デバッグモード無効"},
					}
				}
				return []prompt.Suggest{}
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdDebug)

				mode, err := parseOnOff("debug", parts)
				if err != nil {
					return nil, err
				}
				cmd.Mode = mode

				return cmd, nil
			},
		},
		{
			Name:    "readreg",
			Summary: "レジスタ値の読み出し（デバッグ用）",
			Syntax:  "readreg address",
			Description: []string{
				"address: レジスタアドレス（例: 0x2e または 46）",
				"プロパティ定義を介さずに EC レジスタを直接読み出します。",
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdReadRegister)

				if len(parts) != 2 {
					return nil, fmt.Errorf("readreg コマンドにはレジスタアドレスが必要です")
				}
				if _, err := msiec.ParseRegisterAddr(parts[1]); err != nil {
					return nil, err
				}
				cmd.Addr = parts[1]

				return cmd, nil
			},
		},
		{
			Name:    "writereg",
			Summary: "レジスタ値の書き込み（デバッグ用）",
			Syntax:  "writereg address value",
			Description: []string{
				"address: レジスタアドレス（例: 0x2e または 46）",
				"value: 書き込む値（例: 0x4a または 74）",
				"プロパティ定義を介さずに EC レジスタへ直接書き込みます。",
				"注意: 定義外のレジスタへの書き込みはハードウェアを不安定にする可能性があります。",
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdWriteRegister)

				if len(parts) != 3 {
					return nil, fmt.Errorf("writereg コマンドにはアドレスと値が必要です")
				}
				if _, err := msiec.ParseRegisterAddr(parts[1]); err != nil {
					return nil, err
				}
				if _, err := msiec.ParseByteValue(parts[2]); err != nil {
					return nil, err
				}
				cmd.Addr = parts[1]
				cmd.Value = parts[2]

				return cmd, nil
			},
		},
		{
			Name:    "dump",
			Summary: "レジスタ空間全体のダンプ表示",
			Syntax:  "dump",
			Description: []string{
				"EC レジスタ空間 256 バイトを16進ダンプ形式で表示します。",
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				return newCommand(CmdDump), nil
			},
		},
		{
			Name:    "help",
			Aliases: []string{"?"},
			Summary: "コマンドの使用方法を表示",
			Syntax:  "help [command]",
			Description: []string{
				"引数なし: 全コマンドの概要を表示",
				"command: 指定したコマンドの詳細を表示（例: help set）",
			},
			GetCandidatesFunc: func(c client.ECClient, words []string) []prompt.Suggest {
				if len(words) == 2 {
					return getCommandNameCandidates()
				}
				return []prompt.Suggest{}
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				cmd := newCommand(CmdHelp)

				if len(parts) >= 2 {
					cmd.HelpCommand = &parts[1]
				}

				return cmd, nil
			},
		},
		{
			Name:    "quit",
			Aliases: []string{"exit"},
			Summary: "終了",
			Syntax:  "quit",
			Description: []string{
				"プログラムを終了します。",
			},
			ParseFunc: func(p CommandParser, parts []string, debug bool) (*Command, error) {
				return newCommand(CmdQuit), nil
			},
		},
	}
}

// PrintCommandSummary は、全コマンドの簡単なサマリーを表示する
func PrintCommandSummary() {
	fmt.Println("コマンド:")

	// テーブルからサマリーを表示
	for _, cmd := range CommandTable {
		aliases := ""
		if len(cmd.Aliases) > 0 {
			aliases = fmt.Sprintf(", %s", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Printf("  %-10s: %s\n", cmd.Name+aliases, cmd.Summary)
	}

	fmt.Println("")
	fmt.Println("詳細は 'help <コマンド名>' で確認できます。例: 'help set'")
}

// PrintCommandDetail は、特定のコマンドの詳細情報を表示する
func PrintCommandDetail(commandName string) {
	// テーブルから指定されたコマンドを検索
	for _, cmd := range CommandTable {
		if cmd.Name == commandName || slices.Contains(cmd.Aliases, commandName) {
			fmt.Printf("  %s: %s\n", cmd.Name, cmd.Summary)
			fmt.Printf("  構文: %s\n", cmd.Syntax)

			if len(cmd.Description) > 0 {
				fmt.Println("  詳細:")
				for _, line := range cmd.Description {
					fmt.Printf("    %s\n", line)
				}
			}
			return
		}
	}

	// コマンドが見つからなかった場合
	fmt.Printf("不明なコマンド: %s\n", commandName)
	fmt.Println("利用可能なコマンドを確認するには 'help' を入力してください")
}

// コマンドの使用方法を表示する
func PrintUsage(commandName *string) {
	if commandName == nil {
		// 引数無しの場合はタイトルとサマリーを表示
		fmt.Println("MSI EC プロパティ操作コンソール")
		PrintCommandSummary()
	} else {
		// 特定のコマンドの詳細を表示（タイトルなし）
		PrintCommandDetail(*commandName)
	}
}
