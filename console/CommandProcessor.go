package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"msiec-ctl/client"
	"msiec-ctl/msiec"
)

// CommandProcessor は、コマンド処理を担当する構造体
type CommandProcessor struct {
	handler client.ECClient
	cmdChan chan *Command
	done    chan struct{}
	ctx     context.Context    // コンテキスト
	cancel  context.CancelFunc // コンテキストのキャンセル関数
}

// NewCommandProcessor は、CommandProcessor の新しいインスタンスを作成する
func NewCommandProcessor(ctx context.Context, handler client.ECClient) *CommandProcessor {
	// コマンドプロセッサ用のコンテキストを作成
	processorCtx, cancel := context.WithCancel(ctx)

	return &CommandProcessor{
		handler: handler,
		cmdChan: make(chan *Command),
		done:    make(chan struct{}),
		ctx:     processorCtx,
		cancel:  cancel,
	}
}

// Start は、コマンド処理を開始する
func (p *CommandProcessor) Start() {
	go p.processCommands()
}

// Stop は、コマンド処理を停止する
func (p *CommandProcessor) Stop() {
	// コンテキストをキャンセル
	if p.cancel != nil {
		p.cancel()
	}

	// チャネルが既に閉じられていないことを確認
	select {
	case <-p.done:
		// 既に終了している場合は何もしない
		return
	default:
		// まだ終了していない場合は閉じる
		close(p.cmdChan)
		<-p.done // コマンド処理goroutineの終了を待つ
	}
}

// SendCommand は、コマンドを送信し、結果のエラーを返す
func (p *CommandProcessor) SendCommand(cmd *Command) error {
	p.cmdChan <- cmd
	<-cmd.Done       // コマンドの実行が完了するまで待つ
	return cmd.Error // コマンド実行中のエラーを返す
}

// processCommands は、コマンドを処理するgoroutine
func (p *CommandProcessor) processCommands() {
	defer close(p.done)

	for cmd := range p.cmdChan {
		// コンテキストがキャンセルされていないか確認
		select {
		case <-p.ctx.Done():
			// コンテキストがキャンセルされた場合は終了
			return
		default:
			// 継続
		}

		switch cmd.Type {
		case CmdQuit:
			close(cmd.Done) // 終了コマンドの場合は即座に完了を通知して終了
			return
		case CmdHelp:
			PrintUsage(cmd.HelpCommand)
		case CmdList:
			cmd.Error = p.processListCommand(cmd)
		case CmdGet:
			cmd.Error = p.processGetCommand(cmd)
		case CmdSet:
			cmd.Error = p.processSetCommand(cmd)
		case CmdInfo:
			cmd.Error = p.processInfoCommand(cmd)
		case CmdHistory:
			cmd.Error = p.processHistoryCommand(cmd)
		case CmdMonitor:
			cmd.Error = p.processMonitorCommand(cmd)
		case CmdDebug:
			cmd.Error = p.processDebugCommand(cmd)
		case CmdReadRegister:
			cmd.Error = p.processReadRegisterCommand(cmd)
		case CmdWriteRegister:
			cmd.Error = p.processWriteRegisterCommand(cmd)
		case CmdDump:
			cmd.Error = p.processDumpCommand(cmd)
		default:
			panic("unhandled default case")
		}

		// コマンド実行完了を通知（quit以外の全てのコマンド）
		close(cmd.Done)
	}
}

// formatPropertyValue は、プロパティ値を表示用に整形する。
// デバッグモードでは生のレジスタ値も併記する
func (p *CommandProcessor) formatPropertyValue(data client.PropertyData) string {
	if p.handler.IsDebug() && data.Raw != "" {
		return fmt.Sprintf("%s (raw: %s)", data.Value, data.Raw)
	}
	return data.Value
}

func (p *CommandProcessor) processListCommand(cmd *Command) error {
	group := ""
	if cmd.Group != nil {
		group = *cmd.Group
	}

	result, err := p.handler.ListProperties(group)
	if err != nil {
		return err
	}

	fmt.Printf("モデル: %s\n", result.Model)
	for _, entry := range result.Entries {
		if entry.Error != nil {
			fmt.Printf("  %-24s: エラー: %s\n", entry.Property.Name, entry.Error.Message)
			continue
		}
		fmt.Printf("  %-24s: %s\n", entry.Property.Name, p.formatPropertyValue(entry.Property))
	}
	return nil
}

func (p *CommandProcessor) processGetCommand(cmd *Command) error {
	properties, err := p.handler.GetProperties(cmd.Names)
	if err != nil {
		return err
	}

	for _, data := range properties {
		fmt.Printf("%s: %s\n", data.Name, p.formatPropertyValue(data))
	}
	return nil
}

func (p *CommandProcessor) processSetCommand(cmd *Command) error {
	properties, err := p.handler.SetProperties(cmd.Values)
	if err != nil {
		return err
	}

	// 書き込み後に読み戻した値を表示する
	for _, data := range properties {
		fmt.Printf("%s: %s\n", data.Name, p.formatPropertyValue(data))
	}
	return nil
}

func (p *CommandProcessor) processInfoCommand(cmd *Command) error {
	desc, err := p.handler.GetPropertyDescription(cmd.Names[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s:\n", desc.Name)
	fmt.Printf("  グループ  : %s\n", desc.Group)
	fmt.Printf("  アクセス  : %s\n", desc.Access)
	fmt.Printf("  レジスタ  : %s\n", strings.Join(desc.Registers, ", "))
	if len(desc.Candidates) > 0 {
		fmt.Printf("  設定値    : %s\n", strings.Join(desc.Candidates, ", "))
	}
	return nil
}

func (p *CommandProcessor) processHistoryCommand(cmd *Command) error {
	entries, err := p.handler.GetChangeHistory(cmd.HistoryOptions)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("履歴はありません")
		return nil
	}
	for _, entry := range entries {
		fmt.Println(formatHistoryEntry(entry))
	}
	return nil
}

// formatHistoryEntry は、履歴1件を1行に整形する
func formatHistoryEntry(entry client.ChangeHistoryEntry) string {
	line := fmt.Sprintf("%s  %s: %s",
		entry.Time.Local().Format(time.RFC3339), entry.Property.Name, entry.Property.Value)
	if entry.Previous != nil {
		line += fmt.Sprintf(" (was %s)", entry.Previous.Value)
	}
	if entry.Origin == "set" {
		line += " [set]"
	}
	return line
}

func (p *CommandProcessor) processMonitorCommand(cmd *Command) error {
	// 変化監視の表示または切り替え
	if cmd.Mode != nil {
		enabled := *cmd.Mode == "on"
		p.handler.SetWatch(enabled)
		if enabled {
			fmt.Println("変化監視を有効にしました")
		} else {
			fmt.Println("変化監視を無効にしました")
		}
	} else {
		// 引数がない場合は現在の監視状態を表示
		if p.handler.IsWatching() {
			fmt.Println("現在の変化監視: 有効")
		} else {
			fmt.Println("現在の変化監視: 無効")
		}
	}
	return nil
}

func (p *CommandProcessor) processDebugCommand(cmd *Command) error {
	// デバッグモードの表示または切り替え
	if cmd.Mode != nil {
		// 引数がある場合はデバッグモードを切り替え
		debugMode := *cmd.Mode == "on"
		p.handler.SetDebug(debugMode)
		if debugMode {
			fmt.Println("デバッグモードを有効にしました")
		} else {
			fmt.Println("デバッグモードを無効にしました")
		}
	} else {
		// 引数がない場合は現在のデバッグモードを表示
		if p.handler.IsDebug() {
			fmt.Println("現在のデバッグモード: 有効")
		} else {
			fmt.Println("現在のデバッグモード: 無効")
		}
	}
	return nil
}

func (p *CommandProcessor) processReadRegisterCommand(cmd *Command) error {
	result, err := p.handler.ReadRegister(cmd.Addr)
	if err != nil {
		return err
	}

	fmt.Printf("%s = %s\n", result.Addr, result.Value)
	return nil
}

func (p *CommandProcessor) processWriteRegisterCommand(cmd *Command) error {
	result, err := p.handler.WriteRegister(cmd.Addr, cmd.Value)
	if err != nil {
		return err
	}

	// 書き込み後に読み戻した値を表示する
	fmt.Printf("%s = %s\n", result.Addr, result.Value)
	return nil
}

func (p *CommandProcessor) processDumpCommand(cmd *Command) error {
	image, err := p.handler.DumpRegisters()
	if err != nil {
		return err
	}

	fmt.Print(msiec.FormatRegisterDump(image))
	return nil
}
