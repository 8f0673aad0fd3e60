package console

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/chzyer/readline"
	"golang.org/x/term"

	"msiec-ctl/client"
)

// Options はコンソールの動作設定
type Options struct {
	HistoryFile string // 履歴ファイルのパス。空の場合は ~/.msiec_history
}

// ConsoleProcess は、対話型コンソールを起動し、quit または入力終了まで処理を続ける
func ConsoleProcess(ctx context.Context, c client.ECClient, options Options) {
	// コマンドプロセッサの作成と開始
	processor := NewCommandProcessor(ctx, c)
	processor.Start()

	// コマンドの使用方法を表示
	fmt.Println("help for usage, quit to exit")

	historyFile := options.HistoryFile
	if historyFile == "" {
		historyFile = getHistoryFilePath()
	}

	parser := NewCommandParser(c)

	// 端末に接続されている場合は go-prompt、パイプ入力などの場合は readline を使う
	if term.IsTerminal(int(os.Stdin.Fd())) {
		runPrompt(c, parser, processor, historyFile)
	} else {
		runReadline(c, parser, processor, historyFile)
	}

	// quit で停止済みの場合は何もしない（Stop は冪等）
	processor.Stop()
}

// executeLine は1行の入力を解析して実行する。quit が入力されたときは true を返す
func executeLine(c client.ECClient, parser CommandParser, processor *CommandProcessor, line string) bool {
	cmd, err := parser.ParseCommand(line, c.IsDebug())
	if err != nil {
		fmt.Printf("エラー: %v\n", err)
		return false
	}
	if cmd == nil {
		return false
	}

	if cmd.Type == CmdQuit {
		// quitコマンドの場合は、コマンドチャネル経由で送信せず、直接終了処理を行う
		close(cmd.Done) // 完了を通知
		processor.Stop()
		return true
	}

	// コマンドを送信し、エラーをチェック
	if err := processor.SendCommand(cmd); err != nil {
		fmt.Printf("エラー: %v\n", err)
	}
	return false
}

// runPrompt は go-prompt による対話ループを実行する（動的補完と履歴つき）
func runPrompt(c client.ECClient, parser CommandParser, processor *CommandProcessor, historyFile string) {
	history := loadHistory(historyFile)
	quit := false

	executor := func(line string) {
		if strings.TrimSpace(line) == "" {
			return
		}
		history = appendHistory(history, line)
		quit = executeLine(c, parser, processor, line)
	}
	completer := func(d prompt.Document) []prompt.Suggest {
		return completeInput(c, d)
	}

	p := prompt.New(executor, completer,
		prompt.OptionTitle("msiec-ctl"),
		prompt.OptionPrefix("> "),
		prompt.OptionHistory(history),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return quit
		}),
	)
	p.Run()

	saveHistory(historyFile, history)
}

// runReadline は readline による入力ループを実行する。
// パイプ入力やリダイレクトでも動作する（履歴の永続化は readline が行う）
func runReadline(c client.ECClient, parser CommandParser, processor *CommandProcessor, historyFile string) {
	rlConfig := &readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	}

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		fmt.Printf("readline の初期化エラー: %v\n", err)
		return
	}
	defer func(rl *readline.Instance) {
		_ = rl.Close()
	}(rl)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF, readline.ErrInterrupt
			break
		}
		if executeLine(c, parser, processor, line) {
			break
		}
	}
}
