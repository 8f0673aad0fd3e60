package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"msiec-ctl/client"
	"msiec-ctl/config"
	"msiec-ctl/console"
	"msiec-ctl/msiec"
	"msiec-ctl/msiec/ecio"
	"msiec-ctl/msiec/handler"
	"msiec-ctl/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// コマンドライン引数のヘルプメッセージをカスタマイズ
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "使用方法: %s [オプション]\n\nオプション:\n", os.Args[0])
		flag.PrintDefaults()
	}

	args := config.ParseCommandLineArgs()

	cfg, err := config.LoadConfig(args.ConfigFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "設定ファイルの読み込みエラー: %v\n", err)
		return 1
	}
	cfg.ApplyCommandLineArgs(args)

	// デーモンモードはヘッドレスのWebSocketサーバーとして動く
	if cfg.Daemon.Enabled {
		cfg.WebSocket.Enabled = true
	}

	// ロガーのセットアップ
	logManager, err := server.NewLogManager(cfg.Log.Filename, cfg.Debug)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ログ設定エラー: %v\n", err)
		return 1
	}
	defer func() { _ = logManager.Close() }()

	// ルートコンテキストの作成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // プログラム終了時にコンテキストをキャンセル

	// シグナルハンドリングの設定 (SIGINT, SIGTERM)
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		fmt.Println("\nシグナルを受信しました。終了します...")
		cancel() // シグナル受信時にコンテキストをキャンセル
	}()

	// PIDファイルの作成 (デーモンモード)
	if cfg.Daemon.Enabled && cfg.Daemon.PIDFile != "" {
		if err := writePIDFile(cfg.Daemon.PIDFile); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "PIDファイルの作成エラー: %v\n", err)
			return 1
		}
		defer func() { _ = os.Remove(cfg.Daemon.PIDFile) }()
	}

	// クライアント単独モード: ローカルのECを開かずリモートサーバーへ接続する
	if cfg.WebSocketClient.Enabled && !cfg.WebSocket.Enabled {
		return runRemoteConsole(ctx, cfg)
	}

	// ECトランスポートのオープン
	transport, err := ecio.Open(ecio.Kind(cfg.EC.Transport), cfg.EC.Device)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ECを開けませんでした: %v\n", err)
		return 1
	}
	// モックのときはデモ用の初期イメージを流し込む
	if mock, ok := transport.(*ecio.MockTransport); ok {
		seedDemoImage(mock)
	}

	table, err := buildPropertyTable(cfg)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// 変化監視のポーリング間隔
	var monitorInterval time.Duration
	if cfg.Monitor.Interval != "" {
		monitorInterval, err = time.ParseDuration(cfg.Monitor.Interval)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "監視間隔の形式が不正です: %v\n", err)
			return 1
		}
	}

	// ECHandlerの作成
	h, err := handler.NewECHandler(ctx, transport, table, handler.Options{
		Debug:             cfg.Debug,
		MonitorInterval:   monitorInterval,
		MonitorProperties: cfg.Monitor.Properties,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ECハンドラの作成エラー: %v\n", err)
		return 1
	}
	defer func() {
		if err := h.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "ECハンドラのクローズ中にエラーが発生しました: %v\n", err)
		}
	}()

	if cfg.Monitor.Enabled {
		h.StartMonitoring()
	}

	// サーバーなし: ローカルのECに直結したコンソール
	if !cfg.WebSocket.Enabled {
		c := client.NewECClientProxy(ctx, h)
		defer func() { _ = c.Close() }()
		console.ConsoleProcess(ctx, c, console.Options{HistoryFile: cfg.Console.HistoryFile})
		return 0
	}

	// WebSocketサーバーの作成
	ws, err := server.NewWebSocketServer(ctx, cfg.WebSocketAddr(), h, table.Model, server.HistoryOptions{
		PerPropertyLimit: cfg.History.PerPropertyLimit,
		HistoryFilePath:  cfg.History.File,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WebSocketサーバーの作成エラー: %v\n", err)
		return 1
	}

	startOptions := server.StartOptions{Ready: make(chan struct{})}
	if cfg.TLS.Enabled {
		startOptions.CertFile = cfg.TLS.CertFile
		startOptions.KeyFile = cfg.TLS.KeyFile
	}

	// サーバーとクライアントを同一プロセスで動かす (ws-both)
	if cfg.WebSocketClient.Enabled {
		serveErrCh := make(chan error, 1)
		go func() { serveErrCh <- ws.Start(startOptions) }()
		select {
		case <-startOptions.Ready:
		case err := <-serveErrCh:
			_, _ = fmt.Fprintf(os.Stderr, "サーバーエラー: %v\n", err)
			return 1
		}
		defer func() { _ = ws.Stop() }()

		scheme := "ws"
		if cfg.TLS.Enabled {
			scheme = "wss"
		}
		loopbackURL := fmt.Sprintf("%s://%s/ws", scheme, cfg.WebSocketAddr())
		wc, err := client.NewWebSocketClient(ctx, loopbackURL, table, cfg.Debug)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "WebSocketクライアントの作成に失敗: %v\n", err)
			return 1
		}
		if err := wc.Connect(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "WebSocketサーバーへの接続に失敗: %v\n", err)
			return 1
		}
		defer func() { _ = wc.Close() }()

		console.ConsoleProcess(ctx, wc, console.Options{HistoryFile: cfg.Console.HistoryFile})
		return 0
	}

	// ヘッドレスサーバーモード: シグナルを受けるまで動き続ける
	go func() {
		<-ctx.Done()
		_ = ws.Stop()
	}()
	fmt.Printf("WebSocketサーバーを起動しています: %s\n", cfg.WebSocketAddr())
	if err := ws.Start(startOptions); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_, _ = fmt.Fprintf(os.Stderr, "サーバーエラー: %v\n", err)
		return 1
	}
	return 0
}

// runRemoteConsole は既に動いているサーバーに接続するコンソールを起動する
func runRemoteConsole(ctx context.Context, cfg *config.Config) int {
	table, err := buildPropertyTable(cfg)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}

	wc, err := client.NewWebSocketClient(ctx, cfg.WebSocketClient.Addr, table, cfg.Debug)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WebSocketクライアントの作成に失敗: %v\n", err)
		return 1
	}
	if err := wc.Connect(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WebSocketサーバーへの接続に失敗: %v\n", err)
		return 1
	}
	defer func() { _ = wc.Close() }()

	console.ConsoleProcess(ctx, wc, console.Options{HistoryFile: cfg.Console.HistoryFile})
	return 0
}

// buildPropertyTable は組み込みテーブルにモデル定義ファイルを重ねる
func buildPropertyTable(cfg *config.Config) (msiec.PropertyTable, error) {
	table := msiec.DefaultPropertyTable()
	if cfg.EC.ModelSpec == "" {
		return table, nil
	}
	spec, err := msiec.LoadModelSpec(cfg.EC.ModelSpec)
	if err != nil {
		return msiec.PropertyTable{}, fmt.Errorf("モデル定義の読み込みエラー: %v", err)
	}
	table, err = spec.Apply(table)
	if err != nil {
		return msiec.PropertyTable{}, fmt.Errorf("モデル定義の適用エラー: %v", err)
	}
	return table, nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// seedDemoImage はモックECに現実的な初期値を流し込む。
// 値は GF63 世代の実機ダンプに合わせてある。
func seedDemoImage(mock *ecio.MockTransport) {
	mock.Seed(map[byte]byte{
		0x2e: 0x4a, // webcam: on
		0x2f: 0x48, // webcam_block: off
		0xbf: 0x40, // fn_key: left / win_key: right
		0x98: 0x02, // cooler_boost: off
		0xf2: 0xc1, // shift_mode: balanced
		0xf4: 0x4d, // fan_mode: basic
		0xef: 0xd0, // battery_mode: medium
		0x68: 45,   // cpu_realtime_temperature
		0x71: 0x28, // cpu_realtime_fan_speed
		0x89: 0x07, // cpu_basic_fan_speed / gpu_realtime_fan_speed
		0x80: 40,   // gpu_realtime_temperature
		0x2b: 0x02, // micmute_led: on
		0x2c: 0x00, // mute_led: off
		0xf3: 0x81, // kbd_backlight: 1
	})
	mock.SeedBytes(0xa0, []byte("16V4EMS1.10\x00"))
	mock.SeedBytes(0xac, []byte("03152024"))
	mock.SeedBytes(0xb4, []byte("14:05:09"))
}
