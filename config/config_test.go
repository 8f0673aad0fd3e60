package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Debug {
		t.Error("Debug should default to false")
	}
	if cfg.Log.Filename != "msiec-ctl.log" {
		t.Errorf("Log.Filename = %q, want msiec-ctl.log", cfg.Log.Filename)
	}
	if cfg.EC.Transport != "auto" {
		t.Errorf("EC.Transport = %q, want auto", cfg.EC.Transport)
	}
	if cfg.Monitor.Interval != "2s" {
		t.Errorf("Monitor.Interval = %q, want 2s", cfg.Monitor.Interval)
	}
	if cfg.WebSocket.Host != "localhost" || cfg.WebSocket.Port != 8080 {
		t.Errorf("WebSocket defaults = %s:%d, want localhost:8080", cfg.WebSocket.Host, cfg.WebSocket.Port)
	}
	if cfg.WebSocketClient.Addr != "ws://localhost:8080/ws" {
		t.Errorf("WebSocketClient.Addr = %q", cfg.WebSocketClient.Addr)
	}
	if cfg.History.PerPropertyLimit != 200 {
		t.Errorf("History.PerPropertyLimit = %d, want 200", cfg.History.PerPropertyLimit)
	}
}

func TestWebSocketAddr(t *testing.T) {
	cfg := NewConfig()
	cfg.WebSocket.Host = "0.0.0.0"
	cfg.WebSocket.Port = 9000

	if got := cfg.WebSocketAddr(); got != "0.0.0.0:9000" {
		t.Errorf("WebSocketAddr() = %q, want 0.0.0.0:9000", got)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	content := `
debug = true

[log]
filename = "test.log"

[ec]
transport = "mock"
model_spec = "models/gf63.yaml"

[monitor]
enabled = true
interval = "500ms"
properties = ["cpu_realtime_temperature", "battery_mode"]

[websocket]
enabled = true
host = "127.0.0.1"
port = 9999

[console]
history_file = "/tmp/history"

[history]
file = "/tmp/changes.json"
per_property_limit = 50
`
	path := filepath.Join(t.TempDir(), "msiec-ctl.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Log.Filename != "test.log" {
		t.Errorf("Log.Filename = %q", cfg.Log.Filename)
	}
	if cfg.EC.Transport != "mock" {
		t.Errorf("EC.Transport = %q, want mock", cfg.EC.Transport)
	}
	if cfg.EC.ModelSpec != "models/gf63.yaml" {
		t.Errorf("EC.ModelSpec = %q", cfg.EC.ModelSpec)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.Interval != "500ms" {
		t.Errorf("Monitor = %+v", cfg.Monitor)
	}
	if len(cfg.Monitor.Properties) != 2 || cfg.Monitor.Properties[0] != "cpu_realtime_temperature" {
		t.Errorf("Monitor.Properties = %v", cfg.Monitor.Properties)
	}
	if !cfg.WebSocket.Enabled || cfg.WebSocketAddr() != "127.0.0.1:9999" {
		t.Errorf("WebSocket = %+v", cfg.WebSocket)
	}
	if cfg.Console.HistoryFile != "/tmp/history" {
		t.Errorf("Console.HistoryFile = %q", cfg.Console.HistoryFile)
	}
	if cfg.History.File != "/tmp/changes.json" || cfg.History.PerPropertyLimit != 50 {
		t.Errorf("History = %+v", cfg.History)
	}

	// ファイルに書かれていない項目はデフォルトのまま
	if cfg.WebSocketClient.Addr != "ws://localhost:8080/ws" {
		t.Errorf("WebSocketClient.Addr = %q, want default", cfg.WebSocketClient.Addr)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	// カレントディレクトリにデフォルト設定ファイルがない状態にする
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	}()

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EC.Transport != "auto" {
		t.Errorf("EC.Transport = %q, want auto", cfg.EC.Transport)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("debug = ["), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig should fail on invalid TOML")
	}
}

func TestApplyCommandLineArgs(t *testing.T) {
	cfg := NewConfig()
	cfg.EC.Transport = "debugfs"

	args := CommandLineArgs{
		Debug:          true,
		DebugSpecified: true,

		LogFilename:          "cli.log",
		LogFilenameSpecified: true,

		Transport:          "port",
		TransportSpecified: true,

		MonitorEnabled:          true,
		MonitorEnabledSpecified: true,

		WebSocketPort:          9001,
		WebSocketPortSpecified: true,

		HistoryFile:          "/var/lib/msiec/history.json",
		HistoryFileSpecified: true,

		// Specified が false の値は無視される
		WebSocketHost: "ignored.example",
	}
	cfg.ApplyCommandLineArgs(args)

	if !cfg.Debug {
		t.Error("Debug should be overridden to true")
	}
	if cfg.Log.Filename != "cli.log" {
		t.Errorf("Log.Filename = %q", cfg.Log.Filename)
	}
	if cfg.EC.Transport != "port" {
		t.Errorf("EC.Transport = %q, want port", cfg.EC.Transport)
	}
	if !cfg.Monitor.Enabled {
		t.Error("Monitor.Enabled should be true")
	}
	if cfg.WebSocket.Port != 9001 {
		t.Errorf("WebSocket.Port = %d, want 9001", cfg.WebSocket.Port)
	}
	if cfg.History.File != "/var/lib/msiec/history.json" {
		t.Errorf("History.File = %q", cfg.History.File)
	}
	if cfg.WebSocket.Host != "localhost" {
		t.Errorf("WebSocket.Host = %q, unspecified flag should not override", cfg.WebSocket.Host)
	}
}

func TestApplyCommandLineArgsWsBoth(t *testing.T) {
	cfg := NewConfig()

	cfg.ApplyCommandLineArgs(CommandLineArgs{
		WebSocketBoth:          true,
		WebSocketBothSpecified: true,
	})

	if !cfg.WebSocket.Enabled || !cfg.WebSocketClient.Enabled {
		t.Error("ws-both should enable both the server and the client")
	}
}

func TestApplyCommandLineArgsMock(t *testing.T) {
	cfg := NewConfig()

	cfg.ApplyCommandLineArgs(CommandLineArgs{
		Mock:          true,
		MockSpecified: true,
	})

	if cfg.EC.Transport != "mock" {
		t.Errorf("EC.Transport = %q, -mock should select the mock transport", cfg.EC.Transport)
	}
}
