package client

import (
	"encoding/json"
	"testing"
	"time"

	"msiec-ctl/protocol"
)

func intPtr(v int) *int {
	return &v
}

func makeMessage(t *testing.T, msgType protocol.MessageType, payload interface{}) *protocol.Message {
	t.Helper()
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("ペイロードのマーシャルに失敗: %v", err)
	}
	return &protocol.Message{
		Type:    msgType,
		Payload: json.RawMessage(payloadBytes),
	}
}

func TestHandleInitialState(t *testing.T) {
	// WebSocketクライアントを作成（最小限の初期化）
	client := &WebSocketClient{
		properties: map[string]protocol.PropertyData{
			"stale": {Name: "stale", Value: "gone"},
		},
	}

	startup := time.Date(2025, 3, 15, 14, 5, 9, 0, time.UTC)
	payload := protocol.InitialStatePayload{
		Model: "GF66 11UE",
		Properties: map[string]protocol.PropertyData{
			"webcam": {Name: "webcam", Value: "on", Raw: "4a", Known: true},
			"cpu_realtime_temperature": {
				Name:   "cpu_realtime_temperature",
				Value:  "45",
				Raw:    "2d",
				Number: intPtr(45),
				Known:  true,
			},
		},
		ServerStartupTime: startup,
	}

	client.handleInitialState(makeMessage(t, protocol.MessageTypeInitialState, payload))

	if got := client.Model(); got != "GF66 11UE" {
		t.Errorf("Model() = %q, want %q", got, "GF66 11UE")
	}
	if got := client.ServerStartupTime(); !got.Equal(startup) {
		t.Errorf("ServerStartupTime() = %v, want %v", got, startup)
	}

	// キャッシュは丸ごと置き換えられる
	if _, ok := client.CachedProperty("stale"); ok {
		t.Error("initial_state 以前のキャッシュが残っています")
	}

	property, ok := client.CachedProperty("webcam")
	if !ok {
		t.Fatal("webcam がキャッシュされていません")
	}
	if property.Value != "on" || !property.Known {
		t.Errorf("webcam = %+v", property)
	}

	temperature, ok := client.CachedProperty("cpu_realtime_temperature")
	if !ok {
		t.Fatal("cpu_realtime_temperature がキャッシュされていません")
	}
	if temperature.Number == nil || *temperature.Number != 45 {
		t.Errorf("cpu_realtime_temperature.Number = %v, want 45", temperature.Number)
	}
}

func TestHandlePropertyChanged(t *testing.T) {
	client := &WebSocketClient{
		properties: map[string]protocol.PropertyData{
			"webcam": {Name: "webcam", Value: "on", Raw: "4a", Known: true},
		},
	}

	payload := protocol.PropertyChangedPayload{
		Property: protocol.PropertyData{Name: "webcam", Value: "off", Raw: "48", Known: true},
		Previous: &protocol.PropertyData{Name: "webcam", Value: "on", Raw: "4a", Known: true},
	}

	client.handlePropertyChanged(makeMessage(t, protocol.MessageTypePropertyChanged, payload))

	property, ok := client.CachedProperty("webcam")
	if !ok {
		t.Fatal("webcam がキャッシュから消えています")
	}
	if property.Value != "off" || property.Raw != "48" {
		t.Errorf("webcam = %+v, want off/48", property)
	}
}

func TestHandlePropertyChanged_InvalidPayload(t *testing.T) {
	client := &WebSocketClient{
		properties: map[string]protocol.PropertyData{
			"webcam": {Name: "webcam", Value: "on", Raw: "4a", Known: true},
		},
	}

	msg := &protocol.Message{
		Type:    protocol.MessageTypePropertyChanged,
		Payload: json.RawMessage(`{invalid`),
	}

	// パニックせず、キャッシュも変更されないことを確認
	client.handlePropertyChanged(msg)

	property, ok := client.CachedProperty("webcam")
	if !ok || property.Value != "on" {
		t.Errorf("不正なペイロードでキャッシュが変更されました: %+v", property)
	}
}

func TestHandleNotification_UnknownTypeIgnored(t *testing.T) {
	client := &WebSocketClient{
		properties: make(map[string]protocol.PropertyData),
	}

	msg := &protocol.Message{
		Type:    protocol.MessageType("no_such_notification"),
		Payload: json.RawMessage(`{}`),
	}

	// 未知の通知型は無視される（パニックしない）
	client.handleNotification(msg)
}
