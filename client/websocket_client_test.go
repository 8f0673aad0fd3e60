package client

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"msiec-ctl/protocol"
)

// fakeTransport は、書き込まれたリクエストに対して respond の戻り値を
// そのまま ReadMessage に流すテスト用トランスポート
type fakeTransport struct {
	respond   func(t *testing.T, msg *protocol.Message) [][]byte
	t         *testing.T
	ch        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport(t *testing.T, respond func(t *testing.T, msg *protocol.Message) [][]byte) *fakeTransport {
	return &fakeTransport{
		respond: respond,
		t:       t,
		ch:      make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) Connect() error { return nil }

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.ch:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, websocket.ErrCloseSent
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		f.t.Errorf("クライアントが不正なメッセージを送信: %v", err)
		return nil
	}
	for _, reply := range f.respond(f.t, msg) {
		f.ch <- reply
	}
	return nil
}

func (f *fakeTransport) IsConnected() bool { return true }

// newTestClient は、fakeTransport に接続済みの WebSocketClient を作成する
func newTestClient(t *testing.T, respond func(t *testing.T, msg *protocol.Message) [][]byte) *WebSocketClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	fake := newFakeTransport(t, respond)
	client := &WebSocketClient{
		ctx:        ctx,
		cancel:     cancel,
		transport:  fake,
		properties: make(map[string]protocol.PropertyData),
		responseCh: make(map[string]chan *protocol.Message),
	}
	go client.listenForMessages()
	t.Cleanup(func() {
		cancel()
		_ = fake.Close()
	})
	return client
}

func commandResult(t *testing.T, requestID string, payload protocol.CommandResultPayload) []byte {
	t.Helper()
	data, err := protocol.CreateMessage(protocol.MessageTypeCommandResult, payload, requestID)
	if err != nil {
		t.Fatalf("command_result の作成に失敗: %v", err)
	}
	return data
}

func successData(t *testing.T, data interface{}) protocol.CommandResultPayload {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("データのマーシャルに失敗: %v", err)
	}
	return protocol.CommandResultPayload{Success: true, Data: raw}
}

func TestGetProperties_RoundTrip(t *testing.T) {
	client := newTestClient(t, func(t *testing.T, msg *protocol.Message) [][]byte {
		if msg.Type != protocol.MessageTypeGetProperties {
			t.Errorf("メッセージ型 = %s, want get_properties", msg.Type)
		}
		var payload protocol.GetPropertiesPayload
		if err := protocol.ParsePayload(msg, &payload); err != nil {
			t.Fatalf("ペイロードのパースに失敗: %v", err)
		}
		if len(payload.Names) != 2 || payload.Names[0] != "webcam" {
			t.Errorf("Names = %v", payload.Names)
		}

		result := successData(t, protocol.PropertiesResultData{
			Properties: map[string]protocol.PropertyData{
				"webcam": {Name: "webcam", Value: "on", Raw: "4a", Known: true},
				"fn_key": {Name: "fn_key", Value: "left", Raw: "40", Known: true},
			},
		})
		return [][]byte{commandResult(t, msg.RequestID, result)}
	})

	properties, err := client.GetProperties([]string{"webcam", "fn_key"})
	if err != nil {
		t.Fatalf("GetProperties エラー: %v", err)
	}

	// リクエストで指定した順に返る
	if len(properties) != 2 {
		t.Fatalf("len(properties) = %d, want 2", len(properties))
	}
	if properties[0].Name != "webcam" || properties[0].Value != "on" {
		t.Errorf("properties[0] = %+v", properties[0])
	}
	if properties[1].Name != "fn_key" || properties[1].Value != "left" {
		t.Errorf("properties[1] = %+v", properties[1])
	}

	// 結果はキャッシュにも反映される
	if cached, ok := client.CachedProperty("webcam"); !ok || cached.Value != "on" {
		t.Errorf("CachedProperty(webcam) = %+v, %v", cached, ok)
	}
}

func TestSetProperties_OrdersResultsByName(t *testing.T) {
	client := newTestClient(t, func(t *testing.T, msg *protocol.Message) [][]byte {
		var payload protocol.SetPropertiesPayload
		if err := protocol.ParsePayload(msg, &payload); err != nil {
			t.Fatalf("ペイロードのパースに失敗: %v", err)
		}
		if payload.Properties["webcam"] != "off" {
			t.Errorf("Properties = %v", payload.Properties)
		}

		result := successData(t, protocol.PropertiesResultData{
			Properties: map[string]protocol.PropertyData{
				"webcam": {Name: "webcam", Value: "off", Raw: "48", Known: true},
				"fn_key": {Name: "fn_key", Value: "right", Raw: "50", Known: true},
			},
		})
		return [][]byte{commandResult(t, msg.RequestID, result)}
	})

	properties, err := client.SetProperties(map[string]string{
		"webcam": "off",
		"fn_key": "right",
	})
	if err != nil {
		t.Fatalf("SetProperties エラー: %v", err)
	}

	// 名前順に整列して返る
	if len(properties) != 2 || properties[0].Name != "fn_key" || properties[1].Name != "webcam" {
		t.Errorf("properties = %+v", properties)
	}
}

func TestSendRequest_ErrorResult(t *testing.T) {
	client := newTestClient(t, func(t *testing.T, msg *protocol.Message) [][]byte {
		result := protocol.CommandResultPayload{
			Success: false,
			Error: &protocol.Error{
				Code:    protocol.ErrorCodePropertyNotFound,
				Message: "Property not found: flux_capacitor",
			},
		}
		return [][]byte{commandResult(t, msg.RequestID, result)}
	})

	_, err := client.GetProperties([]string{"flux_capacitor"})
	if err == nil {
		t.Fatal("エラーが返るべきです")
	}
	if !strings.Contains(err.Error(), string(protocol.ErrorCodePropertyNotFound)) {
		t.Errorf("err = %v, エラーコードを含むべきです", err)
	}
}

func TestGetChangeHistory_SendsOptions(t *testing.T) {
	client := newTestClient(t, func(t *testing.T, msg *protocol.Message) [][]byte {
		if msg.Type != protocol.MessageTypeGetChangeHistory {
			t.Errorf("メッセージ型 = %s, want get_change_history", msg.Type)
		}
		var payload protocol.GetChangeHistoryPayload
		if err := protocol.ParsePayload(msg, &payload); err != nil {
			t.Fatalf("ペイロードのパースに失敗: %v", err)
		}
		if payload.Name != "webcam" || payload.Limit != 5 {
			t.Errorf("payload = %+v", payload)
		}

		result := successData(t, protocol.ChangeHistoryResultData{
			Entries: []protocol.ChangeHistoryEntryData{
				{Property: protocol.PropertyData{Name: "webcam", Value: "off"}, Origin: "set"},
			},
		})
		return [][]byte{commandResult(t, msg.RequestID, result)}
	})

	entries, err := client.GetChangeHistory(ChangeHistoryOptions{Name: "webcam", Limit: 5})
	if err != nil {
		t.Fatalf("GetChangeHistory エラー: %v", err)
	}
	if len(entries) != 1 || entries[0].Origin != "set" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDumpRegisters_DecodesImage(t *testing.T) {
	client := newTestClient(t, func(t *testing.T, msg *protocol.Message) [][]byte {
		result := successData(t, protocol.DumpData{Registers: "4a0048"})
		return [][]byte{commandResult(t, msg.RequestID, result)}
	})

	image, err := client.DumpRegisters()
	if err != nil {
		t.Fatalf("DumpRegisters エラー: %v", err)
	}
	if len(image) != 3 || image[0] != 0x4a || image[2] != 0x48 {
		t.Errorf("image = %x", image)
	}
}
