package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"msiec-ctl/msiec"
	"msiec-ctl/msiec/ecio"
	"msiec-ctl/msiec/handler"
)

// newProxy は、モックトランスポートに接続されたローカルクライアントを作成する
func newProxy(t *testing.T, mock *ecio.MockTransport) ECClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h, err := handler.NewECHandler(ctx, mock, msiec.DefaultPropertyTable(), handler.Options{})
	if err != nil {
		t.Fatalf("NewECHandler エラー: %v", err)
	}
	t.Cleanup(func() {
		_ = h.Close()
		cancel()
	})
	return NewECClientProxy(ctx, h)
}

func TestECClientProxy_GetProperties(t *testing.T) {
	mock := ecio.NewMockTransport().Seed(map[byte]byte{0x2e: 0x4a, 0x68: 45})
	proxy := newProxy(t, mock)

	properties, err := proxy.GetProperties([]string{"webcam", "cpu_realtime_temperature"})
	if err != nil {
		t.Fatalf("GetProperties エラー: %v", err)
	}
	if len(properties) != 2 {
		t.Fatalf("len(properties) = %d, want 2", len(properties))
	}
	if properties[0].Name != "webcam" || properties[0].Value != "on" {
		t.Errorf("properties[0] = %+v", properties[0])
	}
	if properties[1].Number == nil || *properties[1].Number != 45 {
		t.Errorf("properties[1] = %+v", properties[1])
	}
}

func TestECClientProxy_GetProperties_Empty(t *testing.T) {
	proxy := newProxy(t, ecio.NewMockTransport())

	if _, err := proxy.GetProperties(nil); err == nil {
		t.Error("名前なしの GetProperties はエラーになるべきです")
	}
}

func TestECClientProxy_SetRecordsHistory(t *testing.T) {
	mock := ecio.NewMockTransport().Seed(map[byte]byte{0x2e: 0x4a})
	proxy := newProxy(t, mock)

	properties, err := proxy.SetProperties(map[string]string{"webcam": "off"})
	if err != nil {
		t.Fatalf("SetProperties エラー: %v", err)
	}
	if len(properties) != 1 || properties[0].Value != "off" {
		t.Errorf("properties = %+v", properties)
	}
	if got := mock.At(0x2e); got != 0x48 {
		t.Errorf("レジスタ 0x2e = %#02x, want 0x48", got)
	}

	entries, err := proxy.GetChangeHistory(ChangeHistoryOptions{})
	if err != nil {
		t.Fatalf("GetChangeHistory エラー: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Origin != "set" || entries[0].Property.Value != "off" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
}

func TestECClientProxy_HistoryNewestFirstWithLimit(t *testing.T) {
	mock := ecio.NewMockTransport().Seed(map[byte]byte{0x2e: 0x4a})
	proxy := newProxy(t, mock)

	for _, value := range []string{"off", "on", "off"} {
		if _, err := proxy.SetProperties(map[string]string{"webcam": value}); err != nil {
			t.Fatalf("SetProperties エラー: %v", err)
		}
	}

	entries, err := proxy.GetChangeHistory(ChangeHistoryOptions{Name: "webcam", Limit: 2})
	if err != nil {
		t.Fatalf("GetChangeHistory エラー: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// 新しい順
	if entries[0].Property.Value != "off" || entries[1].Property.Value != "on" {
		t.Errorf("entries = [%s, %s], want [off, on]",
			entries[0].Property.Value, entries[1].Property.Value)
	}
}

func TestECClientProxy_HistoryUnknownName(t *testing.T) {
	proxy := newProxy(t, ecio.NewMockTransport())

	_, err := proxy.GetChangeHistory(ChangeHistoryOptions{Name: "flux_capacitor"})
	var notFound *handler.PropertyNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("err = %v, want *PropertyNotFoundError", err)
	}
}

func TestECClientProxy_ListProperties(t *testing.T) {
	mock := ecio.NewMockTransport().Seed(map[byte]byte{0x2b: 0x02, 0x2c: 0x00, 0xf3: 0x81})
	proxy := newProxy(t, mock)

	result, err := proxy.ListProperties("led")
	if err != nil {
		t.Fatalf("ListProperties エラー: %v", err)
	}
	if result.Model != msiec.DefaultModel {
		t.Errorf("Model = %q, want %q", result.Model, msiec.DefaultModel)
	}
	if len(result.Entries) == 0 {
		t.Fatal("led グループのエントリが空です")
	}
	for _, entry := range result.Entries {
		if entry.Error != nil {
			t.Errorf("%s: %+v", entry.Property.Name, entry.Error)
		}
	}
}

func TestECClientProxy_ListProperties_UnknownGroup(t *testing.T) {
	proxy := newProxy(t, ecio.NewMockTransport())

	_, err := proxy.ListProperties("chassis")
	if err == nil || !strings.Contains(err.Error(), "unknown property group") {
		t.Errorf("err = %v", err)
	}
}

func TestECClientProxy_RegisterAccess(t *testing.T) {
	mock := ecio.NewMockTransport().Seed(map[byte]byte{0x2e: 0x4a})
	proxy := newProxy(t, mock)

	value, err := proxy.ReadRegister("0x2e")
	if err != nil {
		t.Fatalf("ReadRegister エラー: %v", err)
	}
	if value.Addr != "0x2e" || value.Value != "0x4a" {
		t.Errorf("value = %+v", value)
	}

	written, err := proxy.WriteRegister("0x2e", "0x48")
	if err != nil {
		t.Fatalf("WriteRegister エラー: %v", err)
	}
	if written.Value != "0x48" {
		t.Errorf("written = %+v", written)
	}
	if got := mock.At(0x2e); got != 0x48 {
		t.Errorf("レジスタ 0x2e = %#02x, want 0x48", got)
	}

	if _, err := proxy.ReadRegister("not-an-addr"); err == nil {
		t.Error("不正なアドレスはエラーになるべきです")
	}
}

func TestECClientProxy_Catalog(t *testing.T) {
	proxy := newProxy(t, ecio.NewMockTransport())

	names := proxy.PropertyNames()
	if len(names) == 0 {
		t.Fatal("PropertyNames が空です")
	}
	found := false
	for _, name := range names {
		if name == "webcam" {
			found = true
		}
	}
	if !found {
		t.Error("PropertyNames に webcam が含まれていません")
	}

	groups := proxy.PropertyGroups()
	if len(groups) == 0 {
		t.Fatal("PropertyGroups が空です")
	}

	candidates := proxy.ValueCandidates("webcam")
	if len(candidates) != 2 {
		t.Errorf("ValueCandidates(webcam) = %v", candidates)
	}

	if got := proxy.ValueCandidates("flux_capacitor"); got != nil {
		t.Errorf("ValueCandidates(flux_capacitor) = %v, want nil", got)
	}
}
