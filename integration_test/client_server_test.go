package integration_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"msiec-ctl/client"
	"msiec-ctl/msiec"
	"msiec-ctl/msiec/ecio"
	"msiec-ctl/msiec/handler"
	"msiec-ctl/server"
)

// seedImage fills the mock EC with the same register values the demo mode
// uses, so decoded values are meaningful rather than "unknown (0)".
func seedImage(mock *ecio.MockTransport) {
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

// startTestServer starts a WebSocket server backed by a mock transport on an
// ephemeral port and returns the mock and the server URL.
func startTestServer(t *testing.T) (*ecio.MockTransport, *server.WebSocketServer, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mock := ecio.NewMockTransport()
	seedImage(mock)

	h, err := handler.NewECHandler(ctx, mock, msiec.DefaultPropertyTable(), handler.Options{})
	if err != nil {
		t.Fatalf("NewECHandler: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	ws, err := server.NewWebSocketServer(ctx, "127.0.0.1:0", h, "default", server.DefaultHistoryOptions())
	if err != nil {
		t.Fatalf("NewWebSocketServer: %v", err)
	}

	ready := make(chan struct{})
	go func() {
		// Serve returns http.ErrServerClosed on Stop; nothing to report here
		_ = ws.Start(server.StartOptions{Ready: ready})
	}()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start listening")
	}
	t.Cleanup(func() { _ = ws.Stop() })

	return mock, ws, fmt.Sprintf("ws://%s/ws", ws.Addr())
}

func connectClient(t *testing.T, url string) *client.WebSocketClient {
	t.Helper()

	c, err := client.NewWebSocketClient(context.Background(), url, msiec.DefaultPropertyTable(), false)
	if err != nil {
		t.Fatalf("NewWebSocketClient: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitForCachedValue polls the client's local cache until the named property
// holds the wanted value or the deadline expires.
func waitForCachedValue(t *testing.T, c *client.WebSocketClient, name, want string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, ok := c.CachedProperty(name); ok && data.Value == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	data, ok := c.CachedProperty(name)
	t.Fatalf("cached %s = %q (present=%v), want %q", name, data.Value, ok, want)
}

func TestGetSetRoundTrip(t *testing.T) {
	mock, _, url := startTestServer(t)
	c := connectClient(t, url)

	// initial_state arrives right after connect and fills the cache
	waitForCachedValue(t, c, "webcam", "on")

	got, err := c.GetProperties([]string{"webcam", "shift_mode"})
	if err != nil {
		t.Fatalf("GetProperties: %v", err)
	}
	if len(got) != 2 || got[0].Value != "on" || got[1].Value != "balanced" {
		t.Errorf("GetProperties = %+v, want webcam=on shift_mode=balanced", got)
	}

	set, err := c.SetProperties(map[string]string{"webcam": "off"})
	if err != nil {
		t.Fatalf("SetProperties: %v", err)
	}
	if len(set) != 1 || set[0].Value != "off" {
		t.Errorf("SetProperties read-back = %+v, want webcam=off", set)
	}
	if mock.At(0x2e) != 0x48 {
		t.Errorf("register 0x2e = %#02x after set, want 0x48", mock.At(0x2e))
	}

	// the change made through set_properties shows up in the server history
	entries, err := c.GetChangeHistory(client.ChangeHistoryOptions{Name: "webcam"})
	if err != nil {
		t.Fatalf("GetChangeHistory: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("GetChangeHistory returned no entries after set")
	}
	if entries[0].Property.Value != "off" || entries[0].Origin != "set" {
		t.Errorf("history head = %+v, want value=off origin=set", entries[0])
	}
}

func TestInvalidValueWritesNothing(t *testing.T) {
	mock, _, url := startTestServer(t)
	c := connectClient(t, url)
	waitForCachedValue(t, c, "webcam", "on")

	writesBefore := len(mock.Writes())
	_, err := c.SetProperties(map[string]string{"webcam": "banana"})
	if err == nil {
		t.Fatal("SetProperties accepted an out-of-vocabulary value")
	}
	if !strings.Contains(err.Error(), "INVALID_VALUE") {
		t.Errorf("error = %v, want INVALID_VALUE code", err)
	}
	if n := len(mock.Writes()); n != writesBefore {
		t.Errorf("EC saw %d writes for a rejected value, want 0", n-writesBefore)
	}
}

func TestSetNotifiesOtherClients(t *testing.T) {
	_, _, url := startTestServer(t)
	setter := connectClient(t, url)
	watcher := connectClient(t, url)

	waitForCachedValue(t, watcher, "cooler_boost", "off")

	if _, err := setter.SetProperties(map[string]string{"cooler_boost": "on"}); err != nil {
		t.Fatalf("SetProperties: %v", err)
	}

	// the property_changed broadcast updates the other client's cache
	waitForCachedValue(t, watcher, "cooler_boost", "on")
}

func TestDumpRegisters(t *testing.T) {
	mock, _, url := startTestServer(t)
	c := connectClient(t, url)
	waitForCachedValue(t, c, "webcam", "on")

	dump, err := c.DumpRegisters()
	if err != nil {
		t.Fatalf("DumpRegisters: %v", err)
	}
	if len(dump) != 256 {
		t.Fatalf("dump length = %d, want 256", len(dump))
	}
	if dump[0x2e] != mock.At(0x2e) {
		t.Errorf("dump[0x2e] = %#02x, want %#02x", dump[0x2e], mock.At(0x2e))
	}
	if got := string(dump[0xac : 0xac+8]); got != "03152024" {
		t.Errorf("dump firmware date run = %q, want 03152024", got)
	}
}

func TestFirmwareDateOverWire(t *testing.T) {
	_, _, url := startTestServer(t)
	c := connectClient(t, url)
	waitForCachedValue(t, c, "webcam", "on")

	got, err := c.GetProperties([]string{"fw_release_date", "fw_version"})
	if err != nil {
		t.Fatalf("GetProperties: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetProperties returned %d values, want 2", len(got))
	}
	if got[0].Value != "2024/03/15 14:05:09" {
		t.Errorf("fw_release_date = %q, want 2024/03/15 14:05:09", got[0].Value)
	}
	if got[1].Value != "16V4EMS1.10" {
		t.Errorf("fw_version = %q, want 16V4EMS1.10", got[1].Value)
	}
}
