package server

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestPingPeriodLessThanPongWait verifies the critical heartbeat requirement
func TestPingPeriodLessThanPongWait(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod (%v) must be less than pongWait (%v) for heartbeat to work correctly", pingPeriod, pongWait)
	}
}

// TestTimeoutConstants verifies timeout constants have reasonable values
func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		{
			name:     "writeWait",
			value:    writeWait,
			minValue: 1 * time.Second,
			maxValue: 60 * time.Second,
		},
		{
			name:     "pongWait",
			value:    pongWait,
			minValue: 10 * time.Second,
			maxValue: 5 * time.Minute,
		},
		{
			name:     "pingPeriod",
			value:    pingPeriod,
			minValue: 5 * time.Second,
			maxValue: 5 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value < tt.minValue {
				t.Errorf("%s (%v) is too small, minimum recommended is %v", tt.name, tt.value, tt.minValue)
			}
			if tt.value > tt.maxValue {
				t.Errorf("%s (%v) is too large, maximum recommended is %v", tt.name, tt.value, tt.maxValue)
			}
		})
	}
}

// TestClientConnectionHasPingDone verifies pingDone channel is initialized
func TestClientConnectionHasPingDone(t *testing.T) {
	client := &clientConnection{
		conn:     nil,
		mutex:    sync.Mutex{},
		pingDone: make(chan struct{}),
	}

	if client.pingDone == nil {
		t.Error("pingDone channel should be initialized")
	}

	// Test that channel can be closed without panic
	close(client.pingDone)
}

// TestNewDefaultWebSocketTransport verifies transport creation
func TestNewDefaultWebSocketTransport(t *testing.T) {
	ctx := context.Background()
	transport := NewDefaultWebSocketTransport(ctx, ":8080")

	if transport == nil {
		t.Fatal("Transport should not be nil")
	}

	if transport.clients == nil {
		t.Error("clients map should be initialized")
	}

	if transport.clientsReverse == nil {
		t.Error("clientsReverse map should be initialized")
	}
}

// TestTransportContextCancellation verifies context cancellation
func TestTransportContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := NewDefaultWebSocketTransport(ctx, ":0")

	if transport.ctx == nil {
		t.Error("Transport context should not be nil")
	}

	cancel()

	select {
	case <-transport.ctx.Done():
		// Success
	default:
		t.Error("Transport context should be done after cancel")
	}
}

// TestBroadcastMessageToNoClients verifies broadcast with no clients
func TestBroadcastMessageToNoClients(t *testing.T) {
	ctx := context.Background()
	transport := NewDefaultWebSocketTransport(ctx, ":0")

	err := transport.BroadcastMessage([]byte("test message"))
	if err != nil {
		t.Errorf("BroadcastMessage to no clients should not error, got: %v", err)
	}
}

// TestSendMessageToNonExistentClient verifies error handling
func TestSendMessageToNonExistentClient(t *testing.T) {
	ctx := context.Background()
	transport := NewDefaultWebSocketTransport(ctx, ":0")

	err := transport.SendMessage("non-existent-id", []byte("test message"))
	if err == nil {
		t.Error("SendMessage to non-existent client should error")
	}

	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Error should mention 'not found', got: %v", err)
	}
}

// TestSetHandlers verifies handler setting
func TestSetHandlers(t *testing.T) {
	ctx := context.Background()
	transport := NewDefaultWebSocketTransport(ctx, ":0")

	transport.SetMessageHandler(func(connID string, message []byte) error {
		return nil
	})

	transport.SetConnectHandler(func(connID string) error {
		return nil
	})

	transport.SetDisconnectHandler(func(connID string) {
	})

	if transport.messageHandler == nil {
		t.Error("messageHandler should be set")
	}

	if transport.connectHandler == nil {
		t.Error("connectHandler should be set")
	}

	if transport.disconnectHandler == nil {
		t.Error("disconnectHandler should be set")
	}
}

// TestTransportEndToEnd starts the transport on an ephemeral port and
// exchanges messages with a real WebSocket client.
func TestTransportEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := NewDefaultWebSocketTransport(ctx, "127.0.0.1:0")

	connected := make(chan string, 1)
	disconnected := make(chan string, 1)
	received := make(chan []byte, 1)

	transport.SetConnectHandler(func(connID string) error {
		connected <- connID
		return nil
	})
	transport.SetDisconnectHandler(func(connID string) {
		select {
		case disconnected <- connID:
		default:
		}
	})
	transport.SetMessageHandler(func(connID string, message []byte) error {
		received <- message
		// Echo back to the sender
		return transport.SendMessage(connID, message)
	})

	ready := make(chan struct{})
	go func() {
		_ = transport.Start(StartOptions{Ready: ready})
	}()
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("Transport did not start listening")
	}
	defer transport.Stop()

	wsURL := "ws://" + transport.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", wsURL, err)
	}
	defer conn.Close()

	var connID string
	select {
	case connID = <-connected:
		if connID == "" {
			t.Error("Connection ID should not be empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Connect handler was not called")
	}

	// Client -> server -> echo back
	testMessage := []byte(`{"type":"test"}`)
	if err := conn.WriteMessage(websocket.TextMessage, testMessage); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != string(testMessage) {
			t.Errorf("Received message %q, want %q", string(msg), string(testMessage))
		}
	case <-time.After(time.Second):
		t.Fatal("Message handler was not called")
	}

	_, echoed, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read echo: %v", err)
	}
	if string(echoed) != string(testMessage) {
		t.Errorf("Echoed message %q, want %q", string(echoed), string(testMessage))
	}

	// Broadcast reaches the connected client
	broadcast := []byte(`{"type":"broadcast"}`)
	if err := transport.BroadcastMessage(broadcast); err != nil {
		t.Fatalf("BroadcastMessage failed: %v", err)
	}
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}
	if string(got) != string(broadcast) {
		t.Errorf("Broadcast message %q, want %q", string(got), string(broadcast))
	}

	// Closing the client triggers the disconnect handler
	conn.Close()
	select {
	case <-disconnected:
		// Success
	case <-time.After(time.Second):
		t.Error("Disconnect handler was not called")
	}
}
