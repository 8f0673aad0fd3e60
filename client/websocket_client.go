package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"msiec-ctl/msiec"
	"msiec-ctl/protocol"

	"github.com/gorilla/websocket"
)

// 応答待ちのタイムアウト。EC 側の 1 操作は数十 ms で終わるので余裕を持った値
const responseTimeout = 10 * time.Second

// WebSocketClient implements the ECClient interface using a WebSocket connection
// to a running msiec-ctl server.
type WebSocketClient struct {
	ctx       context.Context
	cancel    context.CancelFunc
	transport WebSocketClientTransport
	table     msiec.PropertyTable

	debug      bool
	watching   bool
	stateMutex sync.RWMutex

	model             string
	serverStartupTime time.Time
	properties        map[string]protocol.PropertyData
	propertiesMutex   sync.RWMutex

	requestID       int
	requestIDMutex  sync.Mutex
	responseCh      map[string]chan *protocol.Message
	responseChMutex sync.Mutex
}

// NewWebSocketClient creates a new WebSocket client for the given server URL.
// The connection is established by Connect.
func NewWebSocketClient(ctx context.Context, serverURL string, table msiec.PropertyTable, debug bool) (*WebSocketClient, error) {
	clientCtx, cancel := context.WithCancel(ctx)

	transport, err := NewDefaultWebSocketClientTransport(clientCtx, serverURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}

	return &WebSocketClient{
		ctx:        clientCtx,
		cancel:     cancel,
		transport:  transport,
		table:      table,
		debug:      debug,
		properties: make(map[string]protocol.PropertyData),
		responseCh: make(map[string]chan *protocol.Message),
	}, nil
}

// Connect connects to the WebSocket server and starts the receive loop
func (c *WebSocketClient) Connect() error {
	if err := c.transport.Connect(); err != nil {
		return fmt.Errorf("error connecting to WebSocket server: %v", err)
	}

	go c.listenForMessages()

	return nil
}

// Close closes the WebSocket connection
func (c *WebSocketClient) Close() error {
	c.cancel()
	return c.transport.Close()
}

// IsDebug returns whether debug mode is enabled
func (c *WebSocketClient) IsDebug() bool {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.debug
}

// SetDebug sets the debug mode
func (c *WebSocketClient) SetDebug(debug bool) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.debug = debug
}

// IsWatching returns whether property change printing is enabled
func (c *WebSocketClient) IsWatching() bool {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.watching
}

// SetWatch enables or disables printing of property change notifications.
// The server keeps monitoring either way; this only controls local output.
func (c *WebSocketClient) SetWatch(enabled bool) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.watching = enabled
}

// Model returns the hardware model name reported by the server in initial_state
func (c *WebSocketClient) Model() string {
	c.propertiesMutex.RLock()
	defer c.propertiesMutex.RUnlock()
	return c.model
}

// PropertyNames returns all property names of the embedded definition table
func (c *WebSocketClient) PropertyNames() []string {
	return c.table.Names()
}

// PropertyGroups returns all property group names of the embedded definition table
func (c *WebSocketClient) PropertyGroups() []string {
	return c.table.Groups()
}

// ValueCandidates returns the accepted set values for a property, if any
func (c *WebSocketClient) ValueCandidates(name string) []string {
	desc, ok := c.table.Find(name)
	if !ok {
		return nil
	}
	return desc.ValueCandidates()
}

// listenForMessages listens for messages from the WebSocket server
func (c *WebSocketClient) listenForMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			// Read a message
			_, message, err := c.transport.ReadMessage()
			if err != nil {
				if c.IsDebug() {
					fmt.Printf("Error reading message: %v\n", err)
				}
				return
			}

			// Parse the message
			msg, err := protocol.ParseMessage(message)
			if err != nil {
				if c.IsDebug() {
					fmt.Printf("Error parsing message: %v\n", err)
				}
				continue
			}

			// Handle the message
			if msg.RequestID != "" {
				// This is a response to a request
				c.responseChMutex.Lock()
				if ch, ok := c.responseCh[msg.RequestID]; ok {
					ch <- msg
					delete(c.responseCh, msg.RequestID)
				}
				c.responseChMutex.Unlock()
			} else {
				// This is a notification
				c.handleNotification(msg)
			}
		}
	}
}

// sendRequest sends a request to the WebSocket server and waits for a response
func (c *WebSocketClient) sendRequest(msgType protocol.MessageType, payload interface{}) (*protocol.Message, error) {
	// Generate a request ID
	c.requestIDMutex.Lock()
	c.requestID++
	requestID := fmt.Sprintf("req-%d", c.requestID)
	c.requestIDMutex.Unlock()

	// Create a channel for the response
	responseCh := make(chan *protocol.Message, 1)
	c.responseChMutex.Lock()
	c.responseCh[requestID] = responseCh
	c.responseChMutex.Unlock()

	// Create the message
	data, err := protocol.CreateMessage(msgType, payload, requestID)
	if err != nil {
		return nil, fmt.Errorf("error creating message: %v", err)
	}

	// Send the message
	if err := c.transport.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("error sending message: %v", err)
	}

	// Wait for the response
	select {
	case response := <-responseCh:
		return response, nil
	case <-time.After(responseTimeout):
		return nil, fmt.Errorf("timeout waiting for response")
	case <-c.ctx.Done():
		return nil, fmt.Errorf("context canceled")
	}
}

// commandResultData unwraps a command_result response and returns its data part.
// A failed result is converted into an error carrying the server's code and message.
func commandResultData(response *protocol.Message) (json.RawMessage, error) {
	var resultPayload protocol.CommandResultPayload
	if err := protocol.ParsePayload(response, &resultPayload); err != nil {
		return nil, fmt.Errorf("error parsing response: %v", err)
	}

	if !resultPayload.Success {
		if resultPayload.Error != nil {
			return nil, fmt.Errorf("%s: %s", resultPayload.Error.Code, resultPayload.Error.Message)
		}
		return nil, fmt.Errorf("unknown error")
	}

	return resultPayload.Data, nil
}

// storeProperties merges the given properties into the local state cache
func (c *WebSocketClient) storeProperties(properties []protocol.PropertyData) {
	c.propertiesMutex.Lock()
	defer c.propertiesMutex.Unlock()
	for _, property := range properties {
		if property.Name == "" {
			continue
		}
		c.properties[property.Name] = property
	}
}

// CachedProperty returns the last known state of a property, if the server
// has reported one since the connection was established.
func (c *WebSocketClient) CachedProperty(name string) (protocol.PropertyData, bool) {
	c.propertiesMutex.RLock()
	defer c.propertiesMutex.RUnlock()
	property, ok := c.properties[name]
	return property, ok
}
