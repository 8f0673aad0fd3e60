package client

import (
	"fmt"

	"msiec-ctl/protocol"
)

// handleNotification handles a notification from the WebSocket server
func (c *WebSocketClient) handleNotification(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeInitialState:
		c.handleInitialState(msg)
	case protocol.MessageTypePropertyChanged:
		c.handlePropertyChanged(msg)
	case protocol.MessageTypeTransportNotification:
		c.handleTransportNotification(msg)
	case protocol.MessageTypeLogNotification:
		c.handleLogNotification(msg)
	case protocol.MessageTypeErrorNotification:
		c.handleErrorNotification(msg)
	}
}

// handleInitialState handles an initial_state message
func (c *WebSocketClient) handleInitialState(msg *protocol.Message) {
	var payload protocol.InitialStatePayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		if c.IsDebug() {
			fmt.Printf("Error parsing initial_state payload: %v\n", err)
		}
		return
	}

	c.propertiesMutex.Lock()
	defer c.propertiesMutex.Unlock()

	c.model = payload.Model
	c.serverStartupTime = payload.ServerStartupTime

	// Replace the cache wholesale; the server sends its full property state
	c.properties = make(map[string]protocol.PropertyData, len(payload.Properties))
	for name, property := range payload.Properties {
		c.properties[name] = property
	}
}

// handlePropertyChanged handles a property_changed message
func (c *WebSocketClient) handlePropertyChanged(msg *protocol.Message) {
	var payload protocol.PropertyChangedPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		if c.IsDebug() {
			fmt.Printf("Error parsing property_changed payload: %v\n", err)
		}
		return
	}

	c.storeProperties([]PropertyData{payload.Property})

	if c.IsWatching() {
		if payload.Previous != nil {
			fmt.Printf("[CHANGE] %s: %s (was %s)\n",
				payload.Property.Name, payload.Property.Value, payload.Previous.Value)
		} else {
			fmt.Printf("[CHANGE] %s: %s\n", payload.Property.Name, payload.Property.Value)
		}
	}
}

// handleTransportNotification handles a transport_notification message
func (c *WebSocketClient) handleTransportNotification(msg *protocol.Message) {
	var payload protocol.TransportNotificationPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		if c.IsDebug() {
			fmt.Printf("Error parsing transport_notification payload: %v\n", err)
		}
		return
	}

	// Always print transport state changes, regardless of debug flag
	if payload.Message != "" {
		fmt.Printf("[TRANSPORT] %s: %s\n", payload.Status, payload.Message)
	} else {
		fmt.Printf("[TRANSPORT] %s\n", payload.Status)
	}
}

// handleLogNotification handles a log_notification message
func (c *WebSocketClient) handleLogNotification(msg *protocol.Message) {
	var payload protocol.LogNotificationPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		if c.IsDebug() {
			fmt.Printf("Error parsing log_notification payload: %v\n", err)
		}
		return
	}

	fmt.Printf("[SERVER-LOG] %s: %s\n", payload.Level, payload.Message)
}

// handleErrorNotification handles an error_notification message
func (c *WebSocketClient) handleErrorNotification(msg *protocol.Message) {
	var payload protocol.ErrorNotificationPayload
	if err := protocol.ParsePayload(msg, &payload); err != nil {
		if c.IsDebug() {
			fmt.Printf("Error parsing error_notification payload: %v\n", err)
		}
		return
	}

	if c.IsDebug() {
		fmt.Printf("Error notification: %s: %s\n", payload.Code, payload.Message)
	}
}
