package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"msiec-ctl/msiec"
	"msiec-ctl/msiec/handler"
	"msiec-ctl/protocol"
)

// setDuplicateWindow is how long after a set_properties operation a monitor
// notification for the same value is treated as an echo of that set.
const setDuplicateWindow = 2 * time.Second

// StartOptions は WebSocketServer の起動オプションを表す
type StartOptions struct {
	// TLS証明書ファイルのパス (TLSを使用する場合)
	CertFile string
	// TLS秘密鍵ファイルのパス (TLSを使用する場合)
	KeyFile string
	// Ready が非nilの場合、待ち受け開始時にcloseされる
	Ready chan struct{}
}

// WebSocketServer exposes an EC handler to WebSocket clients
type WebSocketServer struct {
	ctx         context.Context
	cancel      context.CancelFunc
	transport   WebSocketTransport
	handler     *handler.ECHandler
	table       msiec.PropertyTable
	model       string
	history     *PropertyHistoryStore
	historyFile string
	startupTime time.Time
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(ctx context.Context, addr string, ecHandler *handler.ECHandler, model string, historyOpts HistoryOptions) (*WebSocketServer, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	transport := NewDefaultWebSocketTransport(serverCtx, addr)

	history := NewPropertyHistoryStore(historyOpts)
	if historyOpts.HistoryFilePath != "" {
		if err := history.LoadFromFile(historyOpts.HistoryFilePath, DefaultHistoryLoadFilter()); err != nil {
			slog.Warn("Failed to load change history", "err", err)
		}
	}

	ws := &WebSocketServer{
		ctx:         serverCtx,
		cancel:      cancel,
		transport:   transport,
		handler:     ecHandler,
		table:       ecHandler.Table(),
		model:       model,
		history:     history,
		historyFile: historyOpts.HistoryFilePath,
		startupTime: time.Now(),
	}

	// Warn以上のログを接続中のクライアントにも流す
	slog.SetDefault(slog.New(NewBroadcastHandler(slog.Default().Handler(), transport, slog.LevelWarn)))

	transport.SetConnectHandler(ws.handleClientConnect)
	transport.SetMessageHandler(ws.handleClientMessage)
	transport.SetDisconnectHandler(ws.handleClientDisconnect)

	// Start listening for notifications from the EC handler
	go ws.listenForNotifications()

	return ws, nil
}

// handleClientConnect is called when a new client connects
func (ws *WebSocketServer) handleClientConnect(connID string) error {
	if ws.handler.IsDebug() {
		slog.Info("New WebSocket connection established", "connID", connID)
	}

	// Send initial state to the client
	return ws.sendInitialStateToClient(connID)
}

// handleClientMessage is called when a message is received from a client
func (ws *WebSocketServer) handleClientMessage(connID string, message []byte) error {
	msg, err := protocol.ParseMessage(message)
	if err != nil {
		slog.Error("Error parsing message", "err", err)
		errorPayload := protocol.ErrorNotificationPayload{
			Code:    protocol.ErrorCodeInvalidRequestFormat,
			Message: fmt.Sprintf("Error parsing message: %v", err),
		}
		return ws.sendMessageToClient(connID, protocol.MessageTypeErrorNotification, errorPayload, "")
	}

	// Handle the message based on its type
	var result protocol.CommandResultPayload
	switch msg.Type {
	case protocol.MessageTypeGetProperties:
		result = ws.handleGetPropertiesFromClient(msg)
	case protocol.MessageTypeSetProperties:
		result = ws.handleSetPropertiesFromClient(msg)
	case protocol.MessageTypeListProperties:
		result = ws.handleListPropertiesFromClient(msg)
	case protocol.MessageTypeGetPropertyDescription:
		result = ws.handleGetPropertyDescriptionFromClient(msg)
	case protocol.MessageTypeGetChangeHistory:
		result = ws.handleGetChangeHistoryFromClient(msg)
	case protocol.MessageTypeDebugReadRegister:
		result = ws.handleDebugReadRegisterFromClient(msg)
	case protocol.MessageTypeDebugWriteRegister:
		result = ws.handleDebugWriteRegisterFromClient(msg)
	case protocol.MessageTypeDumpRegisters:
		result = ws.handleDumpRegistersFromClient(msg)
	default:
		slog.Warn("Unknown message type", "type", msg.Type)
		errorPayload := protocol.ErrorNotificationPayload{
			Code:    protocol.ErrorCodeInvalidRequestFormat,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		}
		return ws.sendMessageToClient(connID, protocol.MessageTypeErrorNotification, errorPayload, msg.RequestID)
	}

	return ws.sendMessageToClient(connID, protocol.MessageTypeCommandResult, result, msg.RequestID)
}

// handleClientDisconnect is called when a client disconnects
func (ws *WebSocketServer) handleClientDisconnect(connID string) {
	if ws.handler.IsDebug() {
		slog.Info("WebSocket connection closed", "connID", connID)
	}
}

// Start starts the WebSocket server
func (ws *WebSocketServer) Start(options StartOptions) error {
	return ws.transport.Start(options)
}

// Stop stops the WebSocket server
func (ws *WebSocketServer) Stop() error {
	if ws.historyFile != "" {
		if err := ws.history.SaveToFile(ws.historyFile); err != nil {
			slog.Warn("Failed to save change history", "err", err)
		}
	}
	ws.cancel()
	return ws.transport.Stop()
}

// Addr は待ち受け中のアドレスを返す。Start前はnil。
func (ws *WebSocketServer) Addr() net.Addr {
	if t, ok := ws.transport.(interface{ Addr() net.Addr }); ok {
		return t.Addr()
	}
	return nil
}

// makePropertyData converts a decoded property value to its wire representation.
func (ws *WebSocketServer) makePropertyData(value msiec.PropertyValue) protocol.PropertyData {
	if desc, ok := ws.table.Find(value.Name); ok {
		return protocol.MakePropertyData(desc, value)
	}
	return protocol.PropertyData{Name: value.Name, Value: value.Value, Known: value.Known}
}

// sendInitialStateToClient sends the current property snapshot to a client
func (ws *WebSocketServer) sendInitialStateToClient(connID string) error {
	if ws.handler.IsDebug() {
		slog.Info("Sending initial state to client", "connID", connID)
	}

	properties := make(map[string]protocol.PropertyData)
	for _, result := range ws.handler.ListProperties("") {
		if result.Err != nil {
			slog.Warn("Failed to read property for initial state", "property", result.Value.Name, "err", result.Err)
			continue
		}
		if desc, ok := ws.table.Find(result.Value.Name); ok && !desc.Access.CanRead() {
			// 書き込み専用プロパティは状態を持たないので初期状態からは除外する
			continue
		}
		properties[result.Value.Name] = ws.makePropertyData(result.Value)
	}

	payload := protocol.InitialStatePayload{
		Model:             ws.model,
		Properties:        properties,
		ServerStartupTime: ws.startupTime,
	}

	return ws.sendMessageToClient(connID, protocol.MessageTypeInitialState, payload, "")
}

// sendMessageToClient sends a message to a client
func (ws *WebSocketServer) sendMessageToClient(connID string, msgType protocol.MessageType, payload interface{}, requestID string) error {
	data, err := protocol.CreateMessage(msgType, payload, requestID)
	if err != nil {
		return fmt.Errorf("error creating message: %v", err)
	}

	return ws.transport.SendMessage(connID, data)
}

// broadcastMessageToClients sends a message to all connected clients
func (ws *WebSocketServer) broadcastMessageToClients(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.CreateMessage(msgType, payload, "")
	if err != nil {
		slog.Error("Error creating broadcast message", "err", err)
		return err
	}

	return ws.transport.BroadcastMessage(data)
}

// listenForNotifications relays EC handler notifications to WebSocket clients
func (ws *WebSocketServer) listenForNotifications() {
	for {
		select {
		case <-ws.ctx.Done():
			if ws.handler.IsDebug() {
				slog.Info("Notification listener stopped")
			}
			return

		case change, ok := <-ws.handler.PropertyChangeCh:
			if !ok {
				return
			}
			if ws.handler.IsDebug() {
				slog.Info("Property changed", "property", change.Property.Name, "value", change.Property.Value)
			}

			property := ws.makePropertyData(change.Property)
			previous := ws.makePropertyData(change.Previous)

			// set_properties 経由の変化は既に記録済みなので二重記録を避ける
			if !ws.history.IsDuplicateOfSet(property, setDuplicateWindow) {
				ws.history.Record(PropertyChangeRecord{
					Property: property,
					Previous: &previous,
					Origin:   ChangeOriginNotification,
				})
			}

			payload := protocol.PropertyChangedPayload{
				Property: property,
				Previous: &previous,
			}
			ws.broadcastMessageToClients(protocol.MessageTypePropertyChanged, payload)

		case notification, ok := <-ws.handler.TransportCh:
			if !ok {
				return
			}

			payload := protocol.TransportNotificationPayload{}
			switch notification.Type {
			case handler.TransportFault:
				payload.Status = protocol.TransportStatusFault
			case handler.TransportRecovered:
				payload.Status = protocol.TransportStatusRecovered
			}
			if notification.Error != nil {
				payload.Message = notification.Error.Error()
			}

			ws.broadcastMessageToClients(protocol.MessageTypeTransportNotification, payload)
		}
	}
}
