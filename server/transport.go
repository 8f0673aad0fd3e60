package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1回の書き込みに許容する最大時間
	writeWait = 10 * time.Second
	// pongWait はクライアントからのpong応答を待つ最大時間
	pongWait = 60 * time.Second
	// pingPeriod はpingを送信する間隔 (pongWaitより短いこと)
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketTransport はWebSocketサーバーのネットワーク層を抽象化するインターフェース
type WebSocketTransport interface {
	// Start はWebSocketサーバーを起動する
	Start(options StartOptions) error

	// Stop はWebSocketサーバーを停止する
	Stop() error

	// SetMessageHandler はクライアントからメッセージを受信した時に呼び出されるハンドラを設定する
	// connID はクライアント接続を識別するための一意なID
	SetMessageHandler(handler func(connID string, message []byte) error)

	// SetConnectHandler は新しいクライアントが接続した時に呼び出されるハンドラを設定する
	SetConnectHandler(handler func(connID string) error)

	// SetDisconnectHandler はクライアントが切断した時に呼び出されるハンドラを設定する
	SetDisconnectHandler(handler func(connID string))

	// SendMessage は特定のクライアントにメッセージを送信する
	SendMessage(connID string, message []byte) error

	// BroadcastMessage は接続中の全クライアントにメッセージを送信する
	BroadcastMessage(message []byte) error
}

// clientConnection wraps a WebSocket connection with a mutex for safe concurrent writes
type clientConnection struct {
	conn     *websocket.Conn
	mutex    sync.Mutex
	pingDone chan struct{}
}

// DefaultWebSocketTransport は WebSocketTransport インターフェースのデフォルト実装
type DefaultWebSocketTransport struct {
	ctx               context.Context
	cancel            context.CancelFunc
	server            *http.Server
	upgrader          websocket.Upgrader
	boundAddr         net.Addr
	clients           map[string]*clientConnection
	clientsReverse    map[*websocket.Conn]string
	clientsMutex      sync.RWMutex
	messageHandler    func(connID string, message []byte) error
	connectHandler    func(connID string) error
	disconnectHandler func(connID string)
}

// NewDefaultWebSocketTransport は DefaultWebSocketTransport の新しいインスタンスを作成する
func NewDefaultWebSocketTransport(ctx context.Context, addr string) *DefaultWebSocketTransport {
	transportCtx, cancel := context.WithCancel(ctx)

	transport := &DefaultWebSocketTransport{
		ctx:    transportCtx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// ローカル管理ツールなのですべてのオリジンを許可する
				return true
			},
		},
		clients:        make(map[string]*clientConnection),
		clientsReverse: make(map[*websocket.Conn]string),
		clientsMutex:   sync.RWMutex{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", transport.handleWebSocket)

	transport.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return transport
}

// Start はWebSocketサーバーを起動する
func (t *DefaultWebSocketTransport) Start(options StartOptions) error {
	// 先にリスナーをバインド
	listener, err := net.Listen("tcp", t.server.Addr)
	if err != nil {
		return err
	}
	t.boundAddr = listener.Addr()
	// 待ち受け完了を通知
	if options.Ready != nil {
		close(options.Ready)
	}
	slog.Info("WebSocket server starting", "addr", t.server.Addr)

	// TLS証明書が指定されている場合
	if options.CertFile != "" && options.KeyFile != "" {
		slog.Info("Using TLS with certificate", "certFile", options.CertFile)
		return t.server.ServeTLS(listener, options.CertFile, options.KeyFile)
	}

	// 通常のHTTP (証明書なし)
	return t.server.Serve(listener)
}

// Addr は待ち受け中のアドレスを返す。Start前はnil。
// ":0" のようにポート0でバインドした場合の実際のポートを知るために使う。
func (t *DefaultWebSocketTransport) Addr() net.Addr {
	return t.boundAddr
}

// Stop はWebSocketサーバーを停止する
func (t *DefaultWebSocketTransport) Stop() error {
	slog.Info("Stopping WebSocket server", "addr", t.server.Addr)
	t.cancel()
	err := t.server.Shutdown(context.Background())
	if err != nil {
		slog.Info("Error shutting down WebSocket server", "err", err)
	}
	return err
}

// SetMessageHandler はクライアントからメッセージを受信した時に呼び出されるハンドラを設定する
func (t *DefaultWebSocketTransport) SetMessageHandler(handler func(connID string, message []byte) error) {
	t.messageHandler = handler
}

// SetConnectHandler は新しいクライアントが接続した時に呼び出されるハンドラを設定する
func (t *DefaultWebSocketTransport) SetConnectHandler(handler func(connID string) error) {
	t.connectHandler = handler
}

// SetDisconnectHandler はクライアントが切断した時に呼び出されるハンドラを設定する
func (t *DefaultWebSocketTransport) SetDisconnectHandler(handler func(connID string)) {
	t.disconnectHandler = handler
}

// isConnectionClosedError checks if the error indicates a closed connection
func isConnectionClosedError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) ||
		strings.Contains(err.Error(), "close sent") ||
		strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// removeClient safely removes a client from the transport and calls the disconnect handler.
// Returns true if the client was actually removed, false if it was already removed.
func (t *DefaultWebSocketTransport) removeClient(connID string) bool {
	t.clientsMutex.Lock()
	defer t.clientsMutex.Unlock()

	client, exists := t.clients[connID]
	if !exists {
		return false
	}

	delete(t.clients, connID)
	if client.conn != nil {
		delete(t.clientsReverse, client.conn)
	}
	if client.pingDone != nil {
		close(client.pingDone)
	}

	// Call disconnect handler outside of the mutex lock
	go func() {
		select {
		case <-t.ctx.Done():
			return
		default:
			if t.disconnectHandler != nil {
				t.disconnectHandler(connID)
			}
		}
	}()

	return true
}

// SendMessage は特定のクライアントにメッセージを送信する
func (t *DefaultWebSocketTransport) SendMessage(connID string, message []byte) error {
	t.clientsMutex.RLock()
	client, exists := t.clients[connID]
	t.clientsMutex.RUnlock()

	if !exists {
		return fmt.Errorf("client with ID %s not found", connID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := client.conn.WriteMessage(websocket.TextMessage, message)
	if err != nil {
		if isConnectionClosedError(err) {
			t.removeClient(connID)
		}
		return fmt.Errorf("failed to send message to client %s: %w", connID, err)
	}

	return nil
}

// BroadcastMessage は接続中の全クライアントにメッセージを送信する
func (t *DefaultWebSocketTransport) BroadcastMessage(message []byte) error {
	t.clientsMutex.RLock()
	clients := make(map[string]*clientConnection, len(t.clients))
	for connID, client := range t.clients {
		clients[connID] = client
	}
	t.clientsMutex.RUnlock()

	var disconnectedClients []string

	for connID, client := range clients {
		client.mutex.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			if isConnectionClosedError(err) {
				disconnectedClients = append(disconnectedClients, connID)
			} else {
				slog.Error("Error broadcasting message to client", "err", err, "connID", connID)
			}
		}
		client.mutex.Unlock()
	}

	for _, connID := range disconnectedClients {
		t.removeClient(connID)
	}

	return nil
}

// startPinger は切断検出のため定期的にpingを送信するゴルーチンを起動する
func (t *DefaultWebSocketTransport) startPinger(connID string, client *clientConnection) {
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				client.mutex.Lock()
				err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				client.mutex.Unlock()
				if err != nil {
					if !isConnectionClosedError(err) {
						slog.Error("Error sending ping to client", "err", err, "connID", connID)
					}
					t.removeClient(connID)
					return
				}
			case <-client.pingDone:
				return
			case <-t.ctx.Done():
				return
			}
		}
	}()
}

// handleWebSocket はWebSocket接続を処理する
func (t *DefaultWebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	slog.Debug("WebSocket upgrade request received",
		"origin", r.Header.Get("Origin"),
		"host", r.Header.Get("Host"),
		"upgrade", r.Header.Get("Upgrade"))

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Error upgrading to WebSocket", "err", err,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.Header.Get("User-Agent"))
		return
	}
	defer conn.Close()

	// Generate a unique connection ID
	connID := fmt.Sprintf("%p", conn)

	client := &clientConnection{
		conn:     conn,
		mutex:    sync.Mutex{},
		pingDone: make(chan struct{}),
	}
	t.clientsMutex.Lock()
	t.clients[connID] = client
	t.clientsReverse[conn] = connID
	t.clientsMutex.Unlock()

	// pong応答で読み取りデッドラインを更新する
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	t.startPinger(connID, client)

	// Remove the client when the function returns
	defer func() {
		t.removeClient(connID)
	}()

	// Call the connect handler if set
	if t.connectHandler != nil {
		if err := t.connectHandler(connID); err != nil {
			slog.Error("Error in connect handler", "err", err)
			return
		}
	}

	// Handle incoming messages
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			// Check for unexpected close errors. Expected close codes:
			// - 1000 (Normal): Intentional client disconnect
			// - 1001 (Going Away): Browser navigation or server shutdown
			// - 1005 (No Status): No close code provided
			// - 1006 (Abnormal): Connection lost without close frame
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				slog.Error("Unexpected WebSocket close error", "err", err)
			}
			break
		}

		// Call the message handler if set
		if t.messageHandler != nil {
			if err := t.messageHandler(connID, message); err != nil {
				errStr := err.Error()
				if !isConnectionClosedError(err) &&
					!(strings.Contains(errStr, "client with ID") && strings.Contains(errStr, "not found")) {
					slog.Error("Error in message handler", "err", err)
				}
			}
		}
	}
}
