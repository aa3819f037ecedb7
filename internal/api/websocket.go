// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gorilla/websocket"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient 表示一个格式化器标签页的连接
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	send      chan []byte
	closed    int32 // 原子操作标志，0=开启，1=关闭
	closeOnce sync.Once
	lastPing  atomic.Int64
	createdAt time.Time
}

func newWebSocketClient(conn WebSocketConnection, sessionID string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 64),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后活跃时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// SendMessage 发送消息到客户端，队列满时丢弃
func (client *WebSocketClient) SendMessage(message interface{}) bool {
	if client.IsClosed() {
		return false
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return false
	}
	return client.enqueue(msgBytes)
}

func (client *WebSocketClient) enqueue(msg []byte) (ok bool) {
	// send 可能已被写协程关闭
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend 只关闭一次发送队列
func (client *WebSocketClient) closeSend() {
	client.closeOnce.Do(func() { close(client.send) })
}

// WebSocketManager 管理格式化器连接，按会话分组
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // sessionID -> clients
	mutex       sync.RWMutex
	pingTimeout time.Duration
	logger      *utils.Logger
	metrics     *utils.AppMetrics
}

// NewWebSocketManager 创建连接管理器
func NewWebSocketManager(logger *utils.Logger, metrics *utils.AppMetrics) *WebSocketManager {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewAppMetrics(nil, logger)
	}
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		pingTimeout: 60 * time.Second,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run 定期清理过期连接，ctx 结束时关闭所有连接
func (manager *WebSocketManager) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.cleanupExpiredConnections()
		case <-ctx.Done():
			manager.shutdown()
			return
		}
	}
}

func (manager *WebSocketManager) register(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}
	manager.metrics.Collector().IncGauge("websocket_connections")

	manager.logger.Debug("formatter socket connected", map[string]interface{}{"session": client.sessionID})
}

func (manager *WebSocketManager) unregister(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	manager.removeLocked(client)
}

func (manager *WebSocketManager) removeLocked(client *WebSocketClient) {
	connections, exists := manager.connections[client.sessionID]
	if !exists {
		return
	}
	if _, ok := connections[client]; !ok {
		return
	}

	delete(connections, client)
	if len(connections) == 0 {
		delete(manager.connections, client.sessionID)
	}
	client.Close()
	manager.metrics.Collector().DecGauge("websocket_connections")

	manager.logger.Debug("formatter socket disconnected", map[string]interface{}{"session": client.sessionID})
}

// cleanupExpiredConnections 清理过期和已关闭的连接，返回清理数量
func (manager *WebSocketManager) cleanupExpiredConnections() int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	removed := 0
	for _, connections := range manager.connections {
		for client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				manager.removeLocked(client)
				removed++
			}
		}
	}
	return removed
}

func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, connections := range manager.connections {
		for client := range connections {
			manager.removeLocked(client)
		}
	}
	manager.logger.Info("websocket manager stopped", nil)
}

func (manager *WebSocketManager) clients(sessionID string, except *WebSocketClient) []*WebSocketClient {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	var out []*WebSocketClient
	add := func(set map[*WebSocketClient]struct{}) {
		for client := range set {
			if client != except && !client.IsClosed() {
				out = append(out, client)
			}
		}
	}

	if sessionID == "" {
		for _, set := range manager.connections {
			add(set)
		}
	} else {
		add(manager.connections[sessionID])
	}
	return out
}

// BroadcastToSession 向同一会话的其他标签页广播消息
func (manager *WebSocketManager) BroadcastToSession(sessionID string, except *WebSocketClient, message interface{}) int {
	sent := 0
	for _, client := range manager.clients(sessionID, except) {
		if client.SendMessage(message) {
			sent++
		}
	}
	return sent
}

// BroadcastAll 向所有连接广播消息
func (manager *WebSocketManager) BroadcastAll(message interface{}) int {
	return manager.BroadcastToSession("", nil, message)
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]int, len(manager.connections))
	total := 0
	for sessionID, connections := range manager.connections {
		active := 0
		for client := range connections {
			if !client.IsClosed() {
				active++
			}
		}
		sessions[sessionID] = active
		total += active
	}

	return map[string]interface{}{
		"total_sessions":       len(manager.connections),
		"total_connections":    total,
		"sessions":             sessions,
		"ping_timeout_seconds": int(manager.pingTimeout.Seconds()),
	}
}
