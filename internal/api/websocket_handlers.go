// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 64 * 1024
)

// FormatterMessage 客户端发来的消息
type FormatterMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"` // 原样带回，便于客户端匹配响应
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Op    string `json:"op,omitempty"`
	Whole bool   `json:"whole,omitempty"`
}

// FormatterReply 服务端推送的消息
type FormatterReply struct {
	Type      string      `json:"type"`
	ID        string      `json:"id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// WebSocketHandler 处理格式化器的实时连接
type WebSocketHandler struct {
	manager   *WebSocketManager
	formatter *services.FormatterService
	logger    *utils.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(manager *WebSocketManager, formatter *services.FormatterService, logger *utils.Logger) *WebSocketHandler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &WebSocketHandler{manager: manager, formatter: formatter, logger: logger}
}

// FormatterWebSocket 升级连接并按会话加入房间；同一会话的其他标签页会收到缓冲区更新
func (wh *WebSocketHandler) FormatterWebSocket(c *gin.Context) {
	sessionID := c.DefaultQuery("session", "default")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := newWebSocketClient(conn, sessionID)
	wh.manager.register(client)

	go wh.writePump(client)

	client.SendMessage(reply("connected", "", map[string]interface{}{
		"session": sessionID,
	}))

	wh.readPump(client)
}

// readPump 读取并处理消息，连接断开时注销客户端
func (wh *WebSocketHandler) readPump(client *WebSocketClient) {
	defer func() {
		wh.manager.unregister(client)
		client.closeSend()
	}()

	conn := client.conn
	if raw, ok := conn.(*websocket.Conn); ok {
		raw.SetReadLimit(wsMaxMessage)
	}
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wh.logger.Debug("websocket read failed", map[string]interface{}{
					"session": client.sessionID,
					"error":   err.Error(),
				})
			}
			return
		}
		client.UpdatePing()
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg FormatterMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendMessage(errorReply("", ErrorBadRequest, "invalid message"))
			continue
		}
		wh.handleMessage(client, msg)
	}
}

// writePump 把发送队列写到连接上并定期 ping
func (wh *WebSocketHandler) writePump(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 按类型分发消息
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, msg FormatterMessage) {
	switch msg.Type {
	case "format":
		result, err := wh.formatter.Format(models.FormatRequest{
			Text:  msg.Text,
			Start: msg.Start,
			End:   msg.End,
			Op:    msg.Op,
			Whole: msg.Whole,
		})
		if err != nil {
			client.SendMessage(errorReply(msg.ID, ErrorFormatFailed, err.Error()))
			return
		}
		client.SendMessage(reply("formatted", msg.ID, result))
		wh.manager.BroadcastToSession(client.sessionID, client, reply("buffer_updated", "", map[string]interface{}{
			"text":  result.Text,
			"stats": result.Stats,
		}))

	case "stats":
		client.SendMessage(reply("stats", msg.ID, services.Stats(msg.Text)))

	case "decode":
		client.SendMessage(reply("decoded", msg.ID, map[string]string{
			"text": wh.formatter.Decode(msg.Text),
		}))

	case "ping":
		client.SendMessage(reply("pong", msg.ID, nil))

	default:
		client.SendMessage(errorReply(msg.ID, ErrorBadRequest, "unknown message type "+msg.Type))
	}
}

func reply(msgType, id string, data interface{}) FormatterReply {
	return FormatterReply{Type: msgType, ID: id, Data: data, Timestamp: time.Now().UnixMilli()}
}

func errorReply(id, code, message string) FormatterReply {
	return FormatterReply{
		Type:      "error",
		ID:        id,
		Error:     &APIError{Code: code, Message: message},
		Timestamp: time.Now().UnixMilli(),
	}
}
