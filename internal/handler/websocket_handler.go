package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"github.com/opsinsight/opsinsight-go/internal/service"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// 与 CORS 中间件一致，允许任意来源
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler WebSocket 处理器：CHAT 走与 POST / 相同的转发流程，派发状态实时推送
type WebSocketHandler struct {
	sessionService *service.SessionService
	relay          *service.RelayService
	dispatcher     *service.Dispatcher
	logger         *zap.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(sessionService *service.SessionService, relay *service.RelayService, dispatcher *service.Dispatcher, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessionService: sessionService,
		relay:          relay,
		dispatcher:     dispatcher,
		logger:         logger,
	}
}

// HandleWebSocket WebSocket 连接入口
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userIDStr := c.Query("uid")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid uid"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	h.sessionService.RegisterUser(userID, conn, sessionID, c.ClientIP())
	defer h.sessionService.RemoveUserBySessionID(sessionID)

	h.logger.Info("WebSocket 连接建立",
		zap.Int64("userId", userID),
		zap.String("sessionId", sessionID))

	// 连接断开后仍在处理的 CHAT 请求随之取消，已登记的派发不受影响
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket 读取错误", zap.Error(err))
			}
			break
		}
		h.handleMessage(ctx, userID, &msg)
	}

	h.logger.Info("WebSocket 连接断开", zap.Int64("userId", userID))
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, userID int64, msg *model.WSMessage) {
	switch msg.Type {
	case model.MessageTypeChat:
		go h.handleChat(ctx, userID, msg.MessageID, msg.Content)

	case model.MessageTypeHeartbeat:
		h.sessionService.UpdateHeartbeat(userID)
		h.logger.Debug("收到心跳", zap.Int64("userId", userID))

	default:
		h.logger.Warn("未知消息类型",
			zap.Int64("userId", userID),
			zap.String("type", msg.Type))
	}
}

func (h *WebSocketHandler) handleChat(ctx context.Context, userID int64, messageID, prompt string) {
	if prompt == "" {
		h.send(userID, model.WSMessage{MessageID: messageID, Type: model.MessageTypeError, Content: "prompt is required"})
		return
	}

	result, err := h.relay.Handle(ctx, prompt)
	if err != nil {
		reply := model.WSMessage{MessageID: messageID, Type: model.MessageTypeError, Content: err.Error()}
		var de *service.DispatchError
		var ue *service.UpstreamError
		switch {
		case errors.As(err, &de):
			reply.Content = de.Message
			reply.Code = de.Code()
		case errors.As(err, &ue):
			reply.Code = service.UpstreamErrorCode
		}
		h.send(userID, reply)
		return
	}

	h.send(userID, model.WSMessage{MessageID: messageID, Type: model.MessageTypeAIResponse, Content: result.Response})

	if len(result.Actions) > 0 {
		h.dispatcher.Dispatch(ctx, result.Actions, func(status model.DispatchStatus) {
			s := status
			h.send(userID, model.WSMessage{MessageID: messageID, Type: model.MessageTypeDispatchStatus, Dispatch: &s})
		})
	}
}

func (h *WebSocketHandler) send(userID int64, msg model.WSMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	// 用户已离线时派发照常进行，只是不再推送
	_ = h.sessionService.SendMessageToUser(userID, msg)
}
