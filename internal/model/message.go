package model

import "time"

// ChatRequest 聊天请求
type ChatRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// ChatResponse 聊天响应，只包含模型回复
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WebSocket 消息类型
const (
	MessageTypeChat           = "CHAT"
	MessageTypeHeartbeat      = "HEARTBEAT"
	MessageTypeAIResponse     = "AI_RESPONSE"
	MessageTypeError          = "ERROR"
	MessageTypeDispatchStatus = "DISPATCH_STATUS"
)

// WSMessage WebSocket 消息
type WSMessage struct {
	MessageID string          `json:"messageId,omitempty"`
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	Code      string          `json:"code,omitempty"`
	Dispatch  *DispatchStatus `json:"dispatch,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
