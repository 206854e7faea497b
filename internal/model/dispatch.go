package model

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind 派发动作类型
type ActionKind string

const (
	ActionEmail ActionKind = "email"
	ActionChat  ActionKind = "chat"
)

// EmailSend 邮件发送参数
type EmailSend struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ChatPost 频道消息参数
type ChatPost struct {
	TeamID    string `json:"teamId"`
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
}

// DispatchAction 已解析完成、可直接执行的后台动作。
// 只通过 NewEmailAction / NewChatAction 构造，构造后不再修改。
type DispatchAction struct {
	ID    string     `json:"id"`
	Kind  ActionKind `json:"kind"`
	Email *EmailSend `json:"email,omitempty"`
	Chat  *ChatPost  `json:"chat,omitempty"`
}

// NewEmailAction 构造邮件动作
func NewEmailAction(to, subject, body string) DispatchAction {
	return DispatchAction{
		ID:    uuid.New().String(),
		Kind:  ActionEmail,
		Email: &EmailSend{To: to, Subject: subject, Body: body},
	}
}

// NewChatAction 构造频道消息动作
func NewChatAction(teamID, channelID, content string) DispatchAction {
	return DispatchAction{
		ID:   uuid.New().String(),
		Kind: ActionChat,
		Chat: &ChatPost{TeamID: teamID, ChannelID: channelID, Content: content},
	}
}

// DispatchState 派发状态
type DispatchState string

const (
	StateQueued    DispatchState = "queued"
	StateRunning   DispatchState = "running"
	StateSucceeded DispatchState = "succeeded"
	StateFailed    DispatchState = "failed"
)

// Terminal 是否为终态
func (s DispatchState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// DispatchStatus 派发状态记录
type DispatchStatus struct {
	ID        string        `json:"id"`
	Kind      ActionKind    `json:"kind"`
	State     DispatchState `json:"state"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
