package service

import "context"

// Completer 大模型补全
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
	CompleteWithImage(ctx context.Context, prompt, imageDataURL string) (string, error)
}

// EmailSender 邮件发送
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ChatPoster 频道消息发送
type ChatPoster interface {
	PostChannelMessage(ctx context.Context, teamID, channelID, content string) error
}
