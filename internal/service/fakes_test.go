package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/opsinsight/opsinsight-go/internal/config"
	"github.com/opsinsight/opsinsight-go/internal/model"
)

type fakeCompleter struct {
	complete      func(ctx context.Context, systemPrompt, prompt string) (string, error)
	completeImage func(ctx context.Context, prompt, imageDataURL string) (string, error)
	calls         atomic.Int32
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	f.calls.Add(1)
	return f.complete(ctx, systemPrompt, prompt)
}

func (f *fakeCompleter) CompleteWithImage(ctx context.Context, prompt, imageDataURL string) (string, error) {
	f.calls.Add(1)
	return f.completeImage(ctx, prompt, imageDataURL)
}

func staticCompleter(text string) *fakeCompleter {
	return &fakeCompleter{
		complete: func(context.Context, string, string) (string, error) { return text, nil },
	}
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []model.EmailSend
	send func(ctx context.Context, to, subject, body string) error
}

func (r *recordingEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	r.mu.Lock()
	r.sent = append(r.sent, model.EmailSend{To: to, Subject: subject, Body: body})
	r.mu.Unlock()
	if r.send != nil {
		return r.send(ctx, to, subject, body)
	}
	return nil
}

func (r *recordingEmail) Sent() []model.EmailSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.EmailSend(nil), r.sent...)
}

type recordingChat struct {
	mu     sync.Mutex
	posted []model.ChatPost
	post   func(ctx context.Context, teamID, channelID, content string) error
}

func (r *recordingChat) PostChannelMessage(ctx context.Context, teamID, channelID, content string) error {
	r.mu.Lock()
	r.posted = append(r.posted, model.ChatPost{TeamID: teamID, ChannelID: channelID, Content: content})
	r.mu.Unlock()
	if r.post != nil {
		return r.post(ctx, teamID, channelID, content)
	}
	return nil
}

func (r *recordingChat) Posted() []model.ChatPost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatPost(nil), r.posted...)
}

type statusLog struct {
	mu       sync.Mutex
	statuses []model.DispatchStatus
}

func (l *statusLog) notify(s model.DispatchStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) states(id string) []model.DispatchState {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.DispatchState
	for _, s := range l.statuses {
		if s.ID == id {
			out = append(out, s.State)
		}
	}
	return out
}

func fullEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		Provider: config.EmailProviderSMTP,
		Subject:  "Message from OpsInsight assistant",
		SMTP: config.SMTPConfig{
			Host:     "smtp.example.com",
			Port:     587,
			User:     "bot@example.com",
			Password: "app-password",
		},
	}
}

func fullTeamsConfig() config.TeamsConfig {
	return config.TeamsConfig{
		TenantID:         "tenant-id",
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		DefaultTeamID:    "default-team",
		DefaultChannelID: "default-channel",
	}
}
