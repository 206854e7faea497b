package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/opsinsight/opsinsight-go/internal/intent"
	"github.com/opsinsight/opsinsight-go/internal/metrics"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"go.uber.org/zap"
)

// Result 一次请求的处理结果：模型回复和待派发动作
type Result struct {
	Response string
	Actions  []model.DispatchAction
}

// RelayService 补全转发与意图派发决策
type RelayService struct {
	completer    Completer
	guard        *Guard
	systemPrompt string
	emailSubject string
	logger       *zap.Logger
}

// NewRelayService 创建转发服务
func NewRelayService(completer Completer, guard *Guard, systemPrompt, emailSubject string, logger *zap.Logger) *RelayService {
	return &RelayService{
		completer:    completer,
		guard:        guard,
		systemPrompt: systemPrompt,
		emailSubject: emailSubject,
		logger:       logger,
	}
}

// Handle 调用一次补全，再按意图生成派发动作。
// 任一意图校验失败则整个请求失败，不返回任何动作。
func (s *RelayService) Handle(ctx context.Context, prompt string) (*Result, error) {
	response, err := s.completer.Complete(ctx, s.systemPrompt, prompt)
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues("text", "failed").Inc()
		return nil, &UpstreamError{Err: err}
	}
	metrics.CompletionsTotal.WithLabelValues("text", "succeeded").Inc()

	intents := intent.Classify(prompt)
	for _, in := range intents.List() {
		metrics.IntentsDetected.WithLabelValues(string(in)).Inc()
	}

	var actions []model.DispatchAction

	if intents.Has(intent.SendEmail) {
		action, err := s.planEmail(prompt, response)
		if err != nil {
			return nil, s.reject(err)
		}
		actions = append(actions, action)
	}

	if intents.Has(intent.PostChatMessage) {
		action, err := s.planChat(prompt, response)
		if err != nil {
			return nil, s.reject(err)
		}
		actions = append(actions, action)
	}

	s.logger.Info("请求处理完成",
		zap.Int("intents", intents.Len()),
		zap.Int("actions", len(actions)))

	return &Result{Response: response, Actions: actions}, nil
}

// HandleUpload 上传接口：有图片时走图片补全，否则走文本补全，不做意图派发
func (s *RelayService) HandleUpload(ctx context.Context, prompt string, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		response, err := s.completer.Complete(ctx, s.systemPrompt, prompt)
		if err != nil {
			metrics.CompletionsTotal.WithLabelValues("text", "failed").Inc()
			return "", &UpstreamError{Err: err}
		}
		metrics.CompletionsTotal.WithLabelValues("text", "succeeded").Inc()
		return response, nil
	}

	response, err := s.completer.CompleteWithImage(ctx, prompt, ImageDataURL(image, contentType))
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues("image", "failed").Inc()
		return "", &UpstreamError{Err: err}
	}
	metrics.CompletionsTotal.WithLabelValues("image", "succeeded").Inc()
	return response, nil
}

// ImageDataURL 把图片编码为 data URL，非图片类型按 image/png 处理
func ImageDataURL(image []byte, contentType string) string {
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func (s *RelayService) planEmail(prompt, fallback string) (model.DispatchAction, error) {
	if err := s.guard.RequireEmailConfig(); err != nil {
		return model.DispatchAction{}, err
	}

	params := intent.ExtractEmail(prompt)
	to, err := s.guard.RequireRecipient(params)
	if err != nil {
		return model.DispatchAction{}, err
	}

	body := params.Body
	if body == "" {
		body = fallback
	}
	return model.NewEmailAction(to, s.emailSubject, body), nil
}

func (s *RelayService) planChat(prompt, fallback string) (model.DispatchAction, error) {
	if err := s.guard.RequireChatConfig(); err != nil {
		return model.DispatchAction{}, err
	}

	params := intent.ExtractChat(prompt)
	teamID, channelID, err := s.guard.ResolveChatTarget(params)
	if err != nil {
		return model.DispatchAction{}, err
	}

	content := params.Body
	if content == "" {
		content = fallback
	}
	return model.NewChatAction(teamID, channelID, content), nil
}

func (s *RelayService) reject(err error) error {
	code := "UNKNOWN"
	var de *DispatchError
	if errors.As(err, &de) {
		code = de.Code()
	}
	metrics.RequestsRejected.WithLabelValues(code).Inc()
	s.logger.Warn("意图校验失败，请求被拒绝", zap.String("code", code), zap.Error(err))
	return err
}
