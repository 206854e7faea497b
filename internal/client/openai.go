package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenAIClient OpenAI chat/completions 客户端
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIClient 创建补全客户端，timeout 为 0 时不设超时
func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Message 消息，Content 为字符串或 []ContentPart
type Message struct {
	Role    string      `json:"role"` // system, user, assistant
	Content interface{} `json:"content"`
}

// ContentPart 多模态消息片段
type ContentPart struct {
	Type     string    `json:"type"` // text, image_url
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL 图片地址，支持 data URL
type ImageURL struct {
	URL string `json:"url"`
}

// CompletionRequest 补全请求
type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// CompletionResponse 补全响应
type CompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete 单轮文本补全：system + user 两条消息
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}
	return c.chat(ctx, messages)
}

// CompleteWithImage 图文补全，只发送一条 user 消息
func (c *OpenAIClient) CompleteWithImage(ctx context.Context, prompt, imageDataURL string) (string, error) {
	messages := []Message{
		{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: imageDataURL}},
			},
		},
	}
	return c.chat(ctx, messages)
}

func (c *OpenAIClient) chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := CompletionRequest{
		Model:    c.model,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API 返回错误: %d, body: %s", resp.StatusCode, string(body))
	}

	var completion CompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("API 响应中没有 choices")
	}

	c.logger.Debug("补全完成",
		zap.String("model", c.model),
		zap.Int("promptTokens", completion.Usage.PromptTokens),
		zap.Int("completionTokens", completion.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return completion.Choices[0].Message.Content, nil
}
