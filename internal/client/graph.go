package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/opsinsight/opsinsight-go/internal/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GraphScope Graph 应用权限的默认 scope
const GraphScope = "https://graph.microsoft.com/.default"

// GraphClient 通过 Microsoft Graph 向 Teams 频道发消息
type GraphClient struct {
	baseURL     string
	credentials *clientcredentials.Config
	httpClient  *http.Client
	logger      *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewGraphClient 创建 Graph 客户端，令牌用 client credentials 换取并缓存到过期
func NewGraphClient(cfg config.TeamsConfig, timeout time.Duration, logger *zap.Logger) *GraphClient {
	httpClient := &http.Client{Timeout: timeout}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     strings.TrimRight(cfg.AuthorityURL, "/") + "/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token",
		Scopes:       []string{GraphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	return &GraphClient{
		baseURL:     strings.TrimRight(cfg.GraphBaseURL, "/"),
		credentials: cc,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// accessToken 返回缓存的令牌，过期时在调用方 ctx 上重新换取
func (c *GraphClient) accessToken(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token, nil
	}
	token, err := c.credentials.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		return nil, err
	}
	c.token = token
	return token, nil
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type chatMessage struct {
	Body itemBody `json:"body"`
}

// PostChannelMessage 以 html 正文发送频道消息
func (c *GraphClient) PostChannelMessage(ctx context.Context, teamID, channelID, content string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("获取 Graph 令牌失败: %w", err)
	}

	jsonData, err := json.Marshal(chatMessage{Body: itemBody{ContentType: "html", Content: content}})
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/teams/%s/channels/%s/messages",
		c.baseURL, url.PathEscape(teamID), url.PathEscape(channelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Graph 返回错误: %d, body: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("Teams 消息已发送",
		zap.String("teamId", teamID),
		zap.String("channelId", channelID))
	return nil
}
